// Package chroma implements a minimal client for the ChromaDB v1 REST API,
// covering the collection operations the ingestion and retrieval paths need.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to a single ChromaDB collection. Call Connect before any
// other operation to resolve the collection id.
type Client struct {
	baseURL      string
	collection   string
	collectionID string
	httpClient   *http.Client
}

// New creates a client for the ChromaDB server at host:port, bound to the
// named collection.
func New(host string, port int, collection string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		collection: collection,
		httpClient: &http.Client{},
	}
}

// Heartbeat checks that the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Connect verifies the server is up and resolves (creating if necessary)
// the configured collection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Heartbeat(ctx); err != nil {
		return err
	}

	body := map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", body, &out); err != nil {
		return fmt.Errorf("get or create collection %q: %w", c.collection, err)
	}
	if out.ID == "" {
		return fmt.Errorf("get or create collection %q: server returned no id", c.collection)
	}
	c.collectionID = out.ID
	return nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.collection
}

// Add stores documents with their embeddings and metadata. All slices must
// have the same length.
func (c *Client) Add(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]any) error {
	if c.collectionID == "" {
		return fmt.Errorf("not connected")
	}
	if len(ids) != len(embeddings) || len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("add: mismatched lengths (ids=%d embeddings=%d documents=%d metadatas=%d)",
			len(ids), len(embeddings), len(documents), len(metadatas))
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	path := fmt.Sprintf("/api/v1/collections/%s/add", c.collectionID)
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("add %d documents: %w", len(ids), err)
	}
	return nil
}

// QueryDocuments runs a nearest-neighbor search with the given query vector
// and returns up to nResults document texts, closest first.
func (c *Client) QueryDocuments(ctx context.Context, embedding []float32, nResults int) ([]string, error) {
	if c.collectionID == "" {
		return nil, fmt.Errorf("not connected")
	}

	body := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        nResults,
		"include":          []string{"documents"},
	}
	var out struct {
		Documents [][]string `json:"documents"`
	}
	path := fmt.Sprintf("/api/v1/collections/%s/query", c.collectionID)
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(out.Documents) == 0 {
		return nil, nil
	}
	return out.Documents[0], nil
}

// Count returns the number of documents in the collection.
func (c *Client) Count(ctx context.Context) (int, error) {
	if c.collectionID == "" {
		return 0, fmt.Errorf("not connected")
	}

	path := fmt.Sprintf("/api/v1/collections/%s/count", c.collectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("count: unexpected status %d", resp.StatusCode)
	}

	var n int
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return 0, fmt.Errorf("count: decoding response: %w", err)
	}
	return n, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
