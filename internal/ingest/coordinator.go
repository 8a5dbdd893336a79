// Package ingest validates incoming device events, normalizes them to
// text, embeds them, and stores them in the vector store with a journal
// copy on the side.
package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex/internal/event"
	"github.com/heimdex/heimdex/internal/storage"
)

// TextEmbedder produces an embedding for a normalized event text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorAdder stores embedded documents.
type VectorAdder interface {
	Add(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]any) error
}

// EventJournal keeps a queryable copy of ingested events.
type EventJournal interface {
	SaveEvent(ctx context.Context, e storage.Event) error
}

// Coordinator runs the ingestion pipeline for one event at a time.
type Coordinator struct {
	embedder TextEmbedder
	store    VectorAdder
	journal  EventJournal
	logger   *slog.Logger

	now    func() time.Time
	randID func() string
}

func NewCoordinator(embedder TextEmbedder, store VectorAdder, journal EventJournal, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		embedder: embedder,
		store:    store,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
		randID:   randomSuffix,
	}
}

// randomSuffix returns 3 random bytes hex-encoded, used to keep document
// ids unique for devices that emit several events in the same millisecond.
func randomSuffix() string {
	var b [3]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Ingest validates, normalizes, embeds, and stores one event. It returns
// the id of the stored document. Validation failures return
// *event.ValidationError; embedding failures wrap retrieval.ErrEmbedding.
func (c *Coordinator) Ingest(ctx context.Context, rec event.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	norm := event.Normalize(rec, c.now())
	if norm.TimestampInvalid {
		c.logger.Warn("event carried an unparseable timestamp, using receive time",
			"device", rec.DeviceName)
	}

	vec, err := c.embedder.Embed(ctx, norm.Text)
	if err != nil {
		return "", err
	}

	docID := fmt.Sprintf("%s_%s_%d_%s",
		strings.ReplaceAll(rec.DeviceName, ".", "-"),
		rec.DataType,
		norm.EffectiveMs,
		c.randID())

	metadata := map[string]any{
		"device_name":                        rec.DeviceName,
		"event_description_from_payload":     rec.EventType,
		"actual_value":                       rec.DecodedValue(),
		"data_type":                          rec.DataType,
		"human_readable_config_description":  rec.Description,
		"location":                           rec.EffectiveLocation(),
		"event_timestamp_iso":                norm.TimestampISO,
		"text_used_for_embedding":            norm.Text,
		"event_timestamp_formatted_readable": norm.TimestampFormatted,
	}
	if norm.TimestampFromEvent {
		metadata["original_timestamp_ms"] = norm.EffectiveMs
	}

	err = c.store.Add(ctx,
		[]string{docID},
		[][]float32{vec},
		[]string{norm.Text},
		[]map[string]any{metadata})
	if err != nil {
		return "", fmt.Errorf("storing document: %w", err)
	}

	if c.journal != nil {
		jerr := c.journal.SaveEvent(ctx, storage.Event{
			DocID:        docID,
			DeviceName:   rec.DeviceName,
			EventType:    rec.EventType,
			DataType:     rec.DataType,
			Location:     rec.EffectiveLocation(),
			Text:         norm.Text,
			TimestampISO: norm.TimestampISO,
		})
		if jerr != nil {
			// The vector store write already succeeded; a journal
			// miss must not fail the ingest.
			c.logger.Warn("journaling event failed", "doc_id", docID, "error", jerr)
		}
	}

	c.logger.Info("event ingested", "doc_id", docID, "device", rec.DeviceName)
	return docID, nil
}

// BatchResult reports the outcome for one event of a batch, in input order.
type BatchResult struct {
	Index int    `json:"index"`
	DocID string `json:"doc_id,omitempty"`
	Error string `json:"error,omitempty"`
}

// IngestBatch ingests all events with bounded concurrency. Each event
// succeeds or fails on its own; the returned slice always has one entry
// per input event.
func (c *Coordinator) IngestBatch(ctx context.Context, recs []event.Record) []BatchResult {
	results := make([]BatchResult, len(recs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, rec := range recs {
		g.Go(func() error {
			docID, err := c.Ingest(ctx, rec)
			results[i] = BatchResult{Index: i, DocID: docID}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()
	return results
}
