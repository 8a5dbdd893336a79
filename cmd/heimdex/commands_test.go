package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func TestIngestEventRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /iobroker-event": `{"status":"success","message":"Event processed and stored","doc_id":"doc-123"}`,
	})

	client := ts.client()

	req := map[string]any{
		"device_name":                "hue.0.living.light",
		"event_type":                 "on",
		"value":                      true,
		"data_type":                  "boolean",
		"human_readable_description": "Living room light",
	}

	resp, err := client.post("/iobroker-event", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result["doc_id"] != "doc-123" {
		t.Errorf("doc_id = %q, want doc-123", result["doc_id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/iobroker-event" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["device_name"] != "hue.0.living.light" {
		t.Errorf("body.device_name = %v", body["device_name"])
	}
	if body["value"] != true {
		t.Errorf("body.value = %v, want true", body["value"])
	}
}

func TestIngestCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /tools/get_iobroker_data_answer": `{"answer":"The living room light is on."}`,
	})

	client := ts.client()

	resp, err := client.post("/tools/get_iobroker_data_answer", map[string]string{
		"user_query": "Is the light on?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["answer"] != "The living room light is on." {
		t.Errorf("answer = %q", result["answer"])
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["user_query"] != "Is the light on?" {
		t.Errorf("body.user_query = %q", body["user_query"])
	}
}

func TestDecodeJSON_ServerError(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get("/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var v map[string]any
	if err := decodeJSON(resp, &v); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestEventsRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /events": `{"events":[{"doc_id":"d1","device_name":"hue.0.light","text":"Living room light is on"}]}`,
	})

	resp, err := ts.client().get("/events?limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Events []struct {
			DocID string `json:"doc_id"`
		} `json:"events"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].DocID != "d1" {
		t.Errorf("events = %+v", result.Events)
	}
	if ts.requests[0].Path != "/events?limit=20" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorGreen, "hello"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorGreen, "hello"); !strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
