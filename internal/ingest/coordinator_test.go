package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex/internal/event"
	"github.com/heimdex/heimdex/internal/retrieval"
	"github.com/heimdex/heimdex/internal/storage"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

type addCall struct {
	ids       []string
	documents []string
	metadatas []map[string]any
}

type fakeVectorStore struct {
	mu    sync.Mutex
	calls []addCall
	err   error
}

func (f *fakeVectorStore) Add(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, addCall{ids: ids, documents: documents, metadatas: metadatas})
	return nil
}

type fakeJournal struct {
	mu     sync.Mutex
	events []storage.Event
	err    error
}

func (f *fakeJournal) SaveEvent(ctx context.Context, e storage.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func testRecord() event.Record {
	return event.Record{
		DeviceName:  "hue.0.living.light",
		EventType:   "on",
		Value:       json.RawMessage(`true`),
		DataType:    event.TypeBoolean,
		Description: "Living room light",
		Timestamp:   json.RawMessage(`1700000000000`),
		Location:    "living room",
	}
}

func newTestCoordinator(e TextEmbedder, s VectorAdder, j EventJournal) *Coordinator {
	c := NewCoordinator(e, s, j, nil)
	c.now = func() time.Time { return time.Date(2023, 11, 20, 9, 30, 0, 0, time.UTC) }
	c.randID = func() string { return "a1b2c3" }
	return c
}

func TestIngest_StoresDocumentAndJournal(t *testing.T) {
	store := &fakeVectorStore{}
	journal := &fakeJournal{}
	c := newTestCoordinator(&fakeEmbedder{}, store, journal)

	docID, err := c.Ingest(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := "hue-0-living-light_boolean_1700000000000_a1b2c3"
	if docID != want {
		t.Errorf("docID = %q, want %q", docID, want)
	}

	if len(store.calls) != 1 {
		t.Fatalf("got %d Add calls, want 1", len(store.calls))
	}
	call := store.calls[0]
	if call.ids[0] != want {
		t.Errorf("stored id = %q", call.ids[0])
	}
	if !strings.Contains(call.documents[0], "Living room light is on") {
		t.Errorf("stored text = %q", call.documents[0])
	}

	md := call.metadatas[0]
	if md["device_name"] != "hue.0.living.light" {
		t.Errorf("device_name = %v", md["device_name"])
	}
	if md["actual_value"] != true {
		t.Errorf("actual_value = %v (%T), want typed bool", md["actual_value"], md["actual_value"])
	}
	if md["location"] != "living room" {
		t.Errorf("location = %v", md["location"])
	}
	if md["original_timestamp_ms"] != int64(1700000000000) {
		t.Errorf("original_timestamp_ms = %v", md["original_timestamp_ms"])
	}
	if md["text_used_for_embedding"] != call.documents[0] {
		t.Error("text_used_for_embedding should match the stored document")
	}

	if len(journal.events) != 1 {
		t.Fatalf("got %d journaled events, want 1", len(journal.events))
	}
	if journal.events[0].DocID != want {
		t.Errorf("journaled doc id = %q", journal.events[0].DocID)
	}
}

func TestIngest_ValidationFailure(t *testing.T) {
	store := &fakeVectorStore{}
	c := newTestCoordinator(&fakeEmbedder{}, store, nil)

	rec := testRecord()
	rec.DeviceName = ""
	rec.Value = nil

	_, err := c.Ingest(context.Background(), rec)
	var verr *event.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Missing) != 2 {
		t.Errorf("Missing = %v, want 2 fields", verr.Missing)
	}
	if len(store.calls) != 0 {
		t.Error("nothing should be stored on validation failure")
	}
}

func TestIngest_EmbeddingFailureAborts(t *testing.T) {
	store := &fakeVectorStore{}
	journal := &fakeJournal{}
	embedErr := retrieval.ErrEmbedding
	c := newTestCoordinator(&fakeEmbedder{err: embedErr}, store, journal)

	_, err := c.Ingest(context.Background(), testRecord())
	if !errors.Is(err, retrieval.ErrEmbedding) {
		t.Errorf("err = %v, want ErrEmbedding", err)
	}
	if len(store.calls) != 0 || len(journal.events) != 0 {
		t.Error("nothing should be stored when embedding fails")
	}
}

func TestIngest_JournalFailureIsNonFatal(t *testing.T) {
	store := &fakeVectorStore{}
	journal := &fakeJournal{err: errors.New("disk full")}
	c := newTestCoordinator(&fakeEmbedder{}, store, journal)

	if _, err := c.Ingest(context.Background(), testRecord()); err != nil {
		t.Fatalf("journal failure should not fail ingest: %v", err)
	}
	if len(store.calls) != 1 {
		t.Error("vector store write should still happen")
	}
}

func TestIngest_StoreFailure(t *testing.T) {
	c := newTestCoordinator(&fakeEmbedder{}, &fakeVectorStore{err: errors.New("chroma down")}, nil)

	if _, err := c.Ingest(context.Background(), testRecord()); err == nil {
		t.Fatal("err = nil, want store error")
	}
}

func TestIngest_DocIDUsesReceiveTimeWithoutTimestamp(t *testing.T) {
	store := &fakeVectorStore{}
	c := newTestCoordinator(&fakeEmbedder{}, store, nil)

	rec := testRecord()
	rec.Timestamp = nil

	docID, err := c.Ingest(context.Background(), rec)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	wantMs := time.Date(2023, 11, 20, 9, 30, 0, 0, time.UTC).UnixMilli()
	re := regexp.MustCompile(`^hue-0-living-light_boolean_(\d+)_a1b2c3$`)
	m := re.FindStringSubmatch(docID)
	if m == nil {
		t.Fatalf("docID = %q does not match expected shape", docID)
	}
	if m[1] != strconv.FormatInt(wantMs, 10) {
		t.Errorf("doc id ms = %s, want %d", m[1], wantMs)
	}
	md := store.calls[0].metadatas[0]
	if _, ok := md["original_timestamp_ms"]; ok {
		t.Errorf("original_timestamp_ms = %v, want absent without an event timestamp", md["original_timestamp_ms"])
	}
}

func TestIngest_InvalidTimestampOmitsOriginMs(t *testing.T) {
	store := &fakeVectorStore{}
	c := newTestCoordinator(&fakeEmbedder{}, store, nil)

	rec := testRecord()
	rec.Timestamp = json.RawMessage(`"yesterday"`)

	if _, err := c.Ingest(context.Background(), rec); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	md := store.calls[0].metadatas[0]
	if _, ok := md["original_timestamp_ms"]; ok {
		t.Errorf("original_timestamp_ms = %v, want absent for an unparseable timestamp", md["original_timestamp_ms"])
	}
}

func TestIngestBatch_PerItemResults(t *testing.T) {
	store := &fakeVectorStore{}
	c := NewCoordinator(&fakeEmbedder{}, store, nil, nil)
	c.now = time.Now
	c.randID = randomSuffix

	good := testRecord()
	bad := testRecord()
	bad.DeviceName = ""

	results := c.IngestBatch(context.Background(), []event.Record{good, bad, good})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Error != "" || results[0].DocID == "" {
		t.Errorf("results[0] = %+v, want success", results[0])
	}
	if results[1].Error == "" || results[1].DocID != "" {
		t.Errorf("results[1] = %+v, want validation error", results[1])
	}
	if results[2].Error != "" {
		t.Errorf("results[2] = %+v, want success", results[2])
	}
}
