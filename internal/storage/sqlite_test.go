package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "heimdex.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := Event{
		DocID:        "hue-0-light_boolean_1700000000000_a1b2c3",
		DeviceName:   "hue.0.light",
		EventType:    "on",
		DataType:     "boolean",
		Location:     "living room",
		Text:         "Living room light is on at 17:33:20 14.11.2023",
		TimestampISO: "2023-11-14T17:33:20Z",
	}
	if err := s.SaveEvent(ctx, e); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	got, err := s.GetEvent(ctx, e.DocID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.DeviceName != e.DeviceName || got.Text != e.Text || got.Location != e.Location {
		t.Errorf("GetEvent = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on save")
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetEvent(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveEvent_ReplaceOnDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := Event{DocID: "doc-1", DeviceName: "d", EventType: "on", DataType: "boolean", Location: "unknown", Text: "first", TimestampISO: "t"}
	if err := s.SaveEvent(ctx, e); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	e.Text = "second"
	if err := s.SaveEvent(ctx, e); err != nil {
		t.Fatalf("SaveEvent replace: %v", err)
	}

	got, err := s.GetEvent(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Text != "second" {
		t.Errorf("Text = %q, want second", got.Text)
	}
}

func TestListEvents_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2023, 11, 20, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := Event{
			DocID:      []string{"doc-a", "doc-b", "doc-c"}[i],
			DeviceName: "d", EventType: "on", DataType: "boolean",
			Location: "unknown", Text: "t", TimestampISO: "t",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveEvent(ctx, e); err != nil {
			t.Fatalf("SaveEvent: %v", err)
		}
	}

	events, err := s.ListEvents(ctx, 2)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].DocID != "doc-c" || events[1].DocID != "doc-b" {
		t.Errorf("order = %s, %s; want doc-c, doc-b", events[0].DocID, events[1].DocID)
	}

	n, err := s.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if n != 3 {
		t.Errorf("CountEvents = %d, want 3", n)
	}
}

func TestSaveAndListInteractions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := Interaction{
		ID:          "11111111-1111-1111-1111-111111111111",
		Question:    "Is the light on?",
		Answer:      "Yes, the living room light is on.",
		Status:      StatusAnswered,
		ContextDocs: 3,
	}
	if err := s.SaveInteraction(ctx, in); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	list, err := s.ListInteractions(ctx, 10)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d interactions, want 1", len(list))
	}
	got := list[0]
	if got.Question != in.Question || got.Status != StatusAnswered || got.ContextDocs != 3 {
		t.Errorf("interaction = %+v", got)
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heimdex.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.SaveEvent(context.Background(), Event{DocID: "doc-1", DeviceName: "d", EventType: "on", DataType: "boolean", Location: "unknown", Text: "t", TimestampISO: "t"}); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetEvent(context.Background(), "doc-1"); err != nil {
		t.Errorf("data should survive reopen: %v", err)
	}
}
