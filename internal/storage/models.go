package storage

import "time"

// Event is a journaled copy of an ingested event, kept alongside the
// vector store for listing and auditing.
type Event struct {
	DocID        string    `json:"doc_id"`
	DeviceName   string    `json:"device_name"`
	EventType    string    `json:"event_type"`
	DataType     string    `json:"data_type"`
	Location     string    `json:"location"`
	Text         string    `json:"text"`
	TimestampISO string    `json:"timestamp_iso"`
	CreatedAt    time.Time `json:"created_at"`
}

// Interaction records one question/answer exchange.
type Interaction struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Status      string    `json:"status"`
	ContextDocs int       `json:"context_docs"`
	CreatedAt   time.Time `json:"created_at"`
}

// Interaction status values.
const (
	StatusAnswered  = "answered"
	StatusNoContext = "no_context"
	StatusFailed    = "failed"
)
