// Package storage persists an event journal and interaction history in
// SQLite. The vector store remains the source of truth for retrieval; this
// journal exists for listing, auditing, and the history surfaces.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc's driver serializes access; one connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version TEXT PRIMARY KEY, applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version WHERE version = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		script, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(script)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveEvent journals one ingested event. Re-ingesting the same doc id
// overwrites the previous row.
func (s *Store) SaveEvent(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (doc_id, device_name, event_type, data_type, location, text, timestamp_iso, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DocID, e.DeviceName, e.EventType, e.DataType, e.Location, e.Text, e.TimestampISO, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving event %s: %w", e.DocID, err)
	}
	return nil
}

// GetEvent returns the journaled event with the given doc id.
func (s *Store) GetEvent(ctx context.Context, docID string) (Event, error) {
	var e Event
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, device_name, event_type, data_type, location, text, timestamp_iso, created_at
		FROM events WHERE doc_id = ?`, docID).
		Scan(&e.DocID, &e.DeviceName, &e.EventType, &e.DataType, &e.Location, &e.Text, &e.TimestampISO, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("loading event %s: %w", docID, err)
	}
	return e, nil
}

// ListEvents returns the most recently journaled events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, device_name, event_type, data_type, location, text, timestamp_iso, created_at
		FROM events ORDER BY created_at DESC, doc_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.DocID, &e.DeviceName, &e.EventType, &e.DataType, &e.Location, &e.Text, &e.TimestampISO, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of journaled events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// SaveInteraction records one question/answer exchange.
func (s *Store) SaveInteraction(ctx context.Context, in Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, question, answer, status, context_docs, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Question, in.Answer, in.Status, in.ContextDocs, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving interaction %s: %w", in.ID, err)
	}
	return nil
}

// ListInteractions returns the most recent exchanges, newest first.
func (s *Store) ListInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, status, context_docs, created_at
		FROM interactions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.Question, &in.Answer, &in.Status, &in.ContextDocs, &in.CreatedAt); err != nil {
			return nil, err
		}
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}
