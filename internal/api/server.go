// Package api exposes the ingestion and question answering pipeline over
// HTTP and over MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/heimdex/heimdex/internal/event"
	"github.com/heimdex/heimdex/internal/ingest"
	"github.com/heimdex/heimdex/internal/rag"
	"github.com/heimdex/heimdex/internal/retrieval"
	"github.com/heimdex/heimdex/internal/storage"
)

const maxBodyBytes = 1 << 20

// Ingestor runs the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, rec event.Record) (string, error)
	IngestBatch(ctx context.Context, recs []event.Record) []ingest.BatchResult
}

// Answerer runs the question answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string, options map[string]any) (rag.Result, error)
}

// Journal lists the stored history surfaces.
type Journal interface {
	ListEvents(ctx context.Context, limit int) ([]storage.Event, error)
	ListInteractions(ctx context.Context, limit int) ([]storage.Interaction, error)
}

// Deps carries everything the HTTP handlers need.
type Deps struct {
	Ingestor Ingestor
	Answerer Answerer
	Journal  Journal
	APIToken string
	Logger   *slog.Logger
}

// NewRouter builds the HTTP surface. The journal endpoints require bearer
// auth when an API token is configured.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/openapi.json", handleOpenAPI)

	r.Post("/iobroker-event", handleIngest(deps))
	r.Post("/iobroker-events", handleIngestBatch(deps))
	r.Post("/tools/get_iobroker_data_answer", handleAnswer(deps))

	r.Group(func(r chi.Router) {
		if deps.APIToken != "" {
			r.Use(BearerAuth(deps.APIToken))
		}
		r.Get("/events", handleListEvents(deps))
		r.Get("/interactions", handleListInteractions(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec event.Record
		if err := decodeBody(w, r, &rec); err != nil {
			ingestError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}

		docID, err := deps.Ingestor.Ingest(r.Context(), rec)
		if err != nil {
			writeIngestError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Event processed and stored",
			"doc_id":  docID,
		})
	}
}

func handleIngestBatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var recs []event.Record
		if err := decodeBody(w, r, &recs); err != nil {
			ingestError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		if len(recs) == 0 {
			ingestError(w, http.StatusBadRequest, "Empty event batch")
			return
		}

		results := deps.Ingestor.IngestBatch(r.Context(), recs)
		stored := 0
		for _, res := range results {
			if res.Error == "" {
				stored++
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"stored":  stored,
			"results": results,
		})
	}
}

func handleAnswer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserQuery string         `json:"user_query"`
			Options   map[string]any `json:"options"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		if req.UserQuery == "" {
			httpError(w, http.StatusBadRequest, "Parameter 'user_query' is missing")
			return
		}

		res, err := deps.Answerer.Answer(r.Context(), req.UserQuery, req.Options)
		if err != nil {
			if errors.Is(err, retrieval.ErrEmbedding) {
				httpError(w, http.StatusInternalServerError, "Error generating embedding")
				return
			}
			deps.Logger.Error("answering failed", "error", err)
			httpError(w, http.StatusInternalServerError, fmt.Sprintf("Error in RAG pipeline: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"answer": res.Answer})
	}
}

func handleListEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50)
		events, err := deps.Journal.ListEvents(r.Context(), limit)
		if err != nil {
			deps.Logger.Error("listing events failed", "error", err)
			httpError(w, http.StatusInternalServerError, "Error listing events")
			return
		}
		if events == nil {
			events = []storage.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50)
		interactions, err := deps.Journal.ListInteractions(r.Context(), limit)
		if err != nil {
			deps.Logger.Error("listing interactions failed", "error", err)
			httpError(w, http.StatusInternalServerError, "Error listing interactions")
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
	}
}

func writeIngestError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *event.ValidationError
	switch {
	case errors.As(err, &verr):
		ingestError(w, http.StatusBadRequest,
			fmt.Sprintf("Missing required fields: %s", strings.Join(verr.Missing, ", ")))
	case errors.Is(err, retrieval.ErrEmbedding):
		ingestError(w, http.StatusInternalServerError, "Error generating embedding")
	default:
		logger.Error("ingest failed", "error", err)
		ingestError(w, http.StatusInternalServerError, fmt.Sprintf("Error storing event: %v", err))
	}
}

// ingestError writes the {status,message} error shape used by the ingest
// endpoints. The query endpoint uses the plain {error} shape instead.
func ingestError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
