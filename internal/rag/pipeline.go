// Package rag answers free-text questions about the home by retrieving
// stored event texts and asking the language model to answer from them.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex/internal/retrieval"
	"github.com/heimdex/heimdex/internal/storage"
)

// QueryEmbedder embeds the user's question.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContextBuilder retrieves and formats the grounding context.
type ContextBuilder interface {
	BuildContext(ctx context.Context, embedding []float32) (string, int)
}

// AnswerComposer produces the final answer from question and context.
type AnswerComposer interface {
	Answer(ctx context.Context, question, contextBlock string, options map[string]any) (string, error)
}

// InteractionJournal records question/answer exchanges.
type InteractionJournal interface {
	SaveInteraction(ctx context.Context, in storage.Interaction) error
}

// Result carries the answer plus how it was produced.
type Result struct {
	Answer        string
	ContextDocs   int
	InteractionID string
}

// Pipeline wires the retrieval-augmented answering flow.
type Pipeline struct {
	embedder QueryEmbedder
	builder  ContextBuilder
	composer AnswerComposer
	journal  InteractionJournal
	logger   *slog.Logger
}

func NewPipeline(embedder QueryEmbedder, builder ContextBuilder, composer AnswerComposer, journal InteractionJournal, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		builder:  builder,
		composer: composer,
		journal:  journal,
		logger:   logger,
	}
}

// Answer runs the full flow for one question. Options are forwarded to the
// language model. Retrieval failure is not fatal; the model is told that
// nothing was found and answers accordingly.
func (p *Pipeline) Answer(ctx context.Context, question string, options map[string]any) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("empty question")
	}

	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, err
	}

	contextBlock, docs := p.builder.BuildContext(ctx, vec)
	p.logger.Debug("context built", "documents", docs)

	answer, err := p.composer.Answer(ctx, question, contextBlock, options)
	if err != nil {
		p.record(ctx, question, "", storage.StatusFailed, docs)
		return Result{}, err
	}

	status := storage.StatusAnswered
	if contextBlock == retrieval.NoContextSentinel {
		status = storage.StatusNoContext
	}
	id := p.record(ctx, question, answer, status, docs)

	return Result{Answer: answer, ContextDocs: docs, InteractionID: id}, nil
}

// record journals the exchange best-effort and returns the interaction id.
func (p *Pipeline) record(ctx context.Context, question, answer, status string, docs int) string {
	if p.journal == nil {
		return ""
	}
	id := uuid.NewString()
	err := p.journal.SaveInteraction(ctx, storage.Interaction{
		ID:          id,
		Question:    question,
		Answer:      answer,
		Status:      status,
		ContextDocs: docs,
	})
	if err != nil {
		p.logger.Warn("journaling interaction failed", "error", err)
		return ""
	}
	return id
}
