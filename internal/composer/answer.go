// Package composer turns a question and a retrieved context block into a
// grounded answer from the language model.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/heimdex/heimdex/internal/ollama"
)

const systemPrompt = "You are a helpful assistant.\n" +
	"Answer the user's question based exclusively on the following context.\n" +
	"If the context is not sufficient to answer the question, say so.\n" +
	"Phrase your answers clearly and directly."

// ErrEmptyAnswer is returned when the model replies with nothing usable.
var ErrEmptyAnswer = errors.New("no valid answer from the language model")

// ChatClient is the part of the Ollama client the composer needs.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, options map[string]any) (string, error)
}

// Composer produces answers with a fixed tool model.
type Composer struct {
	client ChatClient
	model  string
}

func New(client ChatClient, model string) *Composer {
	return &Composer{client: client, model: model}
}

// Answer asks the model the question, constrained to the given context
// block. The options map is passed through to the model untouched.
func (c *Composer) Answer(ctx context.Context, question, contextBlock string, options map[string]any) (string, error) {
	messages := []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)},
	}

	reply, err := c.client.Chat(ctx, c.model, messages, options)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyAnswer
	}
	return reply, nil
}
