package ollama

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// EnsureReady checks that Ollama is reachable and reports whether the
// embedding and tool models are available, writing diagnostics to w.
// Missing models are a warning, not an error: the operator may pull them
// while the service is running, and the first request will simply fail
// until then. Returns a non-nil error only when Ollama is unreachable.
func EnsureReady(ctx context.Context, c *Client, embedModel, toolModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}

	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	for _, model := range []string{embedModel, toolModel} {
		if hasName(models, model) {
			fmt.Fprintf(w, "model %s: available\n", model)
			continue
		}
		fmt.Fprintf(w, "WARNING: model %s not found on Ollama server. Pull it with: ollama pull %s (available: %s)\n",
			model, model, strings.Join(models, ", "))
	}

	return nil
}

func hasName(models []string, name string) bool {
	for _, m := range models {
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}
