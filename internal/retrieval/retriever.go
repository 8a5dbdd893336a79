package retrieval

import (
	"context"
	"log/slog"
	"strings"
)

// NoContextSentinel is the context block used when retrieval returns
// nothing or fails. The answer composer passes it to the model verbatim so
// the model can state that no information was found.
const NoContextSentinel = "No specific information found for this question in the database."

const contextHeader = "Relevant information from the database:\n"

// DefaultNResults is how many documents a query retrieves unless
// configured otherwise.
const DefaultNResults = 10

// DocumentQuerier is the vector store operation the retriever needs.
type DocumentQuerier interface {
	QueryDocuments(ctx context.Context, embedding []float32, nResults int) ([]string, error)
}

// Retriever finds stored documents relevant to a query embedding and
// formats them into a context block.
type Retriever struct {
	store    DocumentQuerier
	nResults int
	logger   *slog.Logger
}

func NewRetriever(store DocumentQuerier, nResults int, logger *slog.Logger) *Retriever {
	if nResults <= 0 {
		nResults = DefaultNResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, nResults: nResults, logger: logger}
}

// BuildContext queries the store with the embedding and returns a bulleted
// context block plus the number of documents it contains. A store failure
// is downgraded to the sentinel: the caller still gets an answer, just an
// ungrounded one.
func (r *Retriever) BuildContext(ctx context.Context, embedding []float32) (string, int) {
	docs, err := r.store.QueryDocuments(ctx, embedding, r.nResults)
	if err != nil {
		r.logger.Warn("vector store query failed, answering without context", "error", err)
		return NoContextSentinel, 0
	}
	if len(docs) == 0 {
		return NoContextSentinel, 0
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, doc := range docs {
		b.WriteString("- ")
		b.WriteString(doc)
		b.WriteString("\n")
	}
	return b.String(), len(docs)
}
