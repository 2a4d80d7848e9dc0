// Package retrieval finds curriculum chunks relevant to a student's
// question via embedding similarity search.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Embedder produces embedding vectors for question text.
// Satisfied by *ollama.Client via a thin adapter in the caller.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContextChunk is one retrieved curriculum passage with its provenance
// and similarity score, ready for prompt assembly.
type ContextChunk struct {
	Standard   string
	Subject    string
	Chapter    string
	Page       int
	Text       string
	Images     []string
	Similarity float32
}

// SourceRef formats the chunk's provenance as a citation string.
func (c ContextChunk) SourceRef() string {
	var b strings.Builder
	if c.Standard != "" {
		fmt.Fprintf(&b, "Std %s", c.Standard)
	}
	if c.Subject != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Subject)
	}
	if c.Chapter != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "Ch %s", c.Chapter)
	}
	if c.Page > 0 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "p.%d", c.Page)
	}
	return b.String()
}

// Retriever embeds a question and searches the vector store for the
// most similar curriculum chunks.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	topK     int
}

// NewRetriever creates a Retriever. topK values below 1 fall back to 5.
func NewRetriever(embedder Embedder, store VectorStore, topK int) *Retriever {
	if topK < 1 {
		topK = 5
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve returns up to topK curriculum chunks similar to the question,
// scoped to the student's standard, in descending similarity order.
func (r *Retriever) Retrieve(ctx context.Context, question string, scope Scope) ([]ContextChunk, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	scored, err := r.store.Search(ctx, vector, r.topK, scope)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	chunks := make([]ContextChunk, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, ContextChunk{
			Standard:   s.Standard,
			Subject:    s.Subject,
			Chapter:    s.Chapter,
			Page:       s.Page,
			Text:       s.Text,
			Images:     decodeImages(s.Images),
			Similarity: s.Score,
		})
	}
	return chunks, nil
}

// decodeImages parses the stored JSON image list, tolerating bad data.
func decodeImages(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		slog.Warn("unparseable image list in curriculum chunk", "error", err)
		return nil
	}
	return images
}
