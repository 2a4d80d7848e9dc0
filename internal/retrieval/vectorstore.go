package retrieval

import (
	"context"
	"time"
)

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force
// cosine similarity; ANN-capable backends can be swapped in behind the
// same contract.
type VectorStore interface {
	// Insert adds curriculum chunk records to the index.
	Insert(records []Record) error

	// Search performs vector similarity search within the given
	// curriculum scope, returning the top-K most similar records in
	// descending similarity order. An empty scope searches everything.
	Search(ctx context.Context, vector []float32, topK int, scope Scope) ([]ScoredRecord, error)

	// Count returns the number of indexed records.
	Count() (int, error)
}

// Scope restricts retrieval to the requester's curriculum subset.
type Scope struct {
	Standard string
}

// IsZero reports whether the scope imposes no restriction.
func (s Scope) IsZero() bool {
	return s.Standard == ""
}

// Record represents one curriculum chunk in the vector index.
// Images holds a JSON array stored as text.
type Record struct {
	ID        string
	Standard  string
	Subject   string
	Chapter   string
	Page      int
	Text      string
	Embedding []float32
	Images    string
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
