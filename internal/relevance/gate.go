// Package relevance decides whether retrieved context is trustworthy
// enough to answer from. It is the first-line defense against
// fabricated answers: below-threshold matches are rejected before the
// text generator is ever called.
package relevance

import "log/slog"

// DefaultThreshold is the minimum best-match similarity accepted.
// Tunable per deployment; sensible range is 0.35–0.60.
const DefaultThreshold = 0.40

// Gate applies the similarity threshold.
type Gate struct {
	threshold float64
}

// New creates a Gate. If threshold <= 0, DefaultThreshold is used.
func New(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the configured minimum similarity.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Accept reports whether the best similarity clears the threshold
// (boundary inclusive). Retrieval failures and empty result sets are
// passed in as 0 and therefore always rejected.
func (g *Gate) Accept(bestSimilarity float64) bool {
	return bestSimilarity >= g.threshold
}

// Check is Accept plus the rejection log line used for curriculum-gap
// analysis.
func (g *Gate) Check(question string, bestSimilarity float64) bool {
	if g.Accept(bestSimilarity) {
		return true
	}
	slog.Info("question rejected by relevance gate",
		"question", question,
		"similarity", bestSimilarity,
		"threshold", g.threshold,
	)
	return false
}
