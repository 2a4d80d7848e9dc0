// Package composer assembles generation prompts and final answer
// bundles from student profiles, retrieved curriculum context, and
// difficulty directives.
package composer

import (
	"github.com/gurukit/gurukit/internal/difficulty"
)

// Caps on bundle provenance. Retrieval may surface more; the bundle
// carries only the most relevant.
const (
	MaxSources = 10
	MaxImages  = 5
)

// CacheStatus tags how an answer was produced.
type CacheStatus string

const (
	StatusPermanent CacheStatus = "permanent"
	StatusCached    CacheStatus = "cached"
	StatusGenerated CacheStatus = "generated"
	StatusRejected  CacheStatus = "rejected"
	StatusSmalltalk CacheStatus = "smalltalk"
	StatusCommand   CacheStatus = "command"
	StatusError     CacheStatus = "error"
)

// AnswerBundle is the complete response to one question: the answer
// text plus its provenance and production metadata. Every pipeline
// outcome, including rejections and errors, resolves to a well-formed
// bundle.
type AnswerBundle struct {
	Question    string           `json:"question"`
	Text        string           `json:"text"`
	Sources     []string         `json:"sources,omitempty"`
	Images      []string         `json:"images,omitempty"`
	Difficulty  difficulty.Level `json:"difficulty"`
	CacheStatus CacheStatus      `json:"cache_status"`
	Provider    string           `json:"provider,omitempty"`
}
