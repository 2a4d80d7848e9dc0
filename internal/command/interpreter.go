// Package command detects explicit memory commands ("save this",
// "forget this") in free text before any retrieval happens.
package command

import (
	"regexp"
	"strings"
)

// Intent is the detected memory command.
type Intent int

const (
	// None means the text is an ordinary question.
	None Intent = iota
	// SaveMemory asks to persist the most recent exchange.
	SaveMemory
	// ForgetMemory asks to remove the most recent exchange from memory.
	ForgetMemory
)

// String returns the intent name for logging.
func (i Intent) String() string {
	switch i {
	case SaveMemory:
		return "save_memory"
	case ForgetMemory:
		return "forget_memory"
	default:
		return "none"
	}
}

// rule pairs a phrase pattern with the intent it signals. Rules are
// evaluated in order; the first match wins, which is how save intent
// takes precedence over forget on contradictory input.
type rule struct {
	pattern *regexp.Regexp
	intent  Intent
}

var rules = []rule{
	{regexp.MustCompile(`\bsave (this|that|it)\b`), SaveMemory},
	{regexp.MustCompile(`\bremember (this|that|it)\b`), SaveMemory},
	{regexp.MustCompile(`\bsave (this |that |it )?(in|to) (your |my )?memory\b`), SaveMemory},
	{regexp.MustCompile(`\bkeep (this|that) for later\b`), SaveMemory},
	{regexp.MustCompile(`\bforget (this|that|it)\b`), ForgetMemory},
	{regexp.MustCompile(`\bremove (this|that|it)?\s*(from|out of) (your |my )?memory\b`), ForgetMemory},
	{regexp.MustCompile(`\bdelete (this|that|it)\b`), ForgetMemory},
	{regexp.MustCompile(`\bremove this information\b`), ForgetMemory},
}

// Interpret classifies the text. The phrase sets are fixed; anything
// not matching a rule is handled as a question by the pipeline.
func Interpret(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return None
	}
	for _, r := range rules {
		if r.pattern.MatchString(lower) {
			return r.intent
		}
	}
	return None
}
