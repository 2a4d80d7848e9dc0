// Package difficulty infers the complexity level a response should
// target from the current question and recent conversation turns.
package difficulty

import (
	"regexp"
	"strings"

	"github.com/gurukit/gurukit/internal/storage"
)

// Level directs the vocabulary and depth of a generated answer.
type Level string

const (
	Simple   Level = "simple"
	Normal   Level = "normal"
	Advanced Level = "advanced"
)

// smoothingWindow is how many recent turns vote when the current
// question carries no explicit signal.
const smoothingWindow = 3

// Confusion and advanced-request phrase sets. Kept as data so they can
// be extended without touching the classification flow.
var confusionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(don't|dont|do not) understand\b`),
	regexp.MustCompile(`\bconfused?\b`),
	regexp.MustCompile(`\bexplain (simpler|simple|easier|easy|basic|clearly)\b`),
	regexp.MustCompile(`\bi'?m lost\b`),
	regexp.MustCompile(`\btoo (hard|difficult|complex|complicated)\b`),
	regexp.MustCompile(`\bcan you (simplify|make it simple|explain better)\b`),
	regexp.MustCompile(`\bnot clear\b`),
	regexp.MustCompile(`\bwhat (do|does) (that|this|it) mean\b`),
	regexp.MustCompile(`\bin simple (words|terms|language)\b`),
	regexp.MustCompile(`\blike i'?m \d+( years old)?\b`),
	regexp.MustCompile(`\bbreak it down\b`),
}

var advancedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(more|further) details?\b`),
	regexp.MustCompile(`\b(deeper|in depth)\b`),
	regexp.MustCompile(`\btechnical(ly)?\b`),
	regexp.MustCompile(`\badvanced (explanation|concept)\b`),
	regexp.MustCompile(`\bscientific (terms|explanation)\b`),
	regexp.MustCompile(`\bprecise(ly)?\b`),
	regexp.MustCompile(`\bexact definition\b`),
}

// Result is the classification outcome. RepeatPrevious is set when the
// utterance is a confusion signal about the previous answer rather than
// a new question; the pipeline then regenerates the prior question at
// Simple level (only possible when history is non-empty).
type Result struct {
	Level          Level
	RepeatPrevious bool
}

// Classify determines the level for the current question given the
// user's recent turns (newest first).
func Classify(question string, history []storage.ConversationTurn) Result {
	lower := strings.ToLower(question)

	if matchesAny(lower, confusionPatterns) {
		return Result{Level: Simple, RepeatPrevious: len(history) > 0}
	}
	if matchesAny(lower, advancedPatterns) {
		return Result{Level: Advanced}
	}
	return Result{Level: smooth(history)}
}

// smooth takes a majority vote over the last few turns' levels to avoid
// oscillation; ties and empty history fall back to Normal.
func smooth(history []storage.ConversationTurn) Level {
	window := history
	if len(window) > smoothingWindow {
		window = window[:smoothingWindow]
	}

	counts := map[Level]int{}
	for _, turn := range window {
		counts[Level(turn.Difficulty)]++
	}

	if counts[Simple] > counts[Normal] && counts[Simple] > counts[Advanced] {
		return Simple
	}
	if counts[Advanced] > counts[Normal] && counts[Advanced] > counts[Simple] {
		return Advanced
	}
	return Normal
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
