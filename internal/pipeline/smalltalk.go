package pipeline

import (
	"regexp"
	"strings"
)

// smalltalkPatterns match non-educational conversational input that
// should bypass all retrieval tiers and go straight to a lightweight
// persona prompt. Kept as data so the set can grow without touching
// pipeline control flow.
var smalltalkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hii+|hello|hey|yo)\b`),
	regexp.MustCompile(`^good (morning|afternoon|evening|night)\b`),
	regexp.MustCompile(`^(thanks|thank you|thankyou|thx)\b`),
	regexp.MustCompile(`^(bye|goodbye|see you|good night)\b`),
	regexp.MustCompile(`^how are you\b`),
	regexp.MustCompile(`^(who|what) are you\b`),
	regexp.MustCompile(`^what('s| is) your name\b`),
}

// isSmalltalk reports whether the question is casual conversation
// rather than an educational query.
func isSmalltalk(question string) bool {
	lower := strings.ToLower(strings.TrimSpace(question))
	if lower == "" {
		return false
	}
	for _, p := range smalltalkPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
