package difficulty

import "strings"

// Directive returns the natural-language instruction appended to the
// generation prompt for the level.
func Directive(level Level) string {
	switch level {
	case Simple:
		return "The student is confused or needs a simpler explanation. " +
			"Use very simple language, short sentences, and everyday examples. " +
			"Break the concept into small numbered steps and avoid technical jargon. " +
			"Explain one idea at a time."
	case Advanced:
		return "The student wants a detailed, advanced explanation. " +
			"Use proper technical terminology, provide in-depth analysis with " +
			"scientific and mathematical precision, and assume a higher comprehension level."
	default:
		return "Provide a clear, balanced explanation suitable for the student's grade level. " +
			"Use grade-appropriate language, include relevant examples, and balance detail with clarity."
	}
}

// Format injects structural scaffolding appropriate to the level
// without altering the factual content.
func Format(content string, level Level) string {
	switch level {
	case Simple:
		if strings.Contains(strings.ToLower(content), "step") {
			return content + "\n\nDoes this make sense now?"
		}
		return "Let me explain this simply:\n\n" + content +
			"\n\nKey point: take it one step at a time!"
	case Advanced:
		return content + "\n\nFurther reading: explore related advanced topics for deeper understanding."
	default:
		return content
	}
}
