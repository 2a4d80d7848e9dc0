package composer

import (
	"fmt"
	"strings"

	"github.com/gurukit/gurukit/internal/difficulty"
	"github.com/gurukit/gurukit/internal/generate"
	"github.com/gurukit/gurukit/internal/retrieval"
	"github.com/gurukit/gurukit/internal/storage"
)

// Composer builds generation prompts and assembles answer bundles.
type Composer struct{}

// New creates a Composer.
func New() *Composer {
	return &Composer{}
}

// BuildPrompt assembles the generation prompt for a curriculum question:
// a persona system message keyed to the student's age and standard, the
// retrieved context blocks with source tags, and the difficulty directive.
func (c *Composer) BuildPrompt(student storage.Student, question string, chunks []retrieval.ContextChunk, level difficulty.Level) generate.Prompt {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are an expert tutor helping a %d-year-old student", student.Age)
	if student.Standard != "" {
		fmt.Fprintf(&sys, " in standard %s", student.Standard)
	}
	sys.WriteString(". Explain concepts clearly and simply, suitable for their age and grade level. ")
	sys.WriteString("Use the provided curriculum context to give accurate, curriculum-aligned answers. ")
	sys.WriteString("Do not invent facts beyond the context; if the context does not cover something, say so honestly.")
	if d := difficulty.Directive(level); d != "" {
		sys.WriteString(" ")
		sys.WriteString(d)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s", question)
	if len(chunks) > 0 {
		user.WriteString("\n\nCurriculum context:\n")
		for _, ch := range chunks {
			fmt.Fprintf(&user, "[%s]\n%s\n\n", ch.SourceRef(), ch.Text)
		}
	}

	return generate.Prompt{System: sys.String(), User: strings.TrimRight(user.String(), "\n")}
}

// BuildSmalltalkPrompt assembles the prompt for trivial conversational
// questions, which skip retrieval entirely.
func (c *Composer) BuildSmalltalkPrompt(student storage.Student, question string) generate.Prompt {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are a helpful, friendly tutor for a %d-year-old student", student.Age)
	if student.Standard != "" {
		fmt.Fprintf(&sys, " in standard %s", student.Standard)
	}
	sys.WriteString(". Answer briefly and warmly. Be encouraging and make learning fun. ")
	sys.WriteString("If you don't know something, admit it honestly.")

	return generate.Prompt{
		System: sys.String(),
		User:   fmt.Sprintf("Question: %s", question),
	}
}

// Bundle assembles the final AnswerBundle from generated text and
// retrieved context, applying the difficulty formatter and capping
// sources and images.
func (c *Composer) Bundle(question, text string, chunks []retrieval.ContextChunk, level difficulty.Level, status CacheStatus, provider string) AnswerBundle {
	sources := make([]string, 0, len(chunks))
	var images []string
	for _, ch := range chunks {
		if len(sources) < MaxSources {
			if ref := ch.SourceRef(); ref != "" {
				sources = append(sources, ref)
			}
		}
		for _, img := range ch.Images {
			if len(images) < MaxImages {
				images = append(images, img)
			}
		}
	}

	return AnswerBundle{
		Question:    question,
		Text:        difficulty.Format(text, level),
		Sources:     sources,
		Images:      images,
		Difficulty:  level,
		CacheStatus: status,
		Provider:    provider,
	}
}
