// Package pipeline orchestrates the tiered answer flow: memory
// commands, smalltalk, permanent memory, shared cache, and finally
// live retrieval plus generation behind the relevance gate.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gurukit/gurukit/internal/cache"
	"github.com/gurukit/gurukit/internal/command"
	"github.com/gurukit/gurukit/internal/composer"
	"github.com/gurukit/gurukit/internal/difficulty"
	"github.com/gurukit/gurukit/internal/fingerprint"
	"github.com/gurukit/gurukit/internal/generate"
	"github.com/gurukit/gurukit/internal/observability"
	"github.com/gurukit/gurukit/internal/relevance"
	"github.com/gurukit/gurukit/internal/retrieval"
	"github.com/gurukit/gurukit/internal/storage"
)

// User-visible fixed responses. The pipeline never surfaces raw errors;
// every outcome resolves to a well-formed bundle with one of these texts.
const (
	msgNothingToSave  = "There's nothing to save yet. Ask me a question first!"
	msgNothingToDrop  = "There's nothing to forget yet. Ask me a question first!"
	msgMemoryNotFound = "I couldn't find that in your saved memory."
	msgNotInCurriculum = "I couldn't find this topic in your curriculum. " +
		"Try rephrasing your question, or ask about something from your textbook."
	msgGenerationDown = "Sorry, I'm having trouble generating an answer right now. Please try again later."
	msgMemoryDown     = "Sorry, I couldn't update your saved memory right now. Please try again later."
)

// historyDepth is how many recent turns feed difficulty smoothing and
// command resolution.
const historyDepth = 3

// Retriever finds curriculum chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, scope retrieval.Scope) ([]retrieval.ContextChunk, error)
}

// TextGenerator produces answer text, reporting which provider served it.
// Satisfied by *generate.Chain.
type TextGenerator interface {
	Generate(ctx context.Context, preferred string, p generate.Prompt) (text, provider string, err error)
}

// Answerer runs the full answer state machine for one question.
type Answerer struct {
	store     *storage.Store
	cache     *cache.Store
	retriever Retriever
	gate      *relevance.Gate
	generator TextGenerator
	composer  *composer.Composer
	metrics   *observability.Metrics
	primary   string

	// Concurrent identical questions share one retrieval+generation.
	inflight singleflight.Group
}

// NewAnswerer wires the pipeline. primary names the default provider;
// it is used to detect fallbacks for observability.
func NewAnswerer(
	store *storage.Store,
	cacheStore *cache.Store,
	retriever Retriever,
	gate *relevance.Gate,
	generator TextGenerator,
	comp *composer.Composer,
	metrics *observability.Metrics,
	primary string,
) *Answerer {
	return &Answerer{
		store:     store,
		cache:     cacheStore,
		retriever: retriever,
		gate:      gate,
		generator: generator,
		composer:  comp,
		metrics:   metrics,
		primary:   primary,
	}
}

// Answer resolves one question for one user into an AnswerBundle.
// modelChoice optionally names the preferred provider; empty selects
// the configured default.
func (a *Answerer) Answer(ctx context.Context, userID, question, modelChoice string) composer.AnswerBundle {
	start := time.Now()
	bundle := a.answer(ctx, userID, question, modelChoice)
	a.metrics.ObserveAnswer(string(bundle.CacheStatus), time.Since(start))
	return bundle
}

func (a *Answerer) answer(ctx context.Context, userID, question, modelChoice string) composer.AnswerBundle {
	history, err := a.store.GetRecentTurns(userID, historyDepth)
	if err != nil {
		slog.Warn("loading conversation history", "user", userID, "error", err)
		history = nil
	}

	// 1. Memory commands short-circuit everything.
	if intent := command.Interpret(question); intent != command.None {
		return a.handleCommand(userID, question, intent, history)
	}

	student := a.loadStudent(userID)

	// 2. Smalltalk bypasses all retrieval tiers.
	if isSmalltalk(question) {
		return a.handleSmalltalk(ctx, student, question)
	}

	result := difficulty.Classify(question, history)
	level := result.Level

	// Confusion about a previous answer regenerates that question at
	// simple level instead of treating the utterance as a new question.
	effective := question
	repeat := false
	if result.RepeatPrevious {
		effective = history[0].Question
		repeat = true
		slog.Info("regenerating previous answer at simple level", "user", userID, "question", effective)
	}

	fp := fingerprint.Of(effective)

	// 3 & 4. Cache tiers, skipped when regenerating: a cached answer is
	// exactly what the student just failed to understand.
	if !repeat {
		if b, ok := a.lookupPermanent(userID, fp, effective, level); ok {
			return b
		}
		if b, ok := a.lookupShared(fp, effective, level); ok {
			return b
		}
	}

	// 5–7. Live retrieval, gate, generation, compose, persist.
	return a.answerLive(ctx, student, effective, fp, level, modelChoice, repeat)
}

func (a *Answerer) loadStudent(userID string) storage.Student {
	student, err := a.store.GetStudent(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Student{UserID: userID, Age: 12}
	}
	if err != nil {
		slog.Warn("loading student profile", "user", userID, "error", err)
		return storage.Student{UserID: userID, Age: 12}
	}
	return student
}

// handleCommand resolves "this" to the most recent turn and applies the
// save or forget intent. Detected commands never reach retrieval.
func (a *Answerer) handleCommand(userID, question string, intent command.Intent, history []storage.ConversationTurn) composer.AnswerBundle {
	commandBundle := func(text string) composer.AnswerBundle {
		return composer.AnswerBundle{
			Question:    question,
			Text:        text,
			Difficulty:  difficulty.Normal,
			CacheStatus: composer.StatusCommand,
		}
	}

	if len(history) == 0 {
		if intent == command.SaveMemory {
			return commandBundle(msgNothingToSave)
		}
		return commandBundle(msgNothingToDrop)
	}

	last := history[0]
	fp := fingerprint.Of(last.Question)

	switch intent {
	case command.SaveMemory:
		entry := storage.MemoryEntry{
			UserID:      userID,
			Fingerprint: fp,
			Question:    last.Question,
			Answer:      last.Answer,
			Sources:     last.Sources,
			Images:      last.Images,
		}
		if err := a.cache.SaveMemory(entry); err != nil {
			slog.Error("saving memory entry", "user", userID, "error", err)
			return commandBundle(msgMemoryDown)
		}
		return commandBundle(fmt.Sprintf("Saved to your memory: %q", last.Question))

	case command.ForgetMemory:
		err := a.cache.ForgetMemory(userID, fp)
		if errors.Is(err, storage.ErrNotFound) {
			return commandBundle(msgMemoryNotFound)
		}
		if err != nil {
			slog.Error("removing memory entry", "user", userID, "error", err)
			return commandBundle(msgMemoryDown)
		}
		return commandBundle(fmt.Sprintf("Removed from your memory: %q", last.Question))
	}

	return commandBundle(msgNothingToSave)
}

func (a *Answerer) handleSmalltalk(ctx context.Context, student storage.Student, question string) composer.AnswerBundle {
	prompt := a.composer.BuildSmalltalkPrompt(student, question)
	text, provider, err := a.generator.Generate(ctx, "", prompt)
	if err != nil {
		slog.Error("smalltalk generation failed", "error", err)
		return a.errorBundle(question)
	}
	return composer.AnswerBundle{
		Question:    question,
		Text:        text,
		Difficulty:  difficulty.Normal,
		CacheStatus: composer.StatusSmalltalk,
		Provider:    provider,
	}
}

func (a *Answerer) lookupPermanent(userID, fp, question string, level difficulty.Level) (composer.AnswerBundle, bool) {
	entry, ok, err := a.cache.LookupPermanent(userID, fp)
	if err != nil {
		slog.Warn("permanent memory lookup failed", "user", userID, "error", err)
		return composer.AnswerBundle{}, false
	}
	if !ok {
		return composer.AnswerBundle{}, false
	}
	a.metrics.CacheHits.WithLabelValues("permanent").Inc()
	return composer.AnswerBundle{
		Question:    question,
		Text:        entry.Answer,
		Sources:     decodeList(entry.Sources),
		Images:      decodeList(entry.Images),
		Difficulty:  level,
		CacheStatus: composer.StatusPermanent,
	}, true
}

func (a *Answerer) lookupShared(fp, question string, level difficulty.Level) (composer.AnswerBundle, bool) {
	entry, ok, err := a.cache.LookupShared(fp)
	if err != nil {
		slog.Warn("shared cache lookup failed", "error", err)
		return composer.AnswerBundle{}, false
	}
	if !ok {
		return composer.AnswerBundle{}, false
	}
	a.metrics.CacheHits.WithLabelValues("shared").Inc()
	lvl := level
	if entry.Difficulty != "" {
		lvl = difficulty.Level(entry.Difficulty)
	}
	return composer.AnswerBundle{
		Question:    question,
		Text:        entry.Answer,
		Sources:     decodeList(entry.Sources),
		Images:      decodeList(entry.Images),
		Difficulty:  lvl,
		CacheStatus: composer.StatusCached,
		Provider:    entry.Provider,
	}, true
}

// liveResult is the shared outcome of one deduplicated retrieval+generation.
type liveResult struct {
	rejected bool
	text     string
	provider string
	chunks   []retrieval.ContextChunk
}

func (a *Answerer) answerLive(ctx context.Context, student storage.Student, question, fp string, level difficulty.Level, modelChoice string, repeat bool) composer.AnswerBundle {
	key := fp + "|" + student.Standard + "|" + string(level)
	v, err, _ := a.inflight.Do(key, func() (interface{}, error) {
		return a.retrieveAndGenerate(ctx, student, question, level, modelChoice)
	})
	if err != nil {
		slog.Error("answer generation failed", "user", student.UserID, "error", err)
		a.metrics.ProviderErrors.WithLabelValues(a.primary).Inc()
		return a.errorBundle(question)
	}

	res := v.(liveResult)
	if res.rejected {
		a.metrics.GateRejections.Inc()
		return composer.AnswerBundle{
			Question:    question,
			Text:        msgNotInCurriculum,
			Difficulty:  level,
			CacheStatus: composer.StatusRejected,
		}
	}

	expected := modelChoice
	if expected == "" {
		expected = a.primary
	}
	if res.provider != "" && res.provider != expected {
		a.metrics.ProviderFallbacks.Inc()
	}

	bundle := a.composer.Bundle(question, res.text, res.chunks, level, composer.StatusGenerated, res.provider)
	a.persist(student.UserID, bundle, fp, repeat)
	return bundle
}

func (a *Answerer) retrieveAndGenerate(ctx context.Context, student storage.Student, question string, level difficulty.Level, modelChoice string) (liveResult, error) {
	scope := retrieval.Scope{Standard: student.Standard}
	chunks, err := a.retriever.Retrieve(ctx, question, scope)
	if err != nil {
		// A search outage degrades to "not in curriculum", not a hard error.
		slog.Warn("retrieval failed, treating as no match", "error", err)
		chunks = nil
	}

	var best float64
	if len(chunks) > 0 {
		best = float64(chunks[0].Similarity)
	}
	if !a.gate.Check(question, best) {
		return liveResult{rejected: true}, nil
	}

	prompt := a.composer.BuildPrompt(student, question, chunks, level)
	text, provider, err := a.generator.Generate(ctx, modelChoice, prompt)
	if err != nil {
		return liveResult{}, fmt.Errorf("generating answer: %w", err)
	}

	return liveResult{text: text, provider: provider, chunks: chunks}, nil
}

// persist appends the conversation turn and stores the shared cache
// entry. Both are best-effort: the computed answer is returned even if
// persistence fails. Regenerated answers are not cached so they never
// clobber the normal-level shared entry.
func (a *Answerer) persist(userID string, bundle composer.AnswerBundle, fp string, repeat bool) {
	turn := storage.ConversationTurn{
		ID:         uuid.NewString(),
		UserID:     userID,
		Question:   bundle.Question,
		Answer:     bundle.Text,
		Difficulty: string(bundle.Difficulty),
		HasImages:  len(bundle.Images) > 0,
		Sources:    encodeList(bundle.Sources),
		Images:     encodeList(bundle.Images),
		Provider:   bundle.Provider,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendTurn(turn); err != nil {
		slog.Error("appending conversation turn", "user", userID, "error", err)
	}

	if repeat {
		return
	}

	entry := storage.CacheEntry{
		Fingerprint: fp,
		Question:    bundle.Question,
		Answer:      bundle.Text,
		Sources:     encodeList(bundle.Sources),
		Images:      encodeList(bundle.Images),
		Difficulty:  string(bundle.Difficulty),
		Provider:    bundle.Provider,
	}
	if err := a.cache.Store(entry); err != nil {
		slog.Error("storing shared cache entry", "fingerprint", fp, "error", err)
	}
}

func (a *Answerer) errorBundle(question string) composer.AnswerBundle {
	return composer.AnswerBundle{
		Question:    question,
		Text:        msgGenerationDown,
		Difficulty:  difficulty.Normal,
		CacheStatus: composer.StatusError,
	}
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		slog.Warn("unparseable stored list", "error", err)
		return nil
	}
	return list
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}
