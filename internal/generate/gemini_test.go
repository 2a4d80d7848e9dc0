package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be helpful" {
			t.Error("missing system instruction")
		}
		json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []struct {
				Content geminiContent `json:"content"`
			}{
				{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: "photosynthesis is..."}}}},
			},
		})
	}))
	defer srv.Close()

	g := NewGeminiWithBaseURL("test-key", "", srv.URL)
	text, err := g.Generate(context.Background(), Prompt{System: "be helpful", User: "what is photosynthesis?"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "photosynthesis is..." {
		t.Errorf("unexpected answer %q", text)
	}
}

func TestGeminiStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeminiWithBaseURL("k", "", srv.URL)
	_, err := g.Generate(context.Background(), Prompt{User: "q"})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	var se *statusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *statusError, got %T", err)
	}
	if se.status != http.StatusTooManyRequests {
		t.Errorf("status %d, want 429", se.status)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateContentResponse{})
	}))
	defer srv.Close()

	g := NewGeminiWithBaseURL("k", "", srv.URL)
	if _, err := g.Generate(context.Background(), Prompt{User: "q"}); err == nil {
		t.Error("expected error on empty candidates")
	}
}
