package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash"
	geminiTimeout        = 60 * time.Second
)

// Gemini generates answers via the Google Generative Language REST API.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini creates a Gemini provider. An empty model selects the default.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: geminiTimeout,
		},
	}
}

// NewGeminiWithBaseURL creates a provider pointing at a custom base URL (for testing).
func NewGeminiWithBaseURL(apiKey, model, baseURL string) *Gemini {
	g := NewGemini(apiKey, model)
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// Name implements Generator.
func (g *Gemini) Name() string { return "gemini" }

// generateContentRequest mirrors the generateContent JSON body.
type generateContentRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// statusError reports a non-200 response from the Gemini API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.status, e.body)
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	reqBody := generateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: p.User}}},
		},
	}
	if p.System != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.System}}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &statusError{status: resp.StatusCode, body: string(respBody)}
	}

	var result generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
