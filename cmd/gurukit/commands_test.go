package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gurukit/gurukit/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/ask": `{"question":"What is photosynthesis?","text":"Plants make food from light.","sources":["Std 6, Science, Ch 1, p.12"],"difficulty":"normal","cache_status":"generated","provider":"openai"}`,
	})

	client := ts.client()

	req := map[string]string{
		"user_id":  "alice",
		"question": "What is photosynthesis?",
	}
	resp, err := client.post(ctx, "/v1/ask", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var bundle struct {
		Text        string   `json:"text"`
		Sources     []string `json:"sources"`
		CacheStatus string   `json:"cache_status"`
	}
	if err := decodeJSON(resp, &bundle); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if bundle.Text != "Plants make food from light." {
		t.Errorf("text = %q", bundle.Text)
	}
	if bundle.CacheStatus != "generated" {
		t.Errorf("cache_status = %q, want generated", bundle.CacheStatus)
	}
	if len(bundle.Sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(bundle.Sources))
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["user_id"] != "alice" {
		t.Errorf("body.user_id = %v, want alice", body["user_id"])
	}
	if body["question"] != "What is photosynthesis?" {
		t.Errorf("body.question = %v", body["question"])
	}
}

func TestHistoryRequest_URLEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/history": `[]`,
	})

	client := ts.client()
	user := "team a & b"
	path := fmt.Sprintf("/v1/history?user_id=%s&limit=10", url.QueryEscape(user))
	resp, err := client.get(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, "& b") {
		t.Errorf("user_id not URL-encoded: %q", reqPath)
	}
	if !strings.Contains(reqPath, "user_id=team+a+%26+b") {
		t.Errorf("unexpected encoded path: %q", reqPath)
	}
}

func TestStudentSet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /v1/students/alice": `{"status":"updated"}`,
	})

	client := ts.client()
	body := map[string]any{"name": "Alice", "age": 11, "standard": "6"}
	resp, err := client.put(ctx, "/v1/students/alice", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "updated" {
		t.Errorf("status = %q, want updated", result["status"])
	}

	var sentBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["standard"] != "6" {
		t.Errorf("body.standard = %v, want 6", sentBody["standard"])
	}
}

func TestEvictRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/cache/evict": `{"evicted":7}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/v1/cache/evict", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]int64
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["evicted"] != 7 {
		t.Errorf("evicted = %d, want 7", result["evicted"])
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/v1/history?user_id=x")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Ollama.EmbedModel = "nomic-embed-text"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestBuildProviderChain(t *testing.T) {
	cfg := config.Config{}
	cfg.Generation.ProviderOrder = "openai,gemini"
	cfg.Generation.OpenAIAPIKey = "sk-test"
	cfg.Generation.OpenAIModel = "gpt-4o-mini"
	cfg.Generation.GeminiModel = "gemini-2.5-flash"
	cfg.Generation.TimeoutSeconds = 30

	chain, primary, err := buildProviderChain(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary != "openai" {
		t.Errorf("primary = %q, want openai", primary)
	}
	if got := chain.Providers(); len(got) != 1 || got[0] != "openai" {
		t.Errorf("providers = %v, want [openai] (gemini has no key)", got)
	}
}

func TestBuildProviderChain_NoProviders(t *testing.T) {
	cfg := config.Config{}
	cfg.Generation.ProviderOrder = "openai,gemini"
	cfg.Generation.TimeoutSeconds = 30

	if _, _, err := buildProviderChain(cfg); err == nil {
		t.Fatal("expected error when no provider has an API key")
	}
}

func TestBuildProviderChain_UnknownProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.Generation.ProviderOrder = "claude"
	cfg.Generation.TimeoutSeconds = 30

	if _, _, err := buildProviderChain(cfg); err == nil {
		t.Fatal("expected error for unknown provider name")
	}
}
