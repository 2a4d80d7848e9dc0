package config

import (
	"testing"
	"time"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend map[string]any

func (m mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	i, _ := v.(int)
	return i, true, nil
}

func (m mapBackend) SetString(key, val string) error { m[key] = val; return nil }
func (m mapBackend) SetInt(key string, val int) error { m[key] = val; return nil }
func (m mapBackend) Delete(key string) error          { delete(m, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(mapBackend{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("port %d, want 4000", cfg.Server.Port)
	}
	if cfg.Retrieval.MinRelevance != 0.40 {
		t.Errorf("min relevance %f, want 0.40", cfg.Retrieval.MinRelevance)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("topK %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.TTL() != 10*24*time.Hour {
		t.Errorf("TTL %v, want 10 days", cfg.TTL())
	}
	if cfg.Generation.ProviderOrder != "openai,gemini" {
		t.Errorf("provider order %q, want openai,gemini", cfg.Generation.ProviderOrder)
	}
}

func TestBackendOverridesDefaults(t *testing.T) {
	cfg, err := loadWith(mapBackend{
		"server.port":             9000,
		"retrieval.min_relevance": "0.55",
		"cache.ttl_days":          3,
	})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port %d, want 9000", cfg.Server.Port)
	}
	if cfg.Retrieval.MinRelevance != 0.55 {
		t.Errorf("min relevance %f, want 0.55", cfg.Retrieval.MinRelevance)
	}
	if cfg.TTL() != 3*24*time.Hour {
		t.Errorf("TTL %v, want 3 days", cfg.TTL())
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("GURUKIT_SERVER_PORT", "7777")
	t.Setenv("GURUKIT_OPENAI_API_KEY", "sk-test")

	cfg, err := loadWith(mapBackend{"server.port": 9000})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("port %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Generation.OpenAIAPIKey != "sk-test" {
		t.Error("secret env var not applied")
	}
}

func TestSecretsNotReadFromBackend(t *testing.T) {
	cfg, err := loadWith(mapBackend{"generation.openai_api_key": "sk-leaked"})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Generation.OpenAIAPIKey == "sk-leaked" {
		t.Error("secrets must not load from the config file")
	}
}

func TestSetKeyValidatesFloats(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("retrieval.min_relevance", "abc"); err == nil {
		t.Error("expected error for a non-numeric float value")
	}
	if err := SetKey("retrieval.min_relevance", "0.55"); err != nil {
		t.Errorf("valid float rejected: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.MinRelevance != 0.55 {
		t.Errorf("min relevance %f, want the stored 0.55", cfg.Retrieval.MinRelevance)
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	cfg := defaults()
	for _, info := range ShowAll(cfg) {
		if info.Key == "api.token" || info.Key == "generation.openai_api_key" || info.Key == "generation.gemini_api_key" {
			t.Errorf("secret key %s exposed by ShowAll", info.Key)
		}
	}
}
