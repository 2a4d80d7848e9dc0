package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "GURUKIT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "ollama.base_url", typ: kString, env: "GURUKIT_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "GURUKIT_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "GURUKIT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "generation.openai_api_key", typ: kString, env: "GURUKIT_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Generation.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.OpenAIAPIKey },
	},
	{
		key: "generation.openai_model", typ: kString, env: "GURUKIT_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.OpenAIModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.OpenAIModel },
	},
	{
		key: "generation.gemini_api_key", typ: kString, env: "GURUKIT_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Generation.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.GeminiAPIKey },
	},
	{
		key: "generation.gemini_model", typ: kString, env: "GURUKIT_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.GeminiModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.GeminiModel },
	},
	{
		key: "generation.provider_order", typ: kString, env: "GURUKIT_PROVIDER_ORDER",
		apply:   func(cfg *Config, v any) { cfg.Generation.ProviderOrder = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.ProviderOrder },
	},
	{
		key: "generation.timeout_seconds", typ: kInt, env: "GURUKIT_GENERATION_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Generation.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.TimeoutSeconds },
	},
	{
		key: "cache.ttl_days", typ: kInt, env: "GURUKIT_CACHE_TTL_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Cache.TTLDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.TTLDays },
	},
	{
		key: "cache.sweep_interval_minutes", typ: kInt, env: "GURUKIT_CACHE_SWEEP_INTERVAL_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Cache.SweepIntervalMins = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.SweepIntervalMins },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "GURUKIT_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.min_relevance", typ: kFloat, env: "GURUKIT_RETRIEVAL_MIN_RELEVANCE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MinRelevance = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.MinRelevance },
	},
	{
		key: "api.token", typ: kString, env: "GURUKIT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "GURUKIT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
