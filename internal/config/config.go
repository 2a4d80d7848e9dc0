// Package config loads service configuration from defaults, a JSON
// config file, and GURUKIT_* environment variables, in that order.
// Secrets (API keys, the bearer token) are environment-only.
package config

import "time"

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Generation GenerationConfig
	Cache      CacheConfig
	Retrieval  RetrievalConfig
	API        APIConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type GenerationConfig struct {
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string
	// ProviderOrder is a comma-separated fallback order, e.g. "openai,gemini".
	ProviderOrder  string
	TimeoutSeconds int
}

type CacheConfig struct {
	TTLDays           int
	SweepIntervalMins int
}

type RetrievalConfig struct {
	TopK         int
	MinRelevance float64
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generation: GenerationConfig{
			OpenAIModel:    "gpt-4o-mini",
			GeminiModel:    "gemini-2.5-flash",
			ProviderOrder:  "openai,gemini",
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			TTLDays:           10,
			SweepIntervalMins: 60,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MinRelevance: 0.40,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/gurukit/config.json, then applies GURUKIT_* env
// overrides. Provider availability is validated at server start, not
// here, so CLI commands that never generate work without keys.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// TTL returns the shared-cache retention window.
func (c Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// SweepInterval returns how often the eviction worker runs.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMins) * time.Minute
}

// GenerationTimeout returns the per-attempt generation timeout.
func (c Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}
