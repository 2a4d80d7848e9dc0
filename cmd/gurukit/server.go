package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gurukit/gurukit/internal/api"
	"github.com/gurukit/gurukit/internal/cache"
	"github.com/gurukit/gurukit/internal/composer"
	"github.com/gurukit/gurukit/internal/config"
	"github.com/gurukit/gurukit/internal/generate"
	"github.com/gurukit/gurukit/internal/observability"
	"github.com/gurukit/gurukit/internal/ollama"
	"github.com/gurukit/gurukit/internal/pipeline"
	"github.com/gurukit/gurukit/internal/relevance"
	"github.com/gurukit/gurukit/internal/retrieval"
	"github.com/gurukit/gurukit/internal/storage"
	"github.com/gurukit/gurukit/internal/sweep"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gurukit server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running gurukit server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gurukit system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gurukit.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "gurukit version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.API.Token == "" {
		return fmt.Errorf("no API token configured; set GURUKIT_API_TOKEN")
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("gurukit is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("gurukit is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check local Ollama readiness for question embeddings.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return err
	}

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the answer pipeline.
	metrics := observability.NewMetrics("gurukit", prometheus.DefaultRegisterer)
	cacheStore := cache.New(store, cfg.TTL())
	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore, cfg.Retrieval.TopK)
	gate := relevance.New(cfg.Retrieval.MinRelevance)

	chain, primary, err := buildProviderChain(cfg)
	if err != nil {
		return err
	}
	slog.Info("generation providers configured", "order", chain.Providers(), "primary", primary)

	answerer := pipeline.NewAnswerer(
		store,
		cacheStore,
		retriever,
		gate,
		chain,
		composer.New(),
		metrics,
		primary,
	)

	// Build HTTP handler and server.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Answerer: answerer,
		Evictor:  cacheStore,
		Token:    cfg.API.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Start the expired-cache sweep worker.
	worker := sweep.NewWorker(cacheStore, cfg.SweepInterval(), func(count int64) {
		metrics.CacheEvictions.Add(float64(count))
	})
	go worker.Run(ctx)

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    store,
		Memory:   cacheStore,
		Answerer: answerer,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Serve until signalled, then shut down gracefully.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "gurukit listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildProviderChain assembles the fallback chain from the configured
// provider order, skipping providers with no API key. The first
// available provider is the primary.
func buildProviderChain(cfg config.Config) (*generate.Chain, string, error) {
	var providers []generate.Generator
	var primary string

	for _, name := range strings.Split(cfg.Generation.ProviderOrder, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "openai":
			if cfg.Generation.OpenAIAPIKey == "" {
				slog.Warn("skipping openai provider: GURUKIT_OPENAI_API_KEY not set")
				continue
			}
			providers = append(providers, generate.NewOpenAI(cfg.Generation.OpenAIAPIKey, cfg.Generation.OpenAIModel))
		case "gemini":
			if cfg.Generation.GeminiAPIKey == "" {
				slog.Warn("skipping gemini provider: GURUKIT_GEMINI_API_KEY not set")
				continue
			}
			providers = append(providers, generate.NewGemini(cfg.Generation.GeminiAPIKey, cfg.Generation.GeminiModel))
		case "":
			continue
		default:
			return nil, "", fmt.Errorf("unknown provider %q in generation.provider_order", name)
		}
		if primary == "" {
			primary = name
		}
	}

	if len(providers) == 0 {
		return nil, "", fmt.Errorf("no generation provider configured; set GURUKIT_OPENAI_API_KEY or GURUKIT_GEMINI_API_KEY")
	}

	return generate.NewChain(cfg.GenerationTimeout(), providers...), primary, nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("gurukit is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop gurukit (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to gurukit (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check Ollama.
	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Providers", "%s", cfg.Generation.ProviderOrder)
	printStatus("Cache TTL", "%d days", cfg.Cache.TTLDays)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
