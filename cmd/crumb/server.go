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
	"github.com/spf13/cobra"

	"github.com/crumbhq/crumb/internal/agent"
	"github.com/crumbhq/crumb/internal/api"
	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/config"
	"github.com/crumbhq/crumb/internal/ingest"
	"github.com/crumbhq/crumb/internal/intent"
	"github.com/crumbhq/crumb/internal/llm"
	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/session"
	"github.com/crumbhq/crumb/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the crumb server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running crumb server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crumb system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "crumb.pid")
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
	fmt.Fprintf(os.Stderr, "crumb version %s\n", version)

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

	apiToken, err := config.EnsureAPIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("crumb is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("crumb is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Select the vector store backend.
	var vectors retrieval.VectorStore
	switch cfg.Vector.Backend {
	case config.VectorBackendChromem:
		vectors, err = retrieval.NewChromemStore(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening chromem vector store: %w", err)
		}
	default:
		vectors = retrieval.NewSQLiteStore(store.DB())
	}
	slog.Info("vector store ready", "backend", cfg.Vector.Backend)

	// Build the LLM client. A missing API key is not fatal: the agent
	// still takes orders against the catalog and answers from direct
	// matches, falling back to a fixed message for everything else.
	var engine retrieval.EmbeddingEngine
	var chatter agent.Chatter
	client, err := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel,
		llm.WithBaseURL(cfg.LLM.BaseURL))
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		slog.Warn("no LLM API key configured; semantic search and generated answers are disabled")
	case err != nil:
		return fmt.Errorf("building LLM client: %w", err)
	default:
		engine = client
		chatter = client
	}

	embedder := retrieval.NewEmbedder(engine)
	retriever := retrieval.NewRetriever(embedder, vectors)

	// Load the product catalog.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	slog.Info("catalog loaded", "path", cfg.Catalog.Path, "products", cat.Len())

	// Assemble the tier pipeline.
	locale := intent.English()
	extractor := intent.NewExtractor(locale)
	validator := catalog.NewValidator(cat, retriever, cfg.Agent.ValidatorMinScore)
	history := session.NewHistory()
	tiers := []agent.Tier{
		agent.NewOrderTier(extractor, validator, store),
		agent.NewProductTier(retriever, intent.NewKeywordSet(locale.ProductKeywords), cfg.Agent.ProductMinScore),
		agent.NewFAQTier(retriever, intent.NewKeywordSet(locale.FAQKeywords), cfg.Agent.FAQMinScore),
		agent.NewGenerateTier(chatter),
	}
	router := agent.NewRouter(tiers, history, store,
		agent.WithMaxContextChars(cfg.Agent.MaxContextChars))

	indexer := ingest.NewIndexer(store, embedder, vectors)

	// Build HTTP handler and server.
	handler := api.NewHandler(api.Deps{
		Router:  router,
		Store:   store,
		Indexer: indexer,
		Token:   apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the embedding worker. Without an engine the queue just
	// accumulates until the server restarts with credentials.
	if engine != nil {
		worker := ingest.NewWorker(indexer)
		go worker.Run(ctx)
	} else {
		slog.Warn("embedding worker not started; submitted documents stay queued")
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    store,
		Router:   router,
		Searcher: retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "crumb listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
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
		printError("crumb is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop crumb (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to crumb (PID %d)", pid)
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

	if cfg.LLM.APIKey == "" {
		printStatus("LLM", "no API key (degraded mode)")
	} else {
		printStatus("LLM", "%s", cfg.LLM.BaseURL)
	}
	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)
	printStatus("Vector backend", "%s", cfg.Vector.Backend)
	printStatus("Catalog", "%s", cfg.Catalog.Path)

	// Show order/interaction counts if server is running.
	if resp != nil && resp.StatusCode == 200 {
		if apiCl, err := newAPIClient(); err == nil {
			if ordersResp, err := apiCl.get("/admin/orders?limit=100"); err == nil {
				var orders []storage.Order
				if decodeJSON(ordersResp, &orders) == nil {
					printStatus("Orders", "%s", countLabel(len(orders), 100))
				}
			}
			if interResp, err := apiCl.get("/admin/interactions?limit=100"); err == nil {
				var interactions []storage.Interaction
				if decodeJSON(interResp, &interactions) == nil {
					printStatus("Interactions", "%s", countLabel(len(interactions), 100))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
