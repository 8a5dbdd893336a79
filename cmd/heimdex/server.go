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

	"github.com/heimdex/heimdex/internal/api"
	"github.com/heimdex/heimdex/internal/chroma"
	"github.com/heimdex/heimdex/internal/composer"
	"github.com/heimdex/heimdex/internal/config"
	"github.com/heimdex/heimdex/internal/ingest"
	"github.com/heimdex/heimdex/internal/ollama"
	"github.com/heimdex/heimdex/internal/rag"
	"github.com/heimdex/heimdex/internal/retrieval"
	"github.com/heimdex/heimdex/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the heimdex server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running heimdex server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show heimdex system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "heimdex.pid")
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
	fmt.Fprintf(os.Stderr, "heimdex version %s\n", version)

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

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("heimdex is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("heimdex is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to ChromaDB. Unlike Ollama, an unreachable vector store is
	// fatal: nothing works without it.
	chromaClient := chroma.New(cfg.Chroma.Host, cfg.Chroma.Port, cfg.Chroma.Collection)
	if err := chromaClient.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to ChromaDB at %s:%d: %w", cfg.Chroma.Host, cfg.Chroma.Port, err)
	}
	slog.Info("connected to ChromaDB", "collection", cfg.Chroma.Collection)

	// Check Ollama readiness. Missing models only warn.
	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.EmbedModel, cfg.Ollama.ToolModel, os.Stderr); err != nil {
		return err
	}

	// Open the event journal.
	store, err := storage.Open(filepath.Join(cfg.Storage.DataDir, "heimdex.db"))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the ingestion and answering pipelines.
	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	retriever := retrieval.NewRetriever(chromaClient, cfg.Retrieval.NResults, slog.Default())
	comp := composer.New(ollamaClient, cfg.Ollama.ToolModel)
	coordinator := ingest.NewCoordinator(embedder, chromaClient, store, slog.Default())
	pipeline := rag.NewPipeline(embedder, retriever, comp, store, slog.Default())

	// Build HTTP handler and server.
	handler := api.NewRouter(api.Deps{
		Ingestor: coordinator,
		Answerer: pipeline,
		Journal:  store,
		APIToken: cfg.Server.APIToken,
		Logger:   slog.Default(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Ingestor: coordinator,
		Answerer: pipeline,
		Journal:  store,
	}, version)
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
		fmt.Fprintf(os.Stderr, "heimdex listening on %s\n", addr)
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
		printError("heimdex is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop heimdex (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to heimdex (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
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

	// Check ChromaDB.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	chromaClient := chroma.New(cfg.Chroma.Host, cfg.Chroma.Port, cfg.Chroma.Collection)
	if err := chromaClient.Heartbeat(ctx); err != nil {
		printStatus("ChromaDB", "not reachable at %s:%d", cfg.Chroma.Host, cfg.Chroma.Port)
	} else {
		printStatus("ChromaDB", "running at %s:%d (collection %s)", cfg.Chroma.Host, cfg.Chroma.Port, cfg.Chroma.Collection)
		if err := chromaClient.Connect(ctx); err == nil {
			if n, err := chromaClient.Count(ctx); err == nil {
				printStatus("Documents", "%d", n)
			}
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
	printStatus("Tool model", "%s", cfg.Ollama.ToolModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
