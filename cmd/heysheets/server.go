package main

import (
	"context"
	"encoding/json"
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
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/api"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/cache"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/classify"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/composer"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/config"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/debug"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/executor"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/gateway"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/leads"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/pipeline"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/sheets"
	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/storage"
)

// cachePurgeInterval is how often expired persistent cache rows are deleted.
const cachePurgeInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the heysheets server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running heysheets server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show heysheets system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "heysheets.pid")
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

// parseDurationOr parses a config duration, falling back with a warning when
// the value does not parse.
func parseDurationOr(raw string, fallback time.Duration, key string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "heysheets version %s\n", version)

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

	// Ensure the admin bearer token exists in the platform secret store.
	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing admin token: %w", err)
	}
	slog.Info("admin bearer token available")

	// Write PID file. Check if a server is already running via the health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("heysheets is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("heysheets is already running on port %d", cfg.Server.Port)
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

	// Build the two cache tiers and the data gateway over the sheet source.
	memory, err := cache.NewMemory(cfg.Cache.MemorySize)
	if err != nil {
		return fmt.Errorf("building memory cache: %w", err)
	}
	persistent := cache.NewPersistent(store)
	memoryTTL := parseDurationOr(cfg.Cache.MemoryTTL, 5*time.Minute, "cache.memory_ttl")
	persistentTTL := parseDurationOr(cfg.Cache.PersistentTTL, time.Hour, "cache.persistent_ttl")

	sheetsTimeout := parseDurationOr(cfg.Sheets.Timeout, 5*time.Second, "sheets.timeout")
	source := sheets.New(cfg.Sheets.BaseURL, cfg.Sheets.Token, sheetsTimeout)
	gw := gateway.New(source, memory, persistent, memoryTTL, persistentTTL)

	// Build the chat pipeline: classifier, executor, composer, recorder.
	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	classifyTimeout := parseDurationOr(cfg.OpenAI.Timeout, 15*time.Second, "openai.timeout")
	classifier := classify.New(openai.NewClientWithConfig(clientCfg), cfg.OpenAI.Model, classifyTimeout, executor.Functions())

	queue := leads.NewQueue(store)
	exec := executor.New(gw, executor.WithLeadQueue(queue))
	comp := composer.New(0)
	recorder := debug.New(cfg.Debug.RingSize)
	defer recorder.Close()
	pipe := pipeline.New(classifier, exec, comp, recorder)

	handler := api.NewRouter(api.Deps{
		Pipeline:   pipe,
		Tabs:       gw,
		Traces:     recorder,
		Jobs:       store,
		AdminToken: apiToken,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the lead delivery worker.
	pollInterval := parseDurationOr(cfg.Leads.PollInterval, 15*time.Second, "leads.poll_interval")
	worker := leads.NewWorker(store, gw, pollInterval)
	go worker.Run(ctx)

	// Purge expired persistent cache rows in the background.
	go func() {
		ticker := time.NewTicker(cachePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := persistent.PurgeExpired(ctx); err != nil {
					slog.Warn("purging expired cache rows", "error", err)
				} else if n > 0 {
					slog.Debug("purged expired cache rows", "count", n)
				}
			}
		}
	}()

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Executor: exec})
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
		fmt.Fprintf(os.Stderr, "heysheets listening on %s\n", addr)
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
		printError("heysheets is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop heysheets (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to heysheets (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
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

	printStatus("Sheet source", "%s", cfg.Sheets.BaseURL)
	printStatus("Model", "%s", cfg.OpenAI.Model)

	// Show recent request and queue counts if the server is running.
	apiToken, tokenErr := config.GetAPIToken(config.NewKeychain())
	if tokenErr == nil && resp != nil && resp.StatusCode == 200 {
		tracesResp, err := apiGet(client, serverURL+"/api/admin/debug/requests", apiToken)
		if err == nil {
			var records []json.RawMessage
			if json.NewDecoder(tracesResp.Body).Decode(&records) == nil {
				printStatus("Recent requests", "%s", countLabel(len(records), cfg.Debug.RingSize))
			}
			tracesResp.Body.Close()
		}

		jobsResp, err := apiGet(client, serverURL+"/api/admin/jobs", apiToken)
		if err == nil {
			var jobs struct {
				Counts map[string]int `json:"counts"`
			}
			if json.NewDecoder(jobsResp.Body).Decode(&jobs) == nil {
				if n := jobs.Counts["pending"] + jobs.Counts["running"]; n > 0 {
					printStatus("Deferred leads", "%d waiting", n)
				}
				if n := jobs.Counts["failed"]; n > 0 {
					printStatus("Failed leads", "%d", n)
				}
			}
			jobsResp.Body.Close()
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

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
