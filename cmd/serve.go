package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/config"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/pipeline"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/store"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/web"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the comparison API server",
	Long: `Start the Face Compare HTTP server.
The server accepts image pairs, runs them through the voting pipeline
as asynchronous jobs, streams progress over SSE and, when a database
is configured, keeps a queryable history of past comparisons.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	// Persistence is optional: without DATABASE_URL the server still
	// compares, it just keeps no history.
	var repo *store.ComparisonRepository
	if cfg.Database.URL != "" {
		fmt.Println("Connecting to PostgreSQL database...")
		pool, err := store.NewPool(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()

		if err := pool.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		repo = store.NewComparisonRepository(pool)
		fmt.Println("Comparison history enabled (PostgreSQL)")
	}

	var results pipeline.ResultSink
	if repo != nil {
		results = repo
	} else if cfg.Audit.CSVPath != "" {
		audit, err := store.NewCSVLog(cfg.Audit.CSVPath)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		results = audit
		fmt.Printf("Audit log enabled (%s)\n", cfg.Audit.CSVPath)
	}

	orch, err := buildOrchestrator(ctx, cfg, results)
	if err != nil {
		return err
	}

	port, host := resolveServeHostPort(cmd)

	var history handlers.ResultStore
	if repo != nil {
		history = repo
	}
	server := web.NewServer(orch, history, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Compare API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
