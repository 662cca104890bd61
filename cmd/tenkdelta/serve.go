package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tenkdelta/tenkdelta/internal/config"
	"github.com/tenkdelta/tenkdelta/internal/diffing"
	"github.com/tenkdelta/tenkdelta/internal/fetch"
	"github.com/tenkdelta/tenkdelta/internal/ledger"
	"github.com/tenkdelta/tenkdelta/internal/orchestrator"
	"github.com/tenkdelta/tenkdelta/internal/server"
	"github.com/tenkdelta/tenkdelta/internal/storage"
	"github.com/tenkdelta/tenkdelta/internal/summarize"
	"github.com/tenkdelta/tenkdelta/internal/worker"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the report service",
		Long: `Start the HTTP API and the in-process worker pool. Migrations run
automatically at startup.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	llmClient, err := summarize.NewClient(summarize.Config{
		Provider:          cfg.LLMProvider,
		APIKey:            cfg.AnthropicAPIKey,
		Model:             cfg.AnthropicModel,
		RequestsPerMinute: cfg.RequestsPerMin,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	analyzer := summarize.NewAnalyzer(llmClient, summarize.Config{
		Model:             cfg.AnthropicModel,
		RequestsPerMinute: cfg.RequestsPerMin,
	})
	defer analyzer.Close()

	ldg := ledger.New(store)
	source := fetch.NewEDGARClient(cfg.SECUserAgent)
	differ := diffing.NewEngine()

	var orch *orchestrator.Orchestrator
	jobs := worker.New(store, source, differ, analyzer, worker.NewHTTPCallbackSender(), worker.Config{
		Timeout: cfg.JobTimeout,
		Progress: func(jobID string, progress int, step string) {
			orch.UpdateProgress(jobID, progress, step)
		},
	})
	orch = orchestrator.New(store, ldg, jobs, orchestrator.Config{
		CallbackURL: cfg.CallbackURL,
		CacheWindow: cfg.CacheWindow(),
	})

	srv := server.New(cfg.ListenAddr, store, ldg, orch)

	slog.Info("Starting tenkdelta",
		"version", version,
		"listen", cfg.ListenAddr,
		"database", cfg.DatabasePath)

	return srv.ListenAndServe(ctx)
}
