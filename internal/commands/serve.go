package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ledgerline/statements/internal/api"
	"github.com/ledgerline/statements/internal/cache"
	"github.com/ledgerline/statements/internal/config"
	"github.com/ledgerline/statements/internal/filestore"
	jobsinmem "github.com/ledgerline/statements/internal/jobs/inmemory"
	"github.com/ledgerline/statements/internal/logger"
	"github.com/ledgerline/statements/internal/provider"
	"github.com/ledgerline/statements/internal/statement"
	"github.com/ledgerline/statements/internal/store"
	storeinmem "github.com/ledgerline/statements/internal/store/inmemory"
	"github.com/ledgerline/statements/internal/store/postgres"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the statement ingestion HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New()

	statements, transactions, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	files, err := buildFileStore(cfg, log)
	if err != nil {
		return err
	}

	extractor, err := buildExtractor(cfg, log)
	if err != nil {
		return err
	}

	jobStore := jobsinmem.NewStore()
	queue := jobsinmem.NewQueue(cfg.QueueSize, cfg.Workers, jobStore)

	svc := statement.NewService(statements, transactions, files, queue, extractor,
		statement.Options{
			DefaultCurrency: cfg.DefaultCurrency,
			DateOrder:       cfg.DateOrder,
			MaxPDFPages:     cfg.MaxPDFPages,
		}, log)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := queue.Start(workerCtx, svc.HandleJob); err != nil {
		return fmt.Errorf("start job workers: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
	return nil
}

func buildStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.StatementStore, store.TransactionStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set; using in-memory stores")
		return storeinmem.NewStatementStore(), storeinmem.NewTransactionStore(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewStatementStore(pool), postgres.NewTransactionStore(pool), pool.Close, nil
}

func buildFileStore(cfg *config.Config, log zerolog.Logger) (filestore.FileStore, error) {
	if cfg.BucketName != "" {
		return filestore.NewGCS(cfg.BucketName), nil
	}
	log.Warn().Str("dir", cfg.UploadDir).Msg("GCS_BUCKET not set; storing files on local disk")
	return filestore.NewLocal(cfg.UploadDir)
}

// buildExtractor assembles the provider fallback chain from the configured
// provider list. CSV-only deployments may run without any provider.
func buildExtractor(cfg *config.Config, log zerolog.Logger) (provider.Extractor, error) {
	models := cache.NewMemory()

	var extractors []provider.Extractor
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderGoogle:
			if cfg.GeminiAPIKey == "" {
				log.Warn().Msg("GEMINI_API_KEY not set; skipping google provider")
				continue
			}
			extractors = append(extractors, provider.NewGoogle(cfg.GeminiAPIKey, cfg.GeminiModel))
		case config.ProviderOpenAI:
			if cfg.OpenAIAPIKey == "" {
				log.Warn().Msg("OPENAI_API_KEY not set; skipping openai provider")
				continue
			}
			extractors = append(extractors, provider.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, models))
		case config.ProviderMistral:
			if cfg.MistralAPIKey == "" {
				log.Warn().Msg("MISTRAL_API_KEY not set; skipping mistral provider")
				continue
			}
			extractors = append(extractors, provider.NewMistral(cfg.MistralAPIKey, cfg.MistralModel, models))
		case config.ProviderOllama:
			extractors = append(extractors, provider.NewOllama(cfg.OllamaHost, cfg.OllamaModel, models))
		}
	}

	if len(extractors) == 0 {
		log.Warn().Msg("No extraction providers configured; PDF statements will fail")
		return provider.NewChain(log), nil
	}
	return provider.NewChain(log, extractors...), nil
}
