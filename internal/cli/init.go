// Package cli provides the process bootstrap shared by cmd/pocketbook,
// cmd/pocketbook-worker and cmd/categorize.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocketbook/internal/amqp"
	"pocketbook/internal/config"
	"pocketbook/internal/log"
	"pocketbook/internal/rules"
	"pocketbook/internal/sheets"
	gsheet "pocketbook/internal/sheets/google"
	"pocketbook/internal/storage"
)

// SetupLogger creates the process logger at the given level name and makes
// it the slog default. An unknown level falls back to info.
func SetupLogger(level, component string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Component: component})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository, applying pending migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitRules loads the rule table from path, or the built-in table when path
// is empty. Exits the process when the table does not compile.
func InitRules(logger *log.Logger, path string) rules.Table {
	table, err := rules.Load(path)
	if err != nil {
		logger.Error("Failed to load rule table", log.FieldError, err, "path", path)
		os.Exit(1)
	}
	source := path
	if source == "" {
		source = "built-in"
	}
	logger.Info("Rule table loaded", "source", source, "rules", table.Len())
	return table
}

// InitAMQP dials the broker. It returns nil when no URL is configured or the
// broker is unreachable; callers then rely on the worker sweep.
func InitAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	amqpLogger := logger.WithComponent(log.ComponentAMQP)
	if cfg.AMQPURL == "" {
		amqpLogger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		amqpLogger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return nil
	}
	amqpLogger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// InitExporter builds the Sheets rollup writer, or returns nil when no
// spreadsheet is configured. Exits the process on credential errors.
func InitExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) sheets.RollupWriter {
	sheetsLogger := logger.WithComponent(log.ComponentSheets)
	if !cfg.ExportEnabled() {
		sheetsLogger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetBase:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		sheetsLogger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled once cleanup has run or timed out, and
// the channel is closed after that.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
