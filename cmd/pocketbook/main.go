package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pocketbook/internal/cli"
	apphttp "pocketbook/internal/http"
	"pocketbook/internal/log"
	"pocketbook/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	logger.Info("Starting pocketbook")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	table := cli.InitRules(logger, cfg.RulesFile)

	// Imports publish to the worker; without a broker the worker's sweep
	// picks new rows up instead.
	var publisher services.ImportPublisher
	if amqpClient := cli.InitAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	categorize := services.NewCategorizeService(repo, table)
	if err := categorize.CheckTable(context.Background()); err != nil {
		logger.Error("Rule table does not match categories", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:     services.NewLedgerService(repo),
		Budgets:    services.NewBudgetService(repo),
		Imports:    services.NewImportService(repo, publisher),
		Categorize: categorize,
		Store:      repo,
	}, apphttp.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxImportBytes:     cfg.MaxImportBytes,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting HTTP server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
