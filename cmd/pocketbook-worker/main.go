package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/cli"
	"pocketbook/internal/log"
	"pocketbook/internal/services"
	"pocketbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting pocketbook-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	table := cli.InitRules(logger, cfg.RulesFile)
	categorize := services.NewCategorizeService(repo, table)
	if err := categorize.CheckTable(context.Background()); err != nil {
		logger.Error("Rule table does not match categories", log.FieldError, err)
		os.Exit(1)
	}

	exporter := cli.InitExporter(context.Background(), logger, cfg)

	w := worker.NewCategorizeWorker(categorize, services.NewBudgetService(repo), exporter, worker.Config{
		SweepInterval:  cfg.SweepInterval,
		ExportInterval: cfg.ExportInterval,
		SweepBatchSize: cfg.SweepBatchSize,
	})

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	} else {
		logger.Info("No import events - relying on the periodic sweep", "interval", cfg.SweepInterval)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		cancelRun()
		if err := w.Stop(shutdownCtx); err != nil {
			logger.Error("Worker stop error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeTransactionsImported(gctx, w.HandleImported)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		cancelRun()
		_ = w.Stop(context.Background())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
