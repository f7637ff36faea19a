// Command categorize applies the static rule table to every uncategorized
// transaction and prints the summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/log"
	"pocketbook/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	rulesFile := flag.String("rules", cfg.RulesFile, "rule table file (YAML, TOML or JSON); empty uses the built-in table")
	dbPath := flag.String("db", cfg.SQLiteDBPath, "SQLite database path")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	cfg.RulesFile = *rulesFile
	cfg.SQLiteDBPath = *dbPath

	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentCategory)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	svc := services.NewCategorizeService(repo, cli.InitRules(logger, cfg.RulesFile))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.CheckTable(ctx); err != nil {
		logger.Error("Rule table does not match categories", log.FieldError, err)
		os.Exit(1)
	}

	report, err := svc.Run(ctx, *dryRun)
	if err != nil {
		logger.Error("Categorization failed", log.FieldError, err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("Failed to write summary", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Printf("Categorization %s: %d scanned, %d categorized, %d ignored, %d unmatched\n",
		mode, report.Scanned, report.Categorized, report.Ignored, report.Unmatched)
	if len(report.Unknown) > 0 {
		fmt.Println("Unmatched descriptions:")
		for _, d := range report.Unknown {
			fmt.Printf("  %s\n", d)
		}
	}
}
