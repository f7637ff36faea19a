package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"
	"pocketbook/internal/importer"
	"pocketbook/internal/log"
	"pocketbook/internal/rules"
	"pocketbook/internal/storage"
)

// ImportPublisher announces imported transactions to the worker.
type ImportPublisher interface {
	PublishTransactionsImported(ctx context.Context, msg *amqp.ImportedMessage) error
}

// ImportResult is returned to the uploader.
type ImportResult struct {
	Record      core.ImportRecord `json:"record"`
	Parsed      int               `json:"parsed"`
	Inserted    int               `json:"inserted"`
	Duplicates  int               `json:"duplicates"`
	AutoIgnored int               `json:"auto_ignored"`
	ByUserRule  int               `json:"by_user_rule"`
	Skipped     []string          `json:"skipped_lines,omitempty"`
}

// ImportService stores CSV uploads and notifies the categorization worker.
type ImportService struct {
	storage   *storage.SQLiteRepository
	publisher ImportPublisher
}

// NewImportService creates the service. publisher may be nil, in which case
// imported rows wait for the worker's periodic sweep.
func NewImportService(storage *storage.SQLiteRepository, publisher ImportPublisher) *ImportService {
	return &ImportService{storage: storage, publisher: publisher}
}

// Import parses one CSV export and stores its new rows. Rows already present
// are counted as duplicates.
func (s *ImportService) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	var res ImportResult
	file, err := importer.Parse(r)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", filename, err)
	}
	res.Parsed = len(file.Rows)
	for _, e := range file.Errors {
		res.Skipped = append(res.Skipped, e.Error())
	}

	userRules, err := s.storage.ListRules(ctx)
	if err != nil {
		return res, fmt.Errorf("load rules: %w", err)
	}

	txns := make([]core.Transaction, 0, len(file.Rows))
	for _, row := range file.Rows {
		t := row.Transaction()
		if t.Ignored {
			res.AutoIgnored++
		} else if rule, ok := rules.MatchUserRule(userRules, t.Description); ok {
			t.CategoryID = rule.CategoryID
			t.Subcategory = rule.Subcategory
			res.ByUserRule++
		}
		txns = append(txns, t)
	}

	inserted, duplicates, err := s.storage.InsertTransactions(ctx, txns)
	if err != nil {
		return res, fmt.Errorf("store %s: %w", filename, err)
	}
	res.Inserted = len(inserted)
	res.Duplicates = duplicates

	res.Record, err = s.storage.RecordImport(ctx, core.ImportRecord{
		Filename:          filename,
		FileHash:          file.Hash,
		Imported:          res.Inserted,
		DuplicatesSkipped: duplicates,
	})
	if err != nil {
		return res, err
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogImport(ctx, res.Record.ID, filename, res.Inserted, res.Duplicates, len(res.Skipped))

	var pending []string
	for _, t := range inserted {
		if t.CategoryID == "" && !t.Ignored {
			pending = append(pending, t.ID)
		}
	}
	if len(pending) > 0 {
		if err := s.publishImported(ctx, res.Record, pending); err != nil {
			// The rows are stored; the worker's sweep picks them up.
			slog.ErrorContext(ctx, "Failed to publish import message",
				"import_id", res.Record.ID, "error", err)
		}
	}
	return res, nil
}

func (s *ImportService) publishImported(ctx context.Context, rec core.ImportRecord, ids []string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping import message")
		return nil
	}
	return s.publisher.PublishTransactionsImported(ctx, amqp.NewImportedMessage(rec.ID, rec.Filename, ids))
}

// History returns the most recent imports.
func (s *ImportService) History(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	return s.storage.ListImports(ctx, limit)
}
