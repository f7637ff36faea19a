package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"
	"pocketbook/internal/services"
	"pocketbook/internal/sheets"
)

// Config holds the worker schedule.
type Config struct {
	// SweepInterval is how often uncategorized transactions are swept (default: 5m)
	SweepInterval time.Duration

	// ExportInterval is how often the current month is exported (default: 1h)
	ExportInterval time.Duration

	// SweepBatchSize is how many rows a sweep reads per page (default: 500)
	SweepBatchSize int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SweepInterval:  5 * time.Minute,
		ExportInterval: 1 * time.Hour,
		SweepBatchSize: 500,
	}
}

// CategorizeWorker categorizes imported transactions as import events
// arrive, sweeps for rows that missed an event and periodically exports
// the month rollup.
type CategorizeWorker struct {
	categorize *services.CategorizeService
	budgets    *services.BudgetService
	export     sheets.RollupWriter
	config     Config
	now        func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewCategorizeWorker creates a worker. export may be nil to disable the
// rollup export.
func NewCategorizeWorker(
	categorize *services.CategorizeService,
	budgets *services.BudgetService,
	export sheets.RollupWriter,
	config Config,
) *CategorizeWorker {
	return &CategorizeWorker{
		categorize: categorize,
		budgets:    budgets,
		export:     export,
		config:     config,
		now:        time.Now,
	}
}

// HandleImported categorizes the transactions announced by one import.
func (w *CategorizeWorker) HandleImported(ctx context.Context, msg *amqp.ImportedMessage) error {
	slog.InfoContext(ctx, "Processing import message",
		"import_id", msg.ImportID,
		"transactions", len(msg.TransactionIDs))

	report, err := w.categorize.CategorizeIDs(ctx, msg.TransactionIDs)
	if err != nil {
		return fmt.Errorf("categorize import %s: %w", msg.ImportID, err)
	}

	slog.InfoContext(ctx, "Import categorized",
		"import_id", msg.ImportID,
		"categorized", report.Categorized,
		"ignored", report.Ignored,
		"unmatched", report.Unmatched)
	return nil
}

// Sweep categorizes uncategorized transactions left behind by lost or
// failed import messages.
func (w *CategorizeWorker) Sweep(ctx context.Context) (services.CategorizeReport, error) {
	report, err := w.categorize.Sweep(ctx, w.config.SweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("sweep: %w", err)
	}
	if report.Scanned > 0 {
		slog.InfoContext(ctx, "Sweep completed",
			"scanned", report.Scanned,
			"categorized", report.Categorized,
			"unmatched", report.Unmatched)
	}
	return report, nil
}

// Export writes the rollup of the current month. It returns the sheet
// reference, empty when no exporter is configured.
func (w *CategorizeWorker) Export(ctx context.Context) (string, error) {
	if w.export == nil {
		return "", nil
	}
	month := core.MonthOfTime(w.now())
	r, err := w.budgets.Rollup(ctx, month)
	if err != nil {
		return "", fmt.Errorf("rollup %s: %w", month, err)
	}
	ref, err := w.export.WriteRollup(ctx, r)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", month, err)
	}
	return ref, nil
}

// Start begins the sweep and export loop. Returns an error if already running.
func (w *CategorizeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("categorize worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Categorize worker started",
		"sweep_interval", w.config.SweepInterval,
		"export_interval", w.config.ExportInterval,
		"export_enabled", w.export != nil)

	return nil
}

// Stop gracefully stops the loop and waits for completion. It may be called
// again after a timed out attempt.
func (w *CategorizeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Categorize worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Categorize worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the loop is currently running
func (w *CategorizeWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *CategorizeWorker) runLoop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	sweepTicker := time.NewTicker(w.config.SweepInterval)
	defer sweepTicker.Stop()

	// A nil channel never fires, which disables the export case.
	var exportC <-chan time.Time
	if w.export != nil {
		exportTicker := time.NewTicker(w.config.ExportInterval)
		defer exportTicker.Stop()
		exportC = exportTicker.C
	}

	// Sweep immediately on startup to recover from downtime
	w.sweepLogged(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			w.sweepLogged(ctx)
		case <-exportC:
			if _, err := w.Export(ctx); err != nil {
				slog.ErrorContext(ctx, "Rollup export failed", "error", err)
			}
		}
	}
}

func (w *CategorizeWorker) sweepLogged(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "Sweep failed", "error", err)
	}
}
