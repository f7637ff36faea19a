package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pocketbook/internal/amqp"
	"pocketbook/internal/core"
	"pocketbook/internal/rules"
	"pocketbook/internal/services"
	"pocketbook/internal/sheets/memory"
	"pocketbook/internal/storage"
)

func newTestWorker(t *testing.T, export *memory.Store, config Config) (*CategorizeWorker, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	table, err := rules.Compile([]rules.Definition{{Pattern: "COSTCO", Category: core.CategoryFood}})
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	w := NewCategorizeWorker(services.NewCategorizeService(repo, table), services.NewBudgetService(repo), nil, config)
	if export != nil {
		w.export = export
	}
	w.now = func() time.Time { return time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC) }
	return w, repo
}

func insert(t *testing.T, repo *storage.SQLiteRepository, desc string) string {
	t.Helper()
	tr := core.Transaction{ExternalID: desc, Date: core.NewDate(2025, 3, 3), Description: desc, Amount: core.Money{Cents: -4200}}
	if _, err := repo.InsertTransaction(context.Background(), &tr); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return tr.ID
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.SweepInterval != 5*time.Minute {
		t.Errorf("expected SweepInterval 5m, got %v", config.SweepInterval)
	}
	if config.ExportInterval != 1*time.Hour {
		t.Errorf("expected ExportInterval 1h, got %v", config.ExportInterval)
	}
	if config.SweepBatchSize != 500 {
		t.Errorf("expected SweepBatchSize 500, got %d", config.SweepBatchSize)
	}
}

func TestHandleImported(t *testing.T) {
	w, repo := newTestWorker(t, nil, DefaultConfig())
	ctx := context.Background()
	id := insert(t, repo, "COSTCO WHSE 123")
	other := insert(t, repo, "COSTCO GAS 456")

	if err := w.HandleImported(ctx, amqp.NewImportedMessage("imp-1", "march.csv", []string{id})); err != nil {
		t.Fatalf("HandleImported() error = %v", err)
	}

	got, _ := repo.GetTransaction(ctx, id)
	if got.CategoryID != core.CategoryFood {
		t.Errorf("category = %q, want food", got.CategoryID)
	}
	// Only the announced transaction is touched.
	got, _ = repo.GetTransaction(ctx, other)
	if got.CategoryID != "" {
		t.Errorf("unannounced transaction categorized: %q", got.CategoryID)
	}
}

func TestSweepReachesRowsBehindUnmatched(t *testing.T) {
	config := DefaultConfig()
	config.SweepBatchSize = 1
	w, repo := newTestWorker(t, nil, config)
	id := insert(t, repo, "COSTCO ONE")
	insert(t, repo, "MYSTERY TWO")
	insert(t, repo, "MYSTERY THREE")

	report, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Scanned != 3 || report.Categorized != 1 || report.Unmatched != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	got, _ := repo.GetTransaction(context.Background(), id)
	if got.CategoryID != core.CategoryFood {
		t.Errorf("oldest row category = %q, want food", got.CategoryID)
	}

	report, _ = w.Sweep(context.Background())
	if report.Categorized != 0 || report.Unmatched != 2 {
		t.Errorf("second sweep: %+v", report)
	}
}

func TestExport(t *testing.T) {
	store := memory.New("Budget")
	w, repo := newTestWorker(t, store, DefaultConfig())
	insert(t, repo, "COSTCO")

	ref, err := w.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if ref != "2025-03 Budget" {
		t.Errorf("ref = %q", ref)
	}
	if _, ok := store.Tab(ref); !ok {
		t.Error("tab not written")
	}
}

func TestExportDisabled(t *testing.T) {
	w, _ := newTestWorker(t, nil, DefaultConfig())
	ref, err := w.Export(context.Background())
	if err != nil || ref != "" {
		t.Errorf("expected no-op export, got ref=%q err=%v", ref, err)
	}
}

func TestStartStop(t *testing.T) {
	config := DefaultConfig()
	config.SweepInterval = 20 * time.Millisecond
	w, repo := newTestWorker(t, nil, config)
	id := insert(t, repo, "COSTCO LATE")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("worker should be running")
	}
	if err := w.Start(ctx); err == nil {
		t.Error("expected error when starting already running worker")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := repo.GetTransaction(ctx, id)
		if got.CategoryID == core.CategoryFood {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup sweep did not categorize the transaction")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("worker should not be running after Stop")
	}
}

func TestStopNotRunning(t *testing.T) {
	w := NewCategorizeWorker(nil, nil, nil, DefaultConfig())
	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestStopAfterTimedOutStop(t *testing.T) {
	w, _ := newTestWorker(t, nil, DefaultConfig())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	// May time out or succeed depending on scheduling; either way the
	// next call must not close the stop channel again.
	_ = w.Stop(expired)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("worker should not be running after Stop")
	}
}
