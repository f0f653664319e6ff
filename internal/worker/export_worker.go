// Package worker keeps a YAML export of the book in step with the ledger
// events published by the server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"mone/internal/amqp"
	"mone/internal/core"
	applog "mone/internal/log"
	"mone/internal/storage/memory"
)

// ExportWorker writes the stored book to a YAML file that the memory
// backend accepts as a seed.
type ExportWorker struct {
	store  core.Loader
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	exported time.Time
	now      func() time.Time
}

func NewExportWorker(store core.Loader, path string, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		store:  store,
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// HandleEvent refreshes the export after a ledger event. Events older than
// the last export are already covered by it.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	w.mu.Lock()
	stale := !event.Timestamp.IsZero() && event.Timestamp.Before(w.exported)
	w.mu.Unlock()

	if stale {
		w.logger.DebugContext(ctx, "Skipping event already covered by export",
			"kind", event.Kind, "id", event.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event",
		"kind", event.Kind,
		"id", event.ID,
		applog.FieldBalance, event.Balance.String())
	return w.Export(ctx)
}

// Export reads the store, checks that it opens as a book, and replaces the
// export file.
func (w *ExportWorker) Export(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	snapshot, err := memory.Copy(ctx, w.store)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	book, err := core.Open(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("open book: %w", err)
	}
	seed, err := snapshot.Seed(ctx)
	if err != nil {
		return err
	}
	seed.Balance = book.Balance()

	data, err := yaml.Marshal(seed)
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := writeFileAtomic(w.path, data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	w.exported = started

	w.logger.InfoContext(ctx, "Book exported",
		"path", w.path,
		"accounts", len(seed.Accounts),
		"budgets", len(seed.Budgets),
		"transactions", len(seed.Transactions),
		applog.FieldBalance, seed.Balance.String())
	return nil
}

// Run exports once, then follows events and exports again every interval
// in case an event was lost. It returns when ctx is done or consumption
// fails.
func (w *ExportWorker) Run(ctx context.Context, events *amqp.Client, interval time.Duration) error {
	if err := w.Export(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Export(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic export failed", "error", err)
				}
			}
		}
	}()

	return events.ConsumeEvents(ctx, func(e *amqp.LedgerEvent) error {
		return w.HandleEvent(ctx, e)
	})
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".export-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
