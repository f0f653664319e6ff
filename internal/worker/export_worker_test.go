package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mone/internal/amqp"
	"mone/internal/core"
	"mone/internal/storage/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	book := core.New(store)

	bank, err := core.NewAccount("Bank", decimal.NewFromInt(1000), core.WithAccountID("bank"))
	require.NoError(t, err)
	require.NoError(t, book.AddAccount(ctx, bank))
	shop, err := core.NewAccount("Shop", decimal.Zero, core.WithAccountID("shop"), core.AsExternal())
	require.NoError(t, err)
	require.NoError(t, book.AddAccount(ctx, shop))
	food, err := core.NewBudget("Food", decimal.NewFromInt(300), core.WithBudgetID("food"))
	require.NoError(t, err)
	require.NoError(t, book.AddBudget(ctx, food))

	tx, err := core.NewTransaction(decimal.NewFromInt(120), "groceries",
		core.NewIDSet("bank"), core.NewIDSet("shop"), core.WithDate(core.NewDate(2024, 5, 1)))
	require.NoError(t, err)
	require.NoError(t, book.AddTransaction(ctx, tx))
	return store
}

func newTestWorker(t *testing.T, store core.Loader) (*ExportWorker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exports", "book.yaml")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExportWorker(store, path, logger), path
}

func TestExportWorker_ExportReloadsAsSeed(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	w, path := newTestWorker(t, store)

	require.NoError(t, w.Export(ctx))

	reloaded, err := memory.NewFromFile(path)
	require.NoError(t, err)
	book, err := core.Open(ctx, reloaded)
	require.NoError(t, err)

	original, err := core.Open(ctx, store)
	require.NoError(t, err)
	assert.True(t, original.Balance().Equal(book.Balance()), "balance %s, want %s", book.Balance(), original.Balance())
	assert.Len(t, book.Transactions(), 1)
	assert.Len(t, book.Budgets(), 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestExportWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	w, path := newTestWorker(t, seededStore(t))
	exportedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return exportedAt }

	require.NoError(t, w.HandleEvent(ctx, &amqp.LedgerEvent{Kind: amqp.TransactionBooked, ID: "x", Timestamp: exportedAt}))
	require.FileExists(t, path)
	require.NoError(t, os.Remove(path))

	stale := &amqp.LedgerEvent{Kind: amqp.TransactionBooked, ID: "y", Timestamp: exportedAt.Add(-time.Second)}
	require.NoError(t, w.HandleEvent(ctx, stale))
	assert.NoFileExists(t, path)

	fresh := &amqp.LedgerEvent{Kind: amqp.TransactionRemoved, ID: "z", Timestamp: exportedAt.Add(time.Second)}
	require.NoError(t, w.HandleEvent(ctx, fresh))
	assert.FileExists(t, path)
}

type brokenStore struct{ *memory.Store }

func (brokenStore) FetchBudgets(context.Context) ([]core.AccountRecord, error) {
	return nil, os.ErrPermission
}

func TestExportWorker_StoreFailure(t *testing.T) {
	w, path := newTestWorker(t, brokenStore{memory.New()})
	err := w.Export(context.Background())
	require.ErrorIs(t, err, os.ErrPermission)
	assert.NoFileExists(t, path)
}
