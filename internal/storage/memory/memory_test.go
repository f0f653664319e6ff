package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mone/internal/core"
)

func TestStoreKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.InsertAccount(ctx, core.AccountRecord{ID: id, Name: id}))
	}
	require.NoError(t, s.DeleteAccount(ctx, "a"))
	require.NoError(t, s.DeleteAccount(ctx, "missing"))

	recs, err := s.FetchAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].ID)
	assert.Equal(t, "c", recs[1].ID)

	assert.Error(t, s.InsertAccount(ctx, core.AccountRecord{ID: "b"}))
}

func TestStoreOverwriteTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertTransaction(ctx, core.TransactionRecord{ID: "old", Date: core.NewDate(2023, 1, 1)}))

	err := s.OverwriteTransactions(ctx, []core.TransactionRecord{
		{ID: "t1", Sources: []string{"a"}, Receiver: []string{"b"}, Value: decimal.NewFromInt(3), Date: core.NewDate(2024, 1, 1)},
		{ID: "t2", Sources: []string{"a"}, Receiver: []string{"c"}, Value: decimal.NewFromInt(4), Date: core.NewDate(2024, 1, 2)},
	})
	require.NoError(t, err)

	recs, err := s.FetchTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "t1", recs[0].ID)
	assert.Equal(t, "2024-01-02", recs[1].Date.String())
}

func TestStoreBacksBookKeeper(t *testing.T) {
	ctx := context.Background()
	s := New()
	book := core.New(s)

	bank, err := core.NewAccount("Bank", decimal.NewFromInt(100), core.WithAccountID("bank"))
	require.NoError(t, err)
	shop, err := core.NewAccount("Shop", decimal.Zero, core.WithAccountID("shop"), core.AsExternal())
	require.NoError(t, err)
	require.NoError(t, book.AddAccount(ctx, bank))
	require.NoError(t, book.AddAccount(ctx, shop))

	tx, err := core.NewTransaction(decimal.NewFromInt(30), "shoes", core.NewIDSet("bank"), core.NewIDSet("shop"))
	require.NoError(t, err)
	require.NoError(t, book.AddTransaction(ctx, tx))

	reopened, err := core.Open(ctx, s)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(reopened.Balance()))
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	recs, _ := s.FetchAccounts(context.Background())
	assert.Empty(t, recs)

	seed := `
accounts:
  - id: bank
    name: Bank
    isExternal: false
    balance: 250.5
  - id: shop
    name: Shop
    isExternal: true
    balance: 0
budgets:
  - id: food
    name: Food
    balance: 0
    budget: 200
transactions:
  - id: t1
    date: 2024-02-01
    description: groceries
    sources: [bank]
    receiver: [shop]
    tags: [food]
    value: 20
`
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s, err = NewFromFile(path)
	require.NoError(t, err)

	book, err := core.Open(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "230.5", book.Balance().String())

	food, err := book.Holder("food")
	require.NoError(t, err)
	require.NotNil(t, food.Budget)
	assert.Equal(t, "200", food.Budget.String())

	require.NoError(t, os.WriteFile(path, []byte("accounts: [ {"), 0o644))
	_, err = NewFromFile(path)
	assert.Error(t, err)
}
