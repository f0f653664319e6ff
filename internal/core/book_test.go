package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore keeps records in memory and can be told to fail.
type recordingStore struct {
	fail         error
	accounts     []AccountRecord
	budgets      []AccountRecord
	transactions []TransactionRecord
	overwrites   int
}

func (s *recordingStore) InsertAccount(_ context.Context, rec AccountRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.accounts = append(s.accounts, rec)
	return nil
}

func (s *recordingStore) DeleteAccount(_ context.Context, id string) error {
	if s.fail != nil {
		return s.fail
	}
	s.accounts = deleteRecord(s.accounts, id)
	return nil
}

func (s *recordingStore) InsertBudget(_ context.Context, rec AccountRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.budgets = append(s.budgets, rec)
	return nil
}

func (s *recordingStore) DeleteBudget(_ context.Context, id string) error {
	if s.fail != nil {
		return s.fail
	}
	s.budgets = deleteRecord(s.budgets, id)
	return nil
}

func (s *recordingStore) InsertTransaction(_ context.Context, rec TransactionRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.transactions = append(s.transactions, rec)
	return nil
}

func (s *recordingStore) DeleteTransaction(_ context.Context, id string) error {
	if s.fail != nil {
		return s.fail
	}
	out := s.transactions[:0]
	for _, rec := range s.transactions {
		if rec.ID != id {
			out = append(out, rec)
		}
	}
	s.transactions = out
	return nil
}

func (s *recordingStore) OverwriteTransactions(_ context.Context, recs []TransactionRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.overwrites++
	s.transactions = append([]TransactionRecord(nil), recs...)
	return nil
}

func (s *recordingStore) FetchAccounts(context.Context) ([]AccountRecord, error) {
	return s.accounts, nil
}

func (s *recordingStore) FetchBudgets(context.Context) ([]AccountRecord, error) {
	return s.budgets, nil
}

func (s *recordingStore) FetchTransactions(context.Context) ([]TransactionRecord, error) {
	return s.transactions, nil
}

func deleteRecord(recs []AccountRecord, id string) []AccountRecord {
	out := recs[:0]
	for _, rec := range recs {
		if rec.ID != id {
			out = append(out, rec)
		}
	}
	return out
}

type fixture struct {
	book  *BookKeeper
	store *recordingStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := &recordingStore{}
	book := New(store)

	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "bank", "10000")))
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "extern", "0", AsExternal())))
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "cash", "1000")))
	require.NoError(t, book.AddBudget(ctx, mustBudget(t, "groceries", "200")))
	return fixture{book: book, store: store}
}

func (f fixture) balanceOf(t *testing.T, id string) string {
	t.Helper()
	rec, err := f.book.Holder(id)
	require.NoError(t, err)
	return rec.Balance.String()
}

func TestBookKeeperAddAndRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	assertDecimal(t, "11000", f.book.Balance())

	tx := mustTx(t, "5", []string{"bank"}, []string{"extern"}, WithID("t1"))
	require.NoError(t, f.book.AddTransaction(ctx, tx))

	assertDecimal(t, "10995", f.book.Balance())
	assert.Equal(t, "9995", f.balanceOf(t, "bank"))
	assert.Equal(t, "5", f.balanceOf(t, "extern"))
	assert.False(t, tx.IsBudgetRebalance())
	require.Len(t, f.store.transactions, 1)

	require.NoError(t, f.book.Remove(ctx, "t1"))
	assert.Equal(t, "10000", f.balanceOf(t, "bank"))
	assert.Empty(t, f.book.Transactions())
	assert.Empty(t, f.store.transactions)

	// Unknown ids are ignored.
	require.NoError(t, f.book.Remove(ctx, "t1"))
}

func TestBookKeeperBudgetRebalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx := mustTx(t, "40", []string{"bank"}, []string{"groceries"})
	require.NoError(t, f.book.AddTransaction(ctx, tx))

	assert.True(t, tx.IsBudgetRebalance())
	assert.Equal(t, "240", f.balanceOf(t, "groceries"))
	assert.Equal(t, "10000", f.balanceOf(t, "bank"))

	_, rebalance, err := f.book.Transaction(tx.ID())
	require.NoError(t, err)
	assert.True(t, rebalance)
}

func TestBookKeeperRebalanceDetection(t *testing.T) {
	tests := []struct {
		name     string
		sources  []string
		receiver []string
		want     bool
	}{
		{"single source into budget", []string{"bank"}, []string{"groceries"}, true},
		{"budget into budget", []string{"groceries"}, []string{"groceries"}, true},
		{"two sources", []string{"bank", "cash"}, []string{"groceries"}, false},
		{"budget and account", []string{"bank"}, []string{"groceries", "cash"}, false},
		{"into account", []string{"bank"}, []string{"cash"}, false},
		{"from budget", []string{"groceries"}, []string{"extern"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tx := mustTx(t, "1", tt.sources, tt.receiver, WithBudgetRebalance(!tt.want))
			require.NoError(t, f.book.AddTransaction(context.Background(), tx))
			assert.Equal(t, tt.want, tx.IsBudgetRebalance())
		})
	}
}

func TestBookKeeperRejectsNil(t *testing.T) {
	ctx := context.Background()
	book := New(nil)

	assert.ErrorIs(t, book.AddAccount(ctx, nil), ErrKind)
	assert.ErrorIs(t, book.AddBudget(ctx, nil), ErrKind)
	assert.ErrorIs(t, book.AddTransaction(ctx, nil), ErrKind)
	assert.Empty(t, book.Accounts())
	assert.Empty(t, book.Transactions())
}

func TestBookKeeperRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.book.AddAccount(ctx, mustAccount(t, "bank", "1"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	err = f.book.AddBudget(ctx, mustBudget(t, "cash", "1"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	tx := mustTx(t, "1", []string{"bank"}, []string{"cash"}, WithID("dup"))
	require.NoError(t, f.book.AddTransaction(ctx, tx))
	again := mustTx(t, "1", []string{"bank"}, []string{"cash"}, WithID("dup"))
	assert.ErrorIs(t, f.book.AddTransaction(ctx, again), ErrValidation)
	assert.Len(t, f.book.Transactions(), 1)
}

func TestBookKeeperStoreFailureLeavesBookUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	boom := errors.New("disk full")
	f.store.fail = boom

	tx := mustTx(t, "40", []string{"bank"}, []string{"groceries"})
	err := f.book.AddTransaction(ctx, tx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.IsBudgetRebalance())
	assert.Empty(t, f.book.Transactions())
	assert.Equal(t, "10000", f.balanceOf(t, "bank"))

	assert.ErrorIs(t, f.book.AddAccount(ctx, mustAccount(t, "new", "1")), boom)
	_, err = f.book.Holder("new")
	assert.ErrorIs(t, err, ErrNotFound)

	f.store.fail = nil
	require.NoError(t, f.book.AddTransaction(ctx, tx))
	f.store.fail = boom
	assert.ErrorIs(t, f.book.Remove(ctx, tx.ID()), boom)
	assert.Len(t, f.book.Transactions(), 1)
}

func TestBookKeeperReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "100", []string{"cash"}, []string{"extern"})))
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "50", []string{"extern"}, []string{"cash"})))
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "25", []string{"bank"}, []string{"extern"})))
	before := f.book.Balance()
	assertDecimal(t, "10925", before)

	require.NoError(t, f.book.Replace(ctx, "cash", "bank"))

	_, err := f.book.Holder("cash")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, rec := range f.book.Transactions() {
		assert.NotContains(t, rec.Sources, "cash")
		assert.NotContains(t, rec.Receiver, "cash")
	}
	// Bank absorbs the transactions of cash but not its initial balance.
	assert.Equal(t, "9925", f.balanceOf(t, "bank"))
	assert.Equal(t, 1, f.store.overwrites)
	assert.Len(t, f.store.transactions, 3)
	assert.Len(t, f.store.accounts, 2)

	bank, err := f.book.History("bank", MinDate, MaxDate)
	require.NoError(t, err)
	assert.Len(t, bank, 3)
}

func TestBookKeeperReplaceKeepsLedgerTotalForZeroSeed(t *testing.T) {
	ctx := context.Background()
	book := New(nil)
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "bank", "500")))
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "wallet", "0")))
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "shop", "0", AsExternal())))
	require.NoError(t, book.AddTransaction(ctx, mustTx(t, "60", []string{"bank"}, []string{"wallet"})))
	require.NoError(t, book.AddTransaction(ctx, mustTx(t, "15", []string{"wallet"}, []string{"shop"})))
	before := book.Balance()

	require.NoError(t, book.Replace(ctx, "wallet", "bank"))

	assertDecimal(t, before.String(), book.Balance())
	assertDecimal(t, "485", book.Balance())
}

func TestBookKeeperReplaceBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.book.AddBudget(ctx, mustBudget(t, "food", "50")))
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "10", []string{"groceries"}, []string{"extern"})))

	require.NoError(t, f.book.Replace(ctx, "groceries", "food"))

	assert.Len(t, f.book.Budgets(), 1)
	assert.Equal(t, "40", f.balanceOf(t, "food"))
	assert.Len(t, f.store.budgets, 1)
}

func TestBookKeeperReplaceErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.book.Replace(ctx, "cash", ""), ErrEmptyReplacement)
	assert.ErrorIs(t, f.book.Replace(ctx, "cash", "cash"), ErrValidation)
	assert.Len(t, f.book.Accounts(), 3)

	// Blank replacements are rejected before anything is touched.
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "3", []string{"cash"}, []string{"extern"}, WithID("blank"))))
	assert.ErrorIs(t, f.book.Replace(ctx, "cash", "  "), ErrEmptyReplacement)
	assert.ErrorIs(t, f.book.Replace(ctx, " cash", "cash "), ErrSelfReplacement)
	assert.Len(t, f.book.Accounts(), 3)
	assert.Equal(t, []string{"cash"}, f.book.Transactions()[0].Sources)
	assert.Equal(t, "997", f.balanceOf(t, "cash"))
	require.NoError(t, f.book.Remove(ctx, "blank"))

	// Unknown current ids still rewrite references.
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "1", []string{"ghost"}, []string{"cash"})))
	require.NoError(t, f.book.Replace(ctx, "ghost", "bank"))
	assert.Equal(t, []string{"bank"}, f.book.Transactions()[0].Sources)
	assert.Equal(t, "9999", f.balanceOf(t, "bank"))
}

func TestOpenRestoresBudgetOpeningBalance(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	book := New(store)
	bg, err := NewBudget("rent", dec("800"), WithBudgetID("rent"), WithOpeningBalance(dec("75")))
	require.NoError(t, err)
	require.NoError(t, book.AddBudget(ctx, bg))
	require.NoError(t, book.AddTransaction(ctx, mustTx(t, "100", []string{"rent"}, []string{"ghost"})))

	require.Len(t, store.budgets, 1)
	assertDecimal(t, "75", store.budgets[0].Balance)

	reopened, err := Open(ctx, store)
	require.NoError(t, err)
	got, ok := reopened.budgets.Get(bg.ID())
	require.True(t, ok)
	assertDecimal(t, "75", got.InitialBalance())
	rec, err := reopened.Holder(bg.ID())
	require.NoError(t, err)
	assertDecimal(t, "700", rec.Balance)
}

func TestBookKeeperSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "5", []string{"bank"}, []string{"extern"})))

	short := f.book.Snapshot(false)
	assert.Len(t, short.Accounts, 3)
	assert.Len(t, short.Budgets, 1)
	assert.Nil(t, short.Transactions)
	assertDecimal(t, "10995", short.Balance)

	full := f.book.Snapshot(true)
	assert.Len(t, full.Transactions, 1)
}

func TestOpenReplaysStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "40", []string{"bank"}, []string{"groceries"})))
	require.NoError(t, f.book.AddTransaction(ctx, mustTx(t, "5", []string{"bank"}, []string{"extern"})))
	want := f.book.Snapshot(true)

	reopened, err := Open(ctx, f.store)
	require.NoError(t, err)
	got := reopened.Snapshot(true)

	assertDecimal(t, want.Balance.String(), got.Balance)
	require.Len(t, got.Accounts, len(want.Accounts))
	for i := range want.Accounts {
		assert.Equal(t, want.Accounts[i].ID, got.Accounts[i].ID)
		assertDecimal(t, want.Accounts[i].Balance.String(), got.Accounts[i].Balance)
	}
	assertDecimal(t, "240", got.Budgets[0].Balance)

	_, rebalance, err := reopened.Transaction(want.Transactions[0].ID)
	require.NoError(t, err)
	assert.True(t, rebalance)
}

func TestHistoryUnknownHolder(t *testing.T) {
	_, err := New(nil).History("nope", MinDate, MaxDate)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = New(nil).Transaction("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookKeeperConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	book := New(nil)
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "bank", "1000")))
	require.NoError(t, book.AddAccount(ctx, mustAccount(t, "shop", "0", AsExternal())))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := NewTransaction(dec("1"), "", NewIDSet("bank"), NewIDSet("shop"))
			if err != nil {
				return
			}
			_ = book.AddTransaction(ctx, tx)
			_ = book.Replace(ctx, "other", "unused")
		}()
	}
	wg.Wait()

	assertDecimal(t, "950", book.Balance())
	assert.Len(t, book.Transactions(), 50)
}
