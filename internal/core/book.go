package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// BookKeeper records every transaction between the accounts and budgets of
// one ledger. A transaction in the book is always booked into exactly the
// accounts and budgets it names; the registries are only reachable through
// the BookKeeper's methods, which hold one lock for their whole duration.
type BookKeeper struct {
	mu           sync.Mutex
	store        Store
	accounts     *Accounts
	budgets      *Accounts
	transactions *Transactions
}

// New opens an empty book. A nil store keeps the book in memory only.
func New(store Store) *BookKeeper {
	return &BookKeeper{
		store:        store,
		accounts:     NewAccounts(),
		budgets:      NewAccounts(),
		transactions: &Transactions{},
	}
}

// Open reads every record held by loader and books the stored transactions.
// Stored transactions carry no rebalance flag, so it is evaluated again as
// if each one was added anew.
func Open(ctx context.Context, loader Loader) (*BookKeeper, error) {
	b := New(loader)

	accounts, err := loader.FetchAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	for _, rec := range accounts {
		a, err := AccountFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", rec.ID, err)
		}
		if err := b.accounts.Insert(a.id, a); err != nil {
			return nil, err
		}
	}

	budgets, err := loader.FetchBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch budgets: %w", err)
	}
	for _, rec := range budgets {
		bg, err := BudgetFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", rec.ID, err)
		}
		if err := b.budgets.Insert(bg.id, bg); err != nil {
			return nil, err
		}
	}

	recs, err := loader.FetchTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	stored, err := TransactionsFromRecords(recs)
	if err != nil {
		return nil, err
	}
	for _, t := range stored.items {
		t.budgetRebalance = b.isBudgetRebalance(t)
		if err := b.transactions.Append(t); err != nil {
			return nil, err
		}
		b.book(t)
	}
	return b, nil
}

func (b *BookKeeper) book(t *Transaction) {
	b.accounts.Book(t)
	b.budgets.Book(t)
}

func (b *BookKeeper) bookAll() {
	for _, t := range b.transactions.items {
		b.book(t)
	}
}

// isBudgetRebalance: exactly one source, exactly one receiver, and the
// receiver is a budget of this book.
func (b *BookKeeper) isBudgetRebalance(t *Transaction) bool {
	return len(t.sources) == 1 && len(t.receiver) == 1 && t.receiver.SubsetOf(b.budgets.Has)
}

func (b *BookKeeper) holds(id string) bool {
	return b.accounts.Has(id) || b.budgets.Has(id)
}

// AddAccount registers a plain account.
func (b *BookKeeper) AddAccount(ctx context.Context, a *Account) error {
	if a == nil {
		return fmt.Errorf("%w: can only add Account", ErrKind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.holds(a.id) {
		return fmt.Errorf("%w: %w: account %s", ErrValidation, ErrDuplicateID, a.id)
	}
	if b.store != nil {
		// Stored accounts are replayed on Open, so the seed is persisted
		// rather than the current balance.
		rec := a.Record()
		rec.Balance = a.initial
		if err := b.store.InsertAccount(ctx, rec); err != nil {
			return fmt.Errorf("store account %s: %w", a.id, err)
		}
	}
	return b.accounts.Insert(a.id, a)
}

// AddBudget registers a budget.
func (b *BookKeeper) AddBudget(ctx context.Context, bg *Budget) error {
	if bg == nil {
		return fmt.Errorf("%w: can only add Budget", ErrKind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.holds(bg.id) {
		return fmt.Errorf("%w: %w: budget %s", ErrValidation, ErrDuplicateID, bg.id)
	}
	if b.store != nil {
		// Budgets replay from their allowance, so the opening balance is
		// what the record carries.
		rec := bg.Record()
		rec.Balance = bg.opening
		if err := b.store.InsertBudget(ctx, rec); err != nil {
			return fmt.Errorf("store budget %s: %w", bg.id, err)
		}
	}
	return b.budgets.Insert(bg.id, bg)
}

// AddTransaction flags t as a budget rebalance when it moves money from a
// single source into a single budget, appends it to the book and books it
// into every account and budget it names.
func (b *BookKeeper) AddTransaction(ctx context.Context, t *Transaction) error {
	if t == nil {
		return fmt.Errorf("%w: can only add Transaction", ErrKind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.transactions.Find(t.id); ok {
		return fmt.Errorf("%w: %w: transaction %s", ErrValidation, ErrDuplicateID, t.id)
	}
	rebalance := b.isBudgetRebalance(t)
	if b.store != nil {
		if err := b.store.InsertTransaction(ctx, t.Record()); err != nil {
			return fmt.Errorf("store transaction %s: %w", t.id, err)
		}
	}
	t.budgetRebalance = rebalance
	if err := b.transactions.Append(t); err != nil {
		return err
	}
	b.book(t)
	return nil
}

// Remove takes the transaction with the given id out of the book and out of
// every account and budget log. Unknown ids are ignored.
func (b *BookKeeper) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.transactions.Find(id)
	if !ok {
		return nil
	}
	if b.store != nil {
		if err := b.store.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
	}
	b.transactions.Remove(t)
	b.accounts.Remove(t)
	b.budgets.Remove(t)
	return nil
}

// Replace retires currentID in favour of replacementID. The account or
// budget stored under currentID is deleted, every transaction naming it is
// rewritten to name the replacement, and all logs are rebuilt from scratch.
// The stored transaction set is then overwritten as a whole.
func (b *BookKeeper) Replace(ctx context.Context, currentID, replacementID string) error {
	currentID = strings.TrimSpace(currentID)
	replacementID = strings.TrimSpace(replacementID)
	if replacementID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyReplacement)
	}
	if replacementID == currentID {
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrSelfReplacement, currentID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.accounts.Has(currentID):
		if b.store != nil {
			if err := b.store.DeleteAccount(ctx, currentID); err != nil {
				return fmt.Errorf("delete account %s: %w", currentID, err)
			}
		}
		b.accounts.Delete(currentID)
	case b.budgets.Has(currentID):
		if b.store != nil {
			if err := b.store.DeleteBudget(ctx, currentID); err != nil {
				return fmt.Errorf("delete budget %s: %w", currentID, err)
			}
		}
		b.budgets.Delete(currentID)
	}

	for _, t := range b.transactions.items {
		t.Update(currentID, replacementID)
	}
	b.accounts.Reset()
	b.budgets.Reset()
	b.bookAll()

	// The rewrite is already live here; a failed overwrite leaves memory
	// ahead of the store.
	if b.store != nil {
		if err := b.store.OverwriteTransactions(ctx, b.transactions.Records()); err != nil {
			return fmt.Errorf("overwrite transactions: %w", err)
		}
	}
	return nil
}

// Balance sums the plain, non-external accounts. Budgets never count.
func (b *BookKeeper) Balance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance()
}

func (b *BookKeeper) balance() decimal.Decimal {
	total := decimal.Zero
	for _, h := range b.accounts.Values() {
		if a, ok := h.(*Account); ok && !a.external {
			total = total.Add(a.Balance())
		}
	}
	return total
}

// Snapshot serializes the book. Transactions are included on request.
func (b *BookKeeper) Snapshot(includeTransactions bool) BookRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := BookRecord{
		Accounts: b.accounts.Records(),
		Budgets:  b.budgets.Records(),
		Balance:  b.balance(),
	}
	if includeTransactions {
		rec.Transactions = b.transactions.Records()
	}
	return rec
}

func (b *BookKeeper) Accounts() []AccountRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts.Records()
}

func (b *BookKeeper) Budgets() []AccountRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.budgets.Records()
}

func (b *BookKeeper) Transactions() []TransactionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transactions.Records()
}

// Holder returns the record of the account or budget stored under id.
func (b *BookKeeper) Holder(id string) (AccountRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, err := b.holder(id)
	if err != nil {
		return AccountRecord{}, err
	}
	return h.Record(), nil
}

func (b *BookKeeper) holder(id string) (Holder, error) {
	if h, ok := b.accounts.Get(id); ok {
		return h, nil
	}
	if h, ok := b.budgets.Get(id); ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: account or budget %s", ErrNotFound, id)
}

// Transaction returns the record of the transaction with the given id along
// with its runtime rebalance flag.
func (b *BookKeeper) Transaction(id string) (TransactionRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.transactions.Find(id)
	if !ok {
		return TransactionRecord{}, false, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return t.Record(), t.budgetRebalance, nil
}

// History returns the running balance of an account or budget over the
// inclusive date range.
func (b *BookKeeper) History(id string, from, to Date) ([]HistoryPoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, err := b.holder(id)
	if err != nil {
		return nil, err
	}
	return h.History(from, to), nil
}
