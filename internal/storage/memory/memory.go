package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"mone/internal/core"
)

// entry is a stored record in its encoded form, so callers never share
// slices with the store.
type entry struct {
	id   string
	data []byte
}

// Store keeps ledger records in process memory, in insertion order.
type Store struct {
	mu           sync.Mutex
	accounts     []entry
	budgets      []entry
	transactions []entry
}

var _ core.Loader = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFile seeds a store from a YAML book snapshot. A missing file yields
// an empty store.
func NewFromFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}

	var seed core.BookRecord
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return fromRecords(seed)
}

func fromRecords(seed core.BookRecord) (*Store, error) {
	s := New()
	ctx := context.Background()
	for _, rec := range seed.Accounts {
		if err := s.InsertAccount(ctx, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range seed.Budgets {
		if err := s.InsertBudget(ctx, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range seed.Transactions {
		if err := s.InsertTransaction(ctx, rec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) InsertAccount(_ context.Context, rec core.AccountRecord) error {
	return s.insert(&s.accounts, rec.ID, rec)
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.delete(&s.accounts, id)
	return nil
}

func (s *Store) InsertBudget(_ context.Context, rec core.AccountRecord) error {
	return s.insert(&s.budgets, rec.ID, rec)
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.delete(&s.budgets, id)
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, rec core.TransactionRecord) error {
	return s.insert(&s.transactions, rec.ID, rec)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.delete(&s.transactions, id)
	return nil
}

func (s *Store) OverwriteTransactions(_ context.Context, recs []core.TransactionRecord) error {
	fresh := make([]entry, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", rec.ID, err)
		}
		fresh = append(fresh, entry{id: rec.ID, data: data})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = fresh
	return nil
}

func (s *Store) FetchAccounts(_ context.Context) ([]core.AccountRecord, error) {
	return fetch[core.AccountRecord](s, &s.accounts)
}

func (s *Store) FetchBudgets(_ context.Context) ([]core.AccountRecord, error) {
	return fetch[core.AccountRecord](s, &s.budgets)
}

func (s *Store) FetchTransactions(_ context.Context) ([]core.TransactionRecord, error) {
	return fetch[core.TransactionRecord](s, &s.transactions)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) insert(table *[]entry, id string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(*table, func(e entry) bool { return e.id == id }) {
		return fmt.Errorf("record %s already stored", id)
	}
	*table = append(*table, entry{id: id, data: data})
	return nil
}

func (s *Store) delete(table *[]entry, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*table = slices.DeleteFunc(*table, func(e entry) bool { return e.id == id })
}

func fetch[T any](s *Store, table *[]entry) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0, len(*table))
	for _, e := range *table {
		var rec T
		if err := json.Unmarshal(e.data, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", e.id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Copy reads every record held by src into a new store.
func Copy(ctx context.Context, src core.Loader) (*Store, error) {
	accounts, err := src.FetchAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	budgets, err := src.FetchBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch budgets: %w", err)
	}
	transactions, err := src.FetchTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return fromRecords(core.BookRecord{Accounts: accounts, Budgets: budgets, Transactions: transactions})
}

// Seed returns the stored records in the shape NewFromFile reads back.
// Balance is left zero.
func (s *Store) Seed(ctx context.Context) (core.BookRecord, error) {
	var (
		seed core.BookRecord
		err  error
	)
	if seed.Accounts, err = s.FetchAccounts(ctx); err != nil {
		return core.BookRecord{}, err
	}
	if seed.Budgets, err = s.FetchBudgets(ctx); err != nil {
		return core.BookRecord{}, err
	}
	if seed.Transactions, err = s.FetchTransactions(ctx); err != nil {
		return core.BookRecord{}, err
	}
	return seed, nil
}
