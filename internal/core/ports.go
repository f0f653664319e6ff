package core

import "context"

// Ports for the persistence collaborator. Every call is synchronous; a
// returned error aborts the book operation and is handed back to the caller.
type (
	Store interface {
		InsertAccount(ctx context.Context, rec AccountRecord) error
		DeleteAccount(ctx context.Context, id string) error
		InsertBudget(ctx context.Context, rec AccountRecord) error
		DeleteBudget(ctx context.Context, id string) error
		InsertTransaction(ctx context.Context, rec TransactionRecord) error
		DeleteTransaction(ctx context.Context, id string) error

		// OverwriteTransactions atomically replaces the whole stored
		// transaction set.
		OverwriteTransactions(ctx context.Context, recs []TransactionRecord) error
	}

	// Loader is a Store that can also hand back everything it holds, in
	// insertion order.
	Loader interface {
		Store
		FetchAccounts(ctx context.Context) ([]AccountRecord, error)
		FetchBudgets(ctx context.Context) ([]AccountRecord, error)
		FetchTransactions(ctx context.Context) ([]TransactionRecord, error)
	}
)
