package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mone/internal/core"

	_ "modernc.org/sqlite"
)

// table names double as the record kind in log lines.
const (
	tableAccounts     = "accounts"
	tableBudgets      = "budgets"
	tableTransactions = "transactions"
)

// SQLiteRepository is the ledger vault: one JSON document per account,
// budget and transaction.
type SQLiteRepository struct {
	db *sql.DB
}

var _ core.Loader = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, rec core.AccountRecord) error {
	return r.insert(ctx, tableAccounts, rec.ID, rec)
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.delete(ctx, tableAccounts, id)
}

func (r *SQLiteRepository) InsertBudget(ctx context.Context, rec core.AccountRecord) error {
	return r.insert(ctx, tableBudgets, rec.ID, rec)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	return r.delete(ctx, tableBudgets, id)
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, rec core.TransactionRecord) error {
	return r.insert(ctx, tableTransactions, rec.ID, rec)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.delete(ctx, tableTransactions, id)
}

// OverwriteTransactions replaces every stored transaction inside one SQL
// transaction.
func (r *SQLiteRepository) OverwriteTransactions(ctx context.Context, recs []core.TransactionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin overwrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+tableTransactions); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+tableTransactions+" (id, data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, string(data)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit overwrite: %w", err)
	}

	slog.InfoContext(ctx, "Transactions overwritten", "count", len(recs))
	return nil
}

func (r *SQLiteRepository) FetchAccounts(ctx context.Context) ([]core.AccountRecord, error) {
	return fetch[core.AccountRecord](ctx, r.db, tableAccounts)
}

func (r *SQLiteRepository) FetchBudgets(ctx context.Context) ([]core.AccountRecord, error) {
	return fetch[core.AccountRecord](ctx, r.db, tableBudgets)
}

func (r *SQLiteRepository) FetchTransactions(ctx context.Context) ([]core.TransactionRecord, error) {
	return fetch[core.TransactionRecord](ctx, r.db, tableTransactions)
}

func (r *SQLiteRepository) insert(ctx context.Context, table, id string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record %s: %w", table, id, err)
	}

	if _, err := r.db.ExecContext(ctx, "INSERT INTO "+table+" (id, data) VALUES (?, ?)", id, string(data)); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite", "table", table, "id", id)
	return nil
}

func (r *SQLiteRepository) delete(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Delete matched no record", "table", table, "id", id)
	}
	return nil
}

func fetch[T any](ctx context.Context, db *sql.DB, table string) ([]T, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, data FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode %s record %s: %w", table, id, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
