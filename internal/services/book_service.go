package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"mone/internal/amqp"
	"mone/internal/cache"
	"mone/internal/core"
	applog "mone/internal/log"
	"mone/internal/metrics"
)

// Publisher sends ledger events to subscribers.
type Publisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// BookService wraps the book for the HTTP API and the CLI. It turns request
// DTOs into domain objects, logs and measures every write, and publishes a
// ledger event once the write is stored.
type BookService struct {
	book    *core.BookKeeper
	events  Publisher
	metrics metrics.Collector
	logger  *applog.Logger
	slog    *applog.StructuredLogger

	// history is keyed by generation; every stored write moves to a new one.
	history    cache.Cache[[]core.HistoryPoint]
	generation atomic.Uint64
}

type Option func(*BookService)

// WithPublisher enables ledger events.
func WithPublisher(p Publisher) Option {
	return func(s *BookService) { s.events = p }
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *BookService) {
		if c != nil {
			s.metrics = c
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(s *BookService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistoryCache memoizes History results until the next write.
func WithHistoryCache(c cache.Cache[[]core.HistoryPoint]) Option {
	return func(s *BookService) { s.history = c }
}

func NewBookService(book *core.BookKeeper, opts ...Option) *BookService {
	s := &BookService{
		book:    book,
		metrics: metrics.NoOpCollector{},
		logger:  applog.New(applog.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentBook)
	s.slog = applog.NewStructuredLogger(s.logger)
	s.metrics.SetBalance(book.Balance())
	return s
}

type (
	AccountRequest struct {
		ID       string          `json:"id,omitempty"`
		Name     string          `json:"name"`
		Balance  decimal.Decimal `json:"balance"`
		External bool            `json:"isExternal"`
	}

	// BudgetRequest creates a budget. Balance is the opening balance kept
	// on the record.
	BudgetRequest struct {
		ID      string           `json:"id,omitempty"`
		Name    string           `json:"name"`
		Amount  decimal.Decimal  `json:"budget"`
		Balance *decimal.Decimal `json:"balance,omitempty"`
	}

	// TransactionRequest creates a transaction. A zero Date means today.
	TransactionRequest struct {
		ID          string          `json:"id,omitempty"`
		Value       decimal.Decimal `json:"value"`
		Description string          `json:"description"`
		Date        core.Date       `json:"date"`
		Sources     []string        `json:"sources"`
		Receiver    []string        `json:"receiver"`
		Tags        []string        `json:"tags"`
	}

	// ImportRequest links every row of a bank export to Account. Rows with a
	// negative value leave Account towards Counterpart; the others arrive
	// from Counterpart.
	ImportRequest struct {
		Options     core.ImportOptions
		Account     string
		Counterpart string
		Tags        []string
	}

	ImportResult struct {
		Rows         int                      `json:"rows"`
		Transactions []core.TransactionRecord `json:"transactions"`
	}
)

// UnmarshalJSON lets clients omit the date.
func (r *TransactionRequest) UnmarshalJSON(b []byte) error {
	type plain TransactionRequest
	var raw struct {
		plain
		Date string `json:"date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = TransactionRequest(raw.plain)
	if raw.Date != "" {
		d, err := core.ParseDate(raw.Date)
		if err != nil {
			return err
		}
		r.Date = d
	}
	return nil
}

func (s *BookService) CreateAccount(ctx context.Context, req AccountRequest) (core.AccountRecord, error) {
	start := time.Now()
	opts := []core.AccountOption{core.WithAccountID(req.ID)}
	if req.External {
		opts = append(opts, core.AsExternal())
	}
	a, err := core.NewAccount(req.Name, req.Balance, opts...)
	if err == nil {
		err = s.book.AddAccount(ctx, a)
	}
	if err != nil {
		s.fail(ctx, applog.OpAddAccount, err, applog.NewFields().WithAccount(req.ID))
		return core.AccountRecord{}, err
	}

	s.done(ctx, applog.OpAddAccount, start, applog.NewFields().WithAccount(a.ID()))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.AccountCreated, a.ID(), s.book.Balance()))
	return s.book.Holder(a.ID())
}

func (s *BookService) CreateBudget(ctx context.Context, req BudgetRequest) (core.AccountRecord, error) {
	start := time.Now()
	opts := []core.BudgetOption{core.WithBudgetID(req.ID)}
	if req.Balance != nil {
		opts = append(opts, core.WithOpeningBalance(*req.Balance))
	}
	bg, err := core.NewBudget(req.Name, req.Amount, opts...)
	if err == nil {
		err = s.book.AddBudget(ctx, bg)
	}
	if err != nil {
		s.fail(ctx, applog.OpAddBudget, err, applog.NewFields().WithBudget(req.ID))
		return core.AccountRecord{}, err
	}

	s.done(ctx, applog.OpAddBudget, start, applog.NewFields().WithBudget(bg.ID()))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.BudgetCreated, bg.ID(), s.book.Balance()))
	return s.book.Holder(bg.ID())
}

func (s *BookService) CreateTransaction(ctx context.Context, req TransactionRequest) (core.TransactionRecord, error) {
	start := time.Now()
	opts := []core.TransactionOption{core.WithID(req.ID), core.WithTags(req.Tags...)}
	if !req.Date.IsZero() {
		opts = append(opts, core.WithDate(req.Date))
	}
	t, err := core.NewTransaction(req.Value, req.Description,
		core.NewIDSet(req.Sources...), core.NewIDSet(req.Receiver...), opts...)
	if err == nil {
		err = s.book.AddTransaction(ctx, t)
	}
	if err != nil {
		s.fail(ctx, applog.OpAddTransaction, err, applog.NewFields().WithTransaction(req.ID, req.Value.String(), false))
		return core.TransactionRecord{}, err
	}

	s.metrics.RecordBooked()
	s.done(ctx, applog.OpAddTransaction, start,
		applog.NewFields().WithTransaction(t.ID(), t.Value().String(), t.IsBudgetRebalance()))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionBooked, t.ID(), s.book.Balance()))
	return t.Record(), nil
}

// RemoveTransaction deletes a transaction. Unknown ids succeed silently and
// publish nothing.
func (s *BookService) RemoveTransaction(ctx context.Context, id string) error {
	start := time.Now()
	if _, _, err := s.book.Transaction(id); errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err := s.book.Remove(ctx, id); err != nil {
		s.fail(ctx, applog.OpRemove, err, applog.NewFields().WithTransaction(id, "", false))
		return err
	}

	s.metrics.RecordRemoved()
	s.done(ctx, applog.OpRemove, start, applog.NewFields().WithTransaction(id, "", false))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionRemoved, id, s.book.Balance()))
	return nil
}

// Replace retires current in favour of replacement.
func (s *BookService) Replace(ctx context.Context, current, replacement string) error {
	start := time.Now()
	current, replacement = strings.TrimSpace(current), strings.TrimSpace(replacement)
	kind := "unknown"
	if rec, err := s.book.Holder(current); err == nil {
		kind = "account"
		if rec.Budget != nil {
			kind = "budget"
		}
	}

	fields := applog.NewFields().WithReplacement(current, replacement)
	if err := s.book.Replace(ctx, current, replacement); err != nil {
		// A failed overwrite leaves the rewrite applied in memory.
		s.invalidate()
		s.fail(ctx, applog.OpReplace, err, fields)
		return err
	}

	s.metrics.RecordReplacement(kind)
	s.done(ctx, applog.OpReplace, start, fields)
	event := amqp.NewLedgerEvent(amqp.HolderReplaced, current, s.book.Balance())
	event.Replacement = replacement
	s.publish(ctx, event)
	return nil
}

// PreviewImport parses an export without touching the book.
func (s *BookService) PreviewImport(r io.Reader, opts core.ImportOptions) ([]core.ImportedRow, error) {
	return core.ImportCSV(r, opts)
}

// Import parses an export and books every row. All rows are parsed and
// linked before the first one is booked; a store failure part way stops the
// import and reports how many rows made it.
func (s *BookService) Import(ctx context.Context, r io.Reader, req ImportRequest) (ImportResult, error) {
	start := time.Now()
	fields := applog.NewFields().WithAccount(req.Account)

	txs, err := s.link(r, req)
	if err != nil {
		s.fail(ctx, applog.OpImport, err, fields)
		return ImportResult{}, err
	}

	result := ImportResult{Transactions: make([]core.TransactionRecord, 0, len(txs))}
	for _, t := range txs {
		if err := s.book.AddTransaction(ctx, t); err != nil {
			err = fmt.Errorf("import stopped after %d rows: %w", result.Rows, err)
			s.fail(ctx, applog.OpImport, err, fields)
			s.recordImport(ctx, result)
			return result, err
		}
		s.metrics.RecordBooked()
		result.Rows++
		result.Transactions = append(result.Transactions, t.Record())
	}

	fields[applog.FieldRows] = result.Rows
	s.done(ctx, applog.OpImport, start, fields)
	s.recordImport(ctx, result)
	return result, nil
}

func (s *BookService) link(r io.Reader, req ImportRequest) ([]*core.Transaction, error) {
	account := strings.TrimSpace(req.Account)
	counterpart := strings.TrimSpace(req.Counterpart)
	if account == "" || counterpart == "" {
		return nil, fmt.Errorf("%w: import needs an account and a counterpart", core.ErrValidation)
	}

	rows, err := core.ImportCSV(r, req.Options)
	if err != nil {
		return nil, err
	}

	txs := make([]*core.Transaction, 0, len(rows))
	for _, row := range rows {
		from, to := counterpart, account
		if row.Value.IsNegative() {
			from, to = account, counterpart
		}
		t, err := row.Link(core.NewIDSet(from), core.NewIDSet(to), req.Tags...)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", core.ErrImport, row.Line, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (s *BookService) recordImport(ctx context.Context, result ImportResult) {
	if result.Rows == 0 {
		return
	}
	s.invalidate()
	s.metrics.RecordImported(result.Rows)
	event := amqp.NewLedgerEvent(amqp.TransactionsImported, "", s.book.Balance())
	event.Count = result.Rows
	s.publish(ctx, event)
}

func (s *BookService) Snapshot(full bool) core.BookRecord {
	return s.book.Snapshot(full)
}

func (s *BookService) Accounts() []core.AccountRecord { return s.book.Accounts() }

func (s *BookService) Budgets() []core.AccountRecord { return s.book.Budgets() }

func (s *BookService) Transactions() []core.TransactionRecord { return s.book.Transactions() }

func (s *BookService) Holder(id string) (core.AccountRecord, error) { return s.book.Holder(id) }

// Transaction returns a transaction with its budget rebalance flag.
func (s *BookService) Transaction(id string) (core.TransactionRecord, bool, error) {
	return s.book.Transaction(id)
}

// History returns the running balance of a holder. Zero bounds are open.
func (s *BookService) History(id string, from, to core.Date) ([]core.HistoryPoint, error) {
	if from.IsZero() {
		from = core.MinDate
	}
	if to.IsZero() {
		to = core.MaxDate
	}
	if s.history == nil {
		return s.book.History(id, from, to)
	}

	key := fmt.Sprintf("%d|%s|%s|%s", s.generation.Load(), id, from, to)
	if points, ok := s.history.Get(key); ok {
		return points, nil
	}
	points, err := s.book.History(id, from, to)
	if err != nil {
		return nil, err
	}
	s.history.Set(key, points)
	return points, nil
}

// invalidate retires every cached read taken before a write.
func (s *BookService) invalidate() {
	s.generation.Add(1)
	if s.history != nil {
		s.history.Clear()
	}
}

func (s *BookService) done(ctx context.Context, op string, start time.Time, fields applog.LogFields) {
	s.invalidate()
	balance := s.book.Balance()
	s.metrics.RecordOperation(op, time.Since(start))
	s.metrics.SetBalance(balance)
	s.slog.LogBookOperation(ctx, op, fields.WithBalance(balance.String()))
}

func (s *BookService) fail(ctx context.Context, op string, err error, fields applog.LogFields) {
	errType := applog.ErrorTypeDatabase
	switch {
	case errors.Is(err, core.ErrImport):
		errType = applog.ErrorTypeImport
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrKind):
		errType = applog.ErrorTypeValidation
	default:
		s.metrics.RecordStoreError(op)
	}
	s.slog.LogError(ctx, "Book operation failed", err, op, fields.WithErrorType(errType))
}

// publish never fails the caller: the write is already stored.
func (s *BookService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", event.Kind,
			"id", event.ID,
			applog.FieldError, err,
			applog.FieldOperation, applog.OpPublish)
	}
}
