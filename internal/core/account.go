package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Holder is a ledger endpoint transactions can be booked into: an Account
// or a Budget. The log mutators are unexported so bookings only happen
// through this package.
type Holder interface {
	ID() string
	Name() string
	IsExternal() bool
	InitialBalance() decimal.Decimal
	Balance() decimal.Decimal
	Transactions() []*Transaction
	History(from, to Date) []HistoryPoint
	Record() AccountRecord

	book(t *Transaction)
	unbook(t *Transaction)
	reset()
}

// HistoryPoint is the running balance of a holder right after a transaction.
type HistoryPoint struct {
	Balance decimal.Decimal `json:"balance" yaml:"balance"`
	Date    Date            `json:"date" yaml:"date"`
}

// journal is the identity and transaction log shared by accounts and
// budgets. The log holds references; transactions are owned by the book.
type journal struct {
	id   string
	name string
	log  []*Transaction
}

func (j *journal) ID() string   { return j.id }
func (j *journal) Name() string { return j.name }

// Transactions returns a copy of the log in booking order.
func (j *journal) Transactions() []*Transaction {
	return slices.Clone(j.log)
}

func (j *journal) book(t *Transaction) {
	j.log = append(j.log, t)
}

func (j *journal) unbook(t *Transaction) {
	j.log = slices.DeleteFunc(j.log, func(x *Transaction) bool { return x == t })
}

func (j *journal) reset() {
	j.log = nil
}

func (j *journal) sum(seed decimal.Decimal, sign func(*Transaction) int64) decimal.Decimal {
	total := seed
	for _, t := range j.log {
		total = total.Add(t.value.Mul(decimal.NewFromInt(sign(t))))
	}
	return total
}

func (j *journal) history(seed decimal.Decimal, sign func(*Transaction) int64, from, to Date) []HistoryPoint {
	running := seed
	points := []HistoryPoint{}
	for _, t := range j.log {
		running = running.Add(t.value.Mul(decimal.NewFromInt(sign(t))))
		if t.date.Between(from, to) {
			points = append(points, HistoryPoint{Balance: running, Date: t.date})
		}
	}
	return points
}

// Account is a wallet, bank account, or, when external, someone else's
// pocket. External accounts are left out of aggregate balances.
type Account struct {
	journal
	external bool
	initial  decimal.Decimal
}

type AccountOption func(*Account)

// AsExternal marks the account as a counterparty outside the tracked wallets.
func AsExternal() AccountOption {
	return func(a *Account) { a.external = true }
}

func WithAccountID(id string) AccountOption {
	return func(a *Account) {
		if id = strings.TrimSpace(id); id != "" {
			a.id = id
		}
	}
}

func NewAccount(name string, initialBalance decimal.Decimal, opts ...AccountOption) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyName)
	}
	a := &Account{journal: journal{name: name}, initial: initialBalance}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = newID()
	}
	return a, nil
}

func (a *Account) IsExternal() bool                { return a.external }
func (a *Account) InitialBalance() decimal.Decimal { return a.initial }

// sign is 0 for self transfers and budget rebalances, -1 when the account
// pays, +1 when it receives.
func (a *Account) sign(t *Transaction) int64 {
	if (t.sources.Has(a.id) && t.receiver.Has(a.id)) || t.budgetRebalance {
		return 0
	}
	if t.sources.Has(a.id) {
		return -1
	}
	return 1
}

// Balance is the initial balance plus every signed transaction of the log.
func (a *Account) Balance() decimal.Decimal {
	return a.sum(a.initial, a.sign)
}

// Book appends t to the account's log and returns the new balance. Accounts
// registered in a BookKeeper must only be booked through it, or its
// transactions and the account's log drift apart.
func (a *Account) Book(t *Transaction) decimal.Decimal {
	a.book(t)
	return a.Balance()
}

// Combine returns the sum of both balances without touching either holder.
func (a *Account) Combine(other Holder) decimal.Decimal {
	return a.Balance().Add(other.Balance())
}

// Offset returns the balance shifted by v.
func (a *Account) Offset(v decimal.Decimal) decimal.Decimal {
	return a.Balance().Add(v)
}

// History lists the running balance after each transaction dated within
// [from, to].
func (a *Account) History(from, to Date) []HistoryPoint {
	return a.history(a.initial, a.sign, from, to)
}

func (a *Account) FullHistory() []HistoryPoint {
	return a.History(MinDate, MaxDate)
}

// Record snapshots the account. The balance is the current balance, which
// becomes the initial balance when the record is read back.
func (a *Account) Record() AccountRecord {
	return AccountRecord{
		ID:         a.id,
		IsExternal: a.external,
		Name:       a.name,
		Balance:    a.Balance(),
	}
}

func (a *Account) String() string {
	return fmt.Sprintf("Account(%s, %s, %t)", a.name, a.Balance(), a.external)
}
