package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Budget tracks how much of an allowance is left to spend. Its balance is
// seeded by the allowance instead of the opening balance.
type Budget struct {
	journal
	amount  decimal.Decimal
	opening decimal.Decimal
}

type BudgetOption func(*Budget)

func WithBudgetID(id string) BudgetOption {
	return func(b *Budget) {
		if id = strings.TrimSpace(id); id != "" {
			b.id = id
		}
	}
}

// WithOpeningBalance records the balance a budget was created with. It is
// persisted with the budget and restored on Open, but does not enter Balance.
func WithOpeningBalance(v decimal.Decimal) BudgetOption {
	return func(b *Budget) { b.opening = v }
}

func NewBudget(name string, amount decimal.Decimal, opts ...BudgetOption) (*Budget, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyName)
	}
	b := &Budget{journal: journal{name: name}, amount: amount}
	for _, opt := range opts {
		opt(b)
	}
	if b.id == "" {
		b.id = newID()
	}
	return b, nil
}

func (b *Budget) IsExternal() bool                { return false }
func (b *Budget) InitialBalance() decimal.Decimal { return b.opening }
func (b *Budget) Amount() decimal.Decimal         { return b.amount }

// sign has no zero case: self transfers and rebalances always count.
func (b *Budget) sign(t *Transaction) int64 {
	if t.sources.Has(b.id) {
		return -1
	}
	return 1
}

// Balance is the allowance plus every signed transaction of the log.
func (b *Budget) Balance() decimal.Decimal {
	return b.sum(b.amount, b.sign)
}

// Book appends t to the budget's log and returns the new balance. Budgets
// registered in a BookKeeper must only be booked through it, or its
// transactions and the budget's log drift apart.
func (b *Budget) Book(t *Transaction) decimal.Decimal {
	b.book(t)
	return b.Balance()
}

func (b *Budget) Combine(other Holder) decimal.Decimal {
	return b.Balance().Add(other.Balance())
}

func (b *Budget) Offset(v decimal.Decimal) decimal.Decimal {
	return b.Balance().Add(v)
}

func (b *Budget) History(from, to Date) []HistoryPoint {
	return b.history(b.amount, b.sign, from, to)
}

func (b *Budget) FullHistory() []HistoryPoint {
	return b.History(MinDate, MaxDate)
}

func (b *Budget) Record() AccountRecord {
	amount := b.amount
	return AccountRecord{
		ID:      b.id,
		Name:    b.name,
		Balance: b.Balance(),
		Budget:  &amount,
	}
}

func (b *Budget) String() string {
	return fmt.Sprintf("Budget(%q, %s, %s)", b.name, b.amount, b.Balance())
}
