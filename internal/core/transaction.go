package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction moves Value from every source account to every receiver
// account on Date. The direction of the cash flow is given by the two sets;
// Value itself is never negative.
type Transaction struct {
	id              string
	value           decimal.Decimal
	description     string
	date            Date
	sources         IDSet
	receiver        IDSet
	tags            IDSet
	budgetRebalance bool
}

// TransactionOption customises NewTransaction.
type TransactionOption func(*Transaction)

// WithDate sets the value date. The default is today.
func WithDate(d Date) TransactionOption {
	return func(t *Transaction) { t.date = d }
}

func WithTags(tags ...string) TransactionOption {
	return func(t *Transaction) { t.tags = NewIDSet(tags...) }
}

// WithBudgetRebalance flags the transaction as a budget true-up. BookKeeper
// recomputes the flag when the transaction is added to a book.
func WithBudgetRebalance(rebalance bool) TransactionOption {
	return func(t *Transaction) { t.budgetRebalance = rebalance }
}

// WithID keeps a known identifier instead of generating one.
func WithID(id string) TransactionOption {
	return func(t *Transaction) {
		if id = strings.TrimSpace(id); id != "" {
			t.id = id
		}
	}
}

// NewTransaction validates and builds a transaction. Sources and receiver
// must both be non-empty.
func NewTransaction(value decimal.Decimal, description string, sources, receiver IDSet, opts ...TransactionOption) (*Transaction, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptySources)
	}
	if len(receiver) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyReceiver)
	}

	t := &Transaction{
		value:       value.Abs(),
		description: description,
		date:        Today(),
		sources:     sources.clone(),
		receiver:    receiver.clone(),
		tags:        IDSet{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = newID()
	}
	return t, nil
}

func (t *Transaction) ID() string                 { return t.id }
func (t *Transaction) Value() decimal.Decimal     { return t.value }
func (t *Transaction) Description() string        { return t.description }
func (t *Transaction) Date() Date                 { return t.date }
func (t *Transaction) IsBudgetRebalance() bool    { return t.budgetRebalance }
func (t *Transaction) Sources() []string          { return t.sources.Slice() }
func (t *Transaction) Receiver() []string         { return t.receiver.Slice() }
func (t *Transaction) Tags() []string             { return t.tags.Slice() }
func (t *Transaction) HasSource(id string) bool   { return t.sources.Has(id) }
func (t *Transaction) HasReceiver(id string) bool { return t.receiver.Has(id) }

// Touches reports whether id is a source or a receiver of t.
func (t *Transaction) Touches(id string) bool {
	return t.sources.Has(id) || t.receiver.Has(id)
}

// participants is sources ∪ receiver.
func (t *Transaction) participants() IDSet {
	return t.sources.Union(t.receiver)
}

// Update replaces the account currentID by replacementID in the sources and
// in the receiver. It is a no-op where currentID does not appear.
func (t *Transaction) Update(currentID, replacementID string) {
	t.receiver.replace(currentID, replacementID)
	t.sources.replace(currentID, replacementID)
}

func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction(%s, %q, %v, %v, %s, %v, %t)",
		t.value, t.description, t.Sources(), t.Receiver(), t.date, t.Tags(), t.budgetRebalance)
}
