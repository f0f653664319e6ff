package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Records are the flat key-value shapes handed to the persistence and
// presentation collaborators.
type (
	TransactionRecord struct {
		ID          string          `json:"id" yaml:"id"`
		Date        Date            `json:"date" yaml:"date"`
		Description string          `json:"description" yaml:"description"`
		Receiver    []string        `json:"receiver" yaml:"receiver"`
		Sources     []string        `json:"sources" yaml:"sources"`
		Tags        []string        `json:"tags" yaml:"tags"`
		Value       decimal.Decimal `json:"value" yaml:"value"`
	}

	// AccountRecord is shared by accounts and budgets. Budget is set for
	// budgets only.
	AccountRecord struct {
		ID         string           `json:"id" yaml:"id"`
		IsExternal bool             `json:"isExternal" yaml:"isExternal"`
		Name       string           `json:"name" yaml:"name"`
		Balance    decimal.Decimal  `json:"balance" yaml:"balance"`
		Budget     *decimal.Decimal `json:"budget,omitempty" yaml:"budget,omitempty"`
	}

	BookRecord struct {
		Accounts     []AccountRecord     `json:"accounts" yaml:"accounts"`
		Budgets      []AccountRecord     `json:"budgets" yaml:"budgets"`
		Balance      decimal.Decimal     `json:"balance" yaml:"balance"`
		Transactions []TransactionRecord `json:"transactions,omitempty" yaml:"transactions,omitempty"`
	}
)

// Record returns the persisted form of t. The budget rebalance flag is a
// runtime property and is not part of it.
func (t *Transaction) Record() TransactionRecord {
	return TransactionRecord{
		ID:          t.id,
		Date:        t.date,
		Description: t.description,
		Receiver:    t.Receiver(),
		Sources:     t.Sources(),
		Tags:        t.Tags(),
		Value:       t.value,
	}
}

// TransactionFromRecord rebuilds a transaction. The result is never flagged
// as a budget rebalance; adding it to a BookKeeper re-evaluates the flag.
func TransactionFromRecord(rec TransactionRecord) (*Transaction, error) {
	opts := []TransactionOption{WithID(rec.ID), WithTags(rec.Tags...)}
	if !rec.Date.IsZero() {
		opts = append(opts, WithDate(rec.Date))
	}
	t, err := NewTransaction(rec.Value, rec.Description, NewIDSet(rec.Sources...), NewIDSet(rec.Receiver...), opts...)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", rec.ID, err)
	}
	return t, nil
}

// AccountFromRecord rebuilds an account. The snapshot balance becomes the
// initial balance; transactions are attached by replaying them into a book.
func AccountFromRecord(rec AccountRecord) (*Account, error) {
	opts := []AccountOption{WithAccountID(rec.ID)}
	if rec.IsExternal {
		opts = append(opts, AsExternal())
	}
	return NewAccount(rec.Name, rec.Balance, opts...)
}

// BudgetFromRecord rebuilds a budget from its record. A missing budget field
// means a zero allowance.
func BudgetFromRecord(rec AccountRecord) (*Budget, error) {
	amount := decimal.Zero
	if rec.Budget != nil {
		amount = *rec.Budget
	}
	return NewBudget(rec.Name, amount, WithBudgetID(rec.ID), WithOpeningBalance(rec.Balance))
}
