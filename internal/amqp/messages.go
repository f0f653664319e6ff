package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names what happened to the ledger.
type EventKind string

const (
	TransactionBooked    EventKind = "transaction.booked"
	TransactionRemoved   EventKind = "transaction.removed"
	AccountCreated       EventKind = "account.created"
	BudgetCreated        EventKind = "budget.created"
	HolderReplaced       EventKind = "holder.replaced"
	TransactionsImported EventKind = "transactions.imported"
)

func (k EventKind) IsValid() bool {
	switch k {
	case TransactionBooked, TransactionRemoved, AccountCreated, BudgetCreated, HolderReplaced, TransactionsImported:
		return true
	}
	return false
}

// LedgerEvent is published after every successful write to the book. It
// carries ids only; consumers read the book for details.
type LedgerEvent struct {
	Kind        EventKind       `json:"kind"`
	ID          string          `json:"id,omitempty"`
	Replacement string          `json:"replacement,omitempty"`
	Count       int             `json:"count,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, id string, balance decimal.Decimal) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		ID:        id,
		Balance:   balance,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Kind.IsValid() {
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return &e, nil
}
