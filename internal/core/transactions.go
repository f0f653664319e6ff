package core

import (
	"fmt"
	"slices"
)

// Transactions is the ordered registry of every transaction of a book.
type Transactions struct {
	items []*Transaction
}

func NewTransactions(ts ...*Transaction) (*Transactions, error) {
	reg := &Transactions{}
	for _, t := range ts {
		if err := reg.Append(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// TransactionsFromRecords rebuilds a registry from stored records, keeping
// their order.
func TransactionsFromRecords(recs []TransactionRecord) (*Transactions, error) {
	reg := &Transactions{items: make([]*Transaction, 0, len(recs))}
	for _, rec := range recs {
		t, err := TransactionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		reg.items = append(reg.items, t)
	}
	return reg, nil
}

// Append adds t at the end. A nil transaction is rejected with ErrKind and
// the registry is left unchanged.
func (r *Transactions) Append(t *Transaction) error {
	if t == nil {
		return fmt.Errorf("%w: can only add Transaction", ErrKind)
	}
	r.items = append(r.items, t)
	return nil
}

func (r *Transactions) Len() int { return len(r.items) }

// All returns the transactions in order. The slice is a copy; the
// transactions are shared.
func (r *Transactions) All() []*Transaction { return slices.Clone(r.items) }

// Find resolves id by linear scan.
func (r *Transactions) Find(id string) (*Transaction, bool) {
	i := slices.IndexFunc(r.items, func(t *Transaction) bool { return t.id == id })
	if i < 0 {
		return nil, false
	}
	return r.items[i], true
}

// Remove drops t if present and reports whether it was held.
func (r *Transactions) Remove(t *Transaction) bool {
	i := slices.Index(r.items, t)
	if t == nil || i < 0 {
		return false
	}
	r.items = slices.Delete(r.items, i, i+1)
	return true
}

// RemoveID drops the transaction with the given id. It returns the removed
// transaction, or nil when none matched.
func (r *Transactions) RemoveID(id string) *Transaction {
	t, ok := r.Find(id)
	if !ok {
		return nil
	}
	r.Remove(t)
	return t
}

// Records serializes the registry in order.
func (r *Transactions) Records() []TransactionRecord {
	out := make([]TransactionRecord, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t.Record())
	}
	return out
}
