package core

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Accounts is an insertion-ordered registry of holders keyed by id.
type Accounts struct {
	order []string
	items map[string]Holder
}

func NewAccounts() *Accounts {
	return &Accounts{items: make(map[string]Holder)}
}

// Insert stores h under id, replacing any previous holder with that id.
// A nil holder is rejected with ErrKind and leaves the registry untouched.
func (a *Accounts) Insert(id string, h Holder) error {
	if isNilHolder(h) {
		return fmt.Errorf("%w: can only add Account or Budget", ErrKind)
	}
	if _, ok := a.items[id]; !ok {
		a.order = append(a.order, id)
	}
	a.items[id] = h
	return nil
}

func isNilHolder(h Holder) bool {
	switch v := h.(type) {
	case nil:
		return true
	case *Account:
		return v == nil
	case *Budget:
		return v == nil
	}
	return false
}

func (a *Accounts) Get(id string) (Holder, bool) {
	h, ok := a.items[id]
	return h, ok
}

func (a *Accounts) Has(id string) bool {
	_, ok := a.items[id]
	return ok
}

func (a *Accounts) Len() int { return len(a.order) }

// IDs returns the keys in insertion order.
func (a *Accounts) IDs() []string { return slices.Clone(a.order) }

// Values returns the holders in insertion order.
func (a *Accounts) Values() []Holder {
	out := make([]Holder, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out
}

// Delete drops the holder stored under id and reports whether it existed.
func (a *Accounts) Delete(id string) bool {
	if _, ok := a.items[id]; !ok {
		return false
	}
	delete(a.items, id)
	a.order = slices.DeleteFunc(a.order, func(k string) bool { return k == id })
	return true
}

// Book adds t to every held holder that is a source or receiver of t. Ids
// not held here are skipped; they may live in another registry.
func (a *Accounts) Book(t *Transaction) {
	for _, id := range t.participants().Slice() {
		if h, ok := a.items[id]; ok {
			h.book(t)
		}
	}
}

// Balance sums the balances of all non-external holders.
func (a *Accounts) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, h := range a.Values() {
		if !h.IsExternal() {
			total = total.Add(h.Balance())
		}
	}
	return total
}

// Remove purges t from every held log.
func (a *Accounts) Remove(t *Transaction) {
	for _, h := range a.items {
		h.unbook(t)
	}
}

// Reset clears every held log. Initial balances and allowances are kept.
func (a *Accounts) Reset() {
	for _, h := range a.items {
		h.reset()
	}
}

// Records serializes the holders in insertion order.
func (a *Accounts) Records() []AccountRecord {
	out := make([]AccountRecord, 0, len(a.order))
	for _, h := range a.Values() {
		out = append(out, h.Record())
	}
	return out
}
