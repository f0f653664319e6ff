package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestNewTransaction(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tx, err := NewTransaction(dec("-12.50"), "coffee", NewIDSet("bank"), NewIDSet("shop"),
			WithDate(NewDate(2024, 3, 1)), WithTags("food", " ", "food"))
		require.NoError(t, err)

		assertDecimal(t, "12.5", tx.Value())
		assert.Equal(t, "coffee", tx.Description())
		assert.Equal(t, []string{"bank"}, tx.Sources())
		assert.Equal(t, []string{"shop"}, tx.Receiver())
		assert.Equal(t, []string{"food"}, tx.Tags())
		assert.Equal(t, "2024-03-01", tx.Date().String())
		assert.NotEmpty(t, tx.ID())
		assert.False(t, tx.IsBudgetRebalance())
	})

	t.Run("defaults", func(t *testing.T) {
		tx, err := NewTransaction(dec("1"), "", NewIDSet("a"), NewIDSet("b"))
		require.NoError(t, err)
		assert.Equal(t, Today(), tx.Date())
		assert.Empty(t, tx.Tags())
	})

	t.Run("keeps given id", func(t *testing.T) {
		tx, err := NewTransaction(dec("1"), "", NewIDSet("a"), NewIDSet("b"), WithID("tx-1"))
		require.NoError(t, err)
		assert.Equal(t, "tx-1", tx.ID())
	})

	tests := []struct {
		name     string
		sources  IDSet
		receiver IDSet
		want     error
	}{
		{"empty sources", NewIDSet(), NewIDSet("b"), ErrEmptySources},
		{"blank sources", NewIDSet(" "), NewIDSet("b"), ErrEmptySources},
		{"nil sources", nil, NewIDSet("b"), ErrEmptySources},
		{"empty receiver", NewIDSet("a"), NewIDSet(), ErrEmptyReceiver},
		{"both empty", nil, nil, ErrEmptySources},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(dec("5"), "x", tt.sources, tt.receiver)
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransactionDoesNotAliasInputSets(t *testing.T) {
	sources := NewIDSet("a")
	tx, err := NewTransaction(dec("1"), "", sources, NewIDSet("b"))
	require.NoError(t, err)

	sources.Add("c")
	assert.Equal(t, []string{"a"}, tx.Sources())
}

func TestTransactionUpdate(t *testing.T) {
	tests := []struct {
		name         string
		sources      []string
		receiver     []string
		current      string
		replacement  string
		wantSources  []string
		wantReceiver []string
	}{
		{"source", []string{"a", "b"}, []string{"c"}, "a", "x", []string{"b", "x"}, []string{"c"}},
		{"receiver", []string{"a"}, []string{"c"}, "c", "x", []string{"a"}, []string{"x"}},
		{"both", []string{"a"}, []string{"a"}, "a", "x", []string{"x"}, []string{"x"}},
		{"collapse", []string{"a", "x"}, []string{"c"}, "a", "x", []string{"x"}, []string{"c"}},
		{"absent", []string{"a"}, []string{"c"}, "z", "x", []string{"a"}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(dec("1"), "", NewIDSet(tt.sources...), NewIDSet(tt.receiver...))
			require.NoError(t, err)

			tx.Update(tt.current, tt.replacement)

			assert.Equal(t, tt.wantSources, tx.Sources())
			assert.Equal(t, tt.wantReceiver, tx.Receiver())
		})
	}
}

func TestTransactionRecordRoundTrip(t *testing.T) {
	tx, err := NewTransaction(dec("42.10"), "rent", NewIDSet("bank", "cash"), NewIDSet("landlord"),
		WithDate(NewDate(2023, 12, 31)), WithTags("home"), WithBudgetRebalance(true))
	require.NoError(t, err)

	raw, err := json.Marshal(tx.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "`+tx.ID()+`",
		"date": "2023-12-31",
		"description": "rent",
		"receiver": ["landlord"],
		"sources": ["bank", "cash"],
		"tags": ["home"],
		"value": "42.1"
	}`, string(raw))

	var rec TransactionRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	back, err := TransactionFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, tx.ID(), back.ID())
	assertDecimal(t, "42.1", back.Value())
	assert.Equal(t, tx.Date(), back.Date())
	assert.Equal(t, tx.Sources(), back.Sources())
	assert.Equal(t, tx.Receiver(), back.Receiver())
	assert.Equal(t, tx.Tags(), back.Tags())
	assert.False(t, back.IsBudgetRebalance())
}

func TestTransactionFromInvalidRecord(t *testing.T) {
	_, err := TransactionFromRecord(TransactionRecord{ID: "x", Receiver: []string{"b"}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTransactionsRegistry(t *testing.T) {
	a, err := NewTransaction(dec("1"), "a", NewIDSet("x"), NewIDSet("y"), WithID("a"))
	require.NoError(t, err)
	b, err := NewTransaction(dec("2"), "b", NewIDSet("x"), NewIDSet("y"), WithID("b"))
	require.NoError(t, err)

	reg, err := NewTransactions(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	err = reg.Append(nil)
	assert.ErrorIs(t, err, ErrKind)
	assert.Equal(t, 2, reg.Len())

	found, ok := reg.Find("b")
	require.True(t, ok)
	assert.Same(t, b, found)

	assert.Nil(t, reg.RemoveID("missing"))
	assert.False(t, reg.Remove(nil))
	assert.Same(t, a, reg.RemoveID("a"))
	assert.Equal(t, 1, reg.Len())
	assert.False(t, reg.Remove(a))

	recs := reg.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].ID)

	rebuilt, err := TransactionsFromRecords(recs)
	require.NoError(t, err)
	assert.Equal(t, "b", rebuilt.All()[0].ID())
}

func TestNewTransactionsRejectsNil(t *testing.T) {
	_, err := NewTransactions(nil)
	assert.ErrorIs(t, err, ErrKind)
}
