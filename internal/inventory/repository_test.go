package inventory

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestDeductRunsAtReadCommitted(t *testing.T) {
	require.Equal(t, pgx.ReadCommitted, deductTx.IsoLevel)
	require.Greater(t, deductAttempts, 1)
}

func TestMapDeductError(t *testing.T) {
	require.NoError(t, mapDeductError(nil))

	err := mapDeductError(&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"})
	require.ErrorIs(t, err, ErrConcurrentUpdate)

	err = mapDeductError(&pgconn.PgError{Code: "23514", ConstraintName: "inventory_items_current_quantity_check"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	shortage := &ShortageError{Shortages: []Shortage{{ItemID: "flour", Requested: 2, Available: 1}}}
	require.ErrorIs(t, mapDeductError(shortage), ErrInsufficientStock)
}

func TestMergeAndShortages(t *testing.T) {
	merged, err := mergeDeductions([]Deduction{{ItemID: "sugar", Quantity: 1}, {ItemID: "flour", Quantity: 0.5}, {ItemID: "flour", Quantity: 0.5}})
	require.NoError(t, err)
	require.Equal(t, []Deduction{{ItemID: "flour", Quantity: 1}, {ItemID: "sugar", Quantity: 1}}, merged)

	_, err = mergeDeductions([]Deduction{{ItemID: "flour", Quantity: 0}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	shortages := findShortages(merged, map[string]float64{"flour": 1 - 1e-12})
	require.Equal(t, []Shortage{{ItemID: "sugar", Requested: 1, Available: 0}}, shortages)
}
