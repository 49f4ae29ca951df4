package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsRetryable(fmt.Errorf("deduct: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23514"}))
	require.False(t, IsRetryable(errors.New("boom")))
	require.False(t, IsRetryable(nil))
}

func TestRetryRerunsSerializationFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), 2, func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	require.True(t, IsRetryable(err))
	require.Equal(t, 2, calls)

	calls = 0
	err = Retry(context.Background(), 5, func() error {
		calls++
		return errors.New("constraint")
	})
	require.EqualError(t, err, "constraint")
	require.Equal(t, 1, calls)
}

func TestWithTxNeedsPool(t *testing.T) {
	require.ErrorIs(t, WithTx(context.Background(), nil, nil), ErrNoPool)
}
