package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	constraint, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (f *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	ok := &fakeBeginner{tx: &fakeTx{}}
	require.NoError(t, WithTx(ctx, ok, func(pgx.Tx) error { return nil }))
	assert.True(t, ok.tx.committed)
	assert.False(t, ok.tx.rolledBack)

	sentinel := errors.New("domain failure")
	failing := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(ctx, failing, func(pgx.Tx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	assert.False(t, failing.tx.committed)
	assert.True(t, failing.tx.rolledBack)

	broken := &fakeBeginner{err: errors.New("pool closed")}
	require.Error(t, WithTx(ctx, broken, func(pgx.Tx) error { return nil }))
}
