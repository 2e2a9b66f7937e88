package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	events := NewStripeEventRepo(mock)
	uow := NewUnitOfWork(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertStripeEventQuery)).
		WithArgs("evt_1", "invoice.paid").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = uow.Do(context.Background(), func(ctx context.Context) error {
		return events.Insert(ctx, "evt_1", "invoice.paid")
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	events := NewStripeEventRepo(mock)
	uow := NewUnitOfWork(mock)
	dispatchErr := errors.New("dispatch failed")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertStripeEventQuery)).
		WithArgs("evt_1", "invoice.paid").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	err = uow.Do(context.Background(), func(ctx context.Context) error {
		if err := events.Insert(ctx, "evt_1", "invoice.paid"); err != nil {
			return err
		}
		return dispatchErr
	})
	assert.ErrorIs(t, err, dispatchErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_NestedCallJoinsOuterTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	uow := NewUnitOfWork(mock)

	mock.ExpectBegin()
	mock.ExpectCommit()

	inner := false
	err = uow.Do(context.Background(), func(ctx context.Context) error {
		return uow.Do(ctx, func(ctx context.Context) error {
			inner = true
			return nil
		})
	})
	assert.NoError(t, err)
	assert.True(t, inner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err = NewUnitOfWork(mock).Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}
