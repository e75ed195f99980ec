package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/config"
	"github.com/erp/stockengine/internal/testutil"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func expectAttempt(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = 1500`).WillReturnResult(sqlmock.NewResult(0, 0))
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func TestGormTransactionScope_ExecuteWithRetry(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

	t.Run("retries a deadlock and commits the next attempt", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		core, logs := observer.New(zapcore.WarnLevel)
		scope := NewGormTransactionScope(mdb.DB,
			WithLockTimeout(1500*time.Millisecond),
			WithRetryConfig(fastRetry(3)),
			WithTransactionLogger(zap.New(core)),
		)

		expectAttempt(mdb.Mock, false)
		expectAttempt(mdb.Mock, true)

		calls := 0
		err := scope.ExecuteWithRetry(context.Background(), func(repos appstock.TransactionalRepositories) error {
			calls++
			if calls == 1 {
				return deadlock
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		mdb.ExpectationsWereMet(t)

		retries := logs.FilterMessage("Retrying stock transaction").All()
		require.Len(t, retries, 1)
		assert.Equal(t, "deadlock", retries[0].ContextMap()["reason"])
	})

	t.Run("returns a business error without retrying", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		scope := NewGormTransactionScope(mdb.DB,
			WithLockTimeout(1500*time.Millisecond),
			WithRetryConfig(fastRetry(5)),
		)

		expectAttempt(mdb.Mock, false)

		calls := 0
		businessErr := &stock.NotEnoughStockError{Shortage: stock.ProductQuantities{}}
		err := scope.ExecuteWithRetry(context.Background(), func(repos appstock.TransactionalRepositories) error {
			calls++
			return businessErr
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		var notEnough *stock.NotEnoughStockError
		assert.True(t, errors.As(err, &notEnough))
		mdb.ExpectationsWereMet(t)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		core, logs := observer.New(zapcore.WarnLevel)
		scope := NewGormTransactionScope(mdb.DB,
			WithLockTimeout(1500*time.Millisecond),
			WithRetryConfig(fastRetry(3)),
			WithTransactionLogger(zap.New(core)),
		)

		for i := 0; i < 3; i++ {
			expectAttempt(mdb.Mock, false)
		}

		calls := 0
		err := scope.ExecuteWithRetry(context.Background(), func(repos appstock.TransactionalRepositories) error {
			calls++
			return deadlock
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "after 3 attempts")
		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr))
		assert.Equal(t, "40P01", pgErr.Code)
		assert.Len(t, logs.FilterMessage("Retrying stock transaction").All(), 2)
		assert.Len(t, logs.FilterMessage("Stock transaction retries exhausted").All(), 1)
		mdb.ExpectationsWereMet(t)
	})

	t.Run("single attempt returns the business error unwrapped", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		scope := NewGormTransactionScope(mdb.DB, WithLockTimeout(1500*time.Millisecond), WithRetryConfig(fastRetry(1)))

		expectAttempt(mdb.Mock, false)

		validation := &stock.ValidationError{CurrentQuantity: 1, Change: -2}
		err := scope.ExecuteWithRetry(context.Background(), func(repos appstock.TransactionalRepositories) error {
			return validation
		})

		assert.Same(t, validation, err)
	})
}

func TestGormTransactionScope_Execute(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		fx := testutil.NewFixture(t, db)
		scope := NewGormTransactionScope(db)

		err := scope.Execute(context.Background(), func(repos appstock.TransactionalRepositories) error {
			w, err := stock.NewWarehouse("WH-1", "Main")
			require.NoError(t, err)
			return repos.WarehouseRepo().Save(context.Background(), w)
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, fx.DB.Table("warehouses").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		scope := NewGormTransactionScope(db)
		boom := errors.New("boom")

		err := scope.Execute(context.Background(), func(repos appstock.TransactionalRepositories) error {
			w, err := stock.NewWarehouse("WH-1", "Main")
			require.NoError(t, err)
			require.NoError(t, repos.WarehouseRepo().Save(context.Background(), w))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int64
		require.NoError(t, db.Table("warehouses").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestRetryConfigFrom(t *testing.T) {
	cfg := RetryConfigFrom(config.StockConfig{
		TransactionMaxAttempts: 7,
		RetryInitialInterval:   10 * time.Millisecond,
		RetryMaxInterval:       time.Second,
	})
	assert.Equal(t, RetryConfig{MaxAttempts: 7, InitialInterval: 10 * time.Millisecond, MaxInterval: time.Second}, cfg)

	scope := NewGormTransactionScope(nil, WithRetryConfig(RetryConfig{}))
	assert.Equal(t, 1, scope.retry.MaxAttempts)
}
