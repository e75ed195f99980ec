package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
)

func TestRetryReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"nil", nil, ""},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, "deadlock"},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, "serialization_failure"},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, "lock_timeout"},
		{"wrapped deadlock", fmt.Errorf("lock stock rows: %w", &pgconn.PgError{Code: "40P01"}), "deadlock"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ""},
		{"not found", fmt.Errorf("product: %w", shared.ErrNotFound), ""},
		{"negative stock", &stock.ValidationError{}, ""},
		{"not enough stock", &stock.NotEnoughStockError{}, ""},
		{"canceled", context.Canceled, ""},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ""},
		{"plain", errors.New("connection reset"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, RetryReason(tt.err))
			assert.Equal(t, tt.reason != "", IsRetryable(tt.err))
		})
	}
}
