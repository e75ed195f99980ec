package stock

import (
	"errors"
	"fmt"
	"testing"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("apply batch: %w", &ValidationError{
		ProductID:       uuid.New(),
		Location:        BinLocationLocation(uuid.New()),
		CurrentQuantity: 2,
		Change:          -5,
	})

	assert.True(t, errors.Is(err, ErrNegativeStock))
	assert.False(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "current 2, change -5")
}

func TestInvalidQuantityError(t *testing.T) {
	e := &InvalidQuantityError{Reason: "return quantity exceeds shipped quantity"}
	assert.False(t, e.HasViolations())

	p := uuid.New()
	e.Add(p, 5, 3)

	assert.True(t, e.HasViolations())
	assert.True(t, errors.Is(e, shared.ErrInvalidInput))
	assert.Contains(t, e.Error(), "requested 5, allowed 3")
}
