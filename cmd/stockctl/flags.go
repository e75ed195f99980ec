package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/erp/stockengine/internal/domain/stock"
)

// quantitiesFlag collects repeated product=quantity pairs
type quantitiesFlag struct {
	values stock.ProductQuantities
}

func (f *quantitiesFlag) String() string {
	parts := make([]string, 0, len(f.values))
	for _, q := range f.values {
		parts = append(parts, fmt.Sprintf("%s=%d", q.ProductID, q.Quantity))
	}
	return strings.Join(parts, ",")
}

func (f *quantitiesFlag) Set(s string) error {
	id, qty, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected <product-id>=<quantity>, got %q", s)
	}
	productID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("invalid product id %q: %w", id, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", qty, err)
	}
	f.values = append(f.values, stock.NewProductQuantity(productID, n))
	return nil
}

// uuidListFlag collects repeated IDs in the order given
type uuidListFlag []uuid.UUID

func (f *uuidListFlag) String() string {
	parts := make([]string, 0, len(*f))
	for _, id := range *f {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

func (f *uuidListFlag) Set(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*f = append(*f, id)
	return nil
}

func parseID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return id, nil
}

// parseOptionalID returns nil for an empty value
func parseOptionalID(name, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(name, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
