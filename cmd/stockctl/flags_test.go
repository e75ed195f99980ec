package main

import (
	"flag"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/domain/stock"
)

func TestQuantitiesFlag(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var q quantitiesFlag
	fs.Var(&q, "product", "")
	require.NoError(t, fs.Parse([]string{"--product", p1.String() + "=3", "--product", " " + p2.String() + " = 0 "}))

	assert.Equal(t, stock.ProductQuantities{
		stock.NewProductQuantity(p1, 3),
		stock.NewProductQuantity(p2, 0),
	}, q.values)

	for _, bad := range []string{"", p1.String(), "nope=1", p1.String() + "=x"} {
		assert.Error(t, q.Set(bad), bad)
	}
}

func TestUUIDListFlag(t *testing.T) {
	w1, w2 := uuid.New(), uuid.New()
	var l uuidListFlag
	require.NoError(t, l.Set(w1.String()))
	require.NoError(t, l.Set(w2.String()))
	assert.Equal(t, uuidListFlag{w1, w2}, l)
	assert.Equal(t, w1.String()+","+w2.String(), l.String())
	assert.Error(t, l.Set("x"))
}

func TestParseIDs(t *testing.T) {
	_, err := parseID("order", "")
	assert.ErrorContains(t, err, "--order is required")

	id, err := parseOptionalID("user", "")
	require.NoError(t, err)
	assert.Nil(t, id)

	want := uuid.New()
	id, err = parseOptionalID("user", want.String())
	require.NoError(t, err)
	assert.Equal(t, want, *id)

	_, err = parseOptionalID("user", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid --user")
}
