package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"bid": Bid, "buy": Bid, "ask": Ask, "sell": Ask} {
		side, err := ParseSide(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, side, in)
	}

	_, err := ParseSide("long")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseOrderType(t *testing.T) {
	for _, typ := range []OrderType{Limit, ImmediateOrCancel, PostOnly} {
		parsed, err := ParseOrderType(typ.String())
		assert.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	parsed, err := ParseOrderType("")
	assert.NoError(t, err)
	assert.Equal(t, Limit, parsed)

	_, err = ParseOrderType("fok")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
