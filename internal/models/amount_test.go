package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmount_RejectsNegativeValues(t *testing.T) {
	for _, typ := range []AmountType{MemberDue, NetworkDue} {
		_, err := NewAmount(-1, typ)
		assert.ErrorIs(t, err, ErrInvalidAmount, typ)
	}

	_, err := MemberAmount(-100)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = NetworkAmount(-100)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewAmount_RejectsUnknownType(t *testing.T) {
	_, err := NewAmount(10, AmountType("BONUS"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ZeroAmount("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestZeroAmount(t *testing.T) {
	zero, err := ZeroAmount(NetworkDue)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, NetworkDue, zero.Type())
}

func TestAmount_PlusMinusSameType(t *testing.T) {
	a, err := MemberAmount(150)
	require.NoError(t, err)
	b, err := MemberAmount(50)
	require.NoError(t, err)

	sum, err := a.Plus(b)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sum.Value())
	assert.Equal(t, MemberDue, sum.Type())

	diff, err := a.Minus(b)
	require.NoError(t, err)
	assert.Equal(t, int64(100), diff.Value())

	// operands are untouched
	assert.Equal(t, int64(150), a.Value())
	assert.Equal(t, int64(50), b.Value())
}

func TestAmount_MismatchedTypesFail(t *testing.T) {
	member, err := MemberAmount(10)
	require.NoError(t, err)
	network, err := NetworkAmount(10)
	require.NoError(t, err)

	_, err = member.Plus(network)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = member.Minus(network)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = network.Minus(member)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmount_MinusBelowZeroFails(t *testing.T) {
	small, err := NetworkAmount(10)
	require.NoError(t, err)
	big, err := NetworkAmount(11)
	require.NoError(t, err)

	_, err = small.Minus(big)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	same, err := small.Minus(small)
	require.NoError(t, err)
	assert.True(t, same.IsZero())
}

func TestAmount_PlusOverflowFails(t *testing.T) {
	top, err := MemberAmount(math.MaxInt64)
	require.NoError(t, err)
	one, err := MemberAmount(1)
	require.NoError(t, err)

	_, err = top.Plus(one)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmount_UntypedOperandFails(t *testing.T) {
	var untyped Amount
	one, err := MemberAmount(1)
	require.NoError(t, err)

	_, err = one.Plus(untyped)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "none", ErrorKind(nil))
	assert.Equal(t, "invalid_amount", ErrorKind(ErrInvalidAmount))
	assert.Equal(t, "not_found", ErrorKind(ErrNotFound))
	assert.Equal(t, "version_conflict", ErrorKind(ErrVersionConflict))
	assert.Equal(t, "unexpected", ErrorKind(assert.AnError))
}
