package models

import (
	"fmt"
	"math"
)

// AmountType tags an Amount with the balance it belongs to.
type AmountType string

const (
	// MemberDue is what a member owes upward to their direct parent.
	MemberDue AmountType = "MEMBER_DUE"
	// NetworkDue is what a member's subtree is expected to deliver through that member.
	NetworkDue AmountType = "NETWORK_DUE"
)

// Valid reports whether t is a known amount type.
func (t AmountType) Valid() bool {
	return t == MemberDue || t == NetworkDue
}

// Amount is a non-negative monetary value in minor units tagged with its type.
// The zero value has no type and is rejected by every operation.
type Amount struct {
	value int64
	typ   AmountType
}

// NewAmount builds an Amount of the given type.
func NewAmount(value int64, typ AmountType) (Amount, error) {
	if !typ.Valid() {
		return Amount{}, fmt.Errorf("%w: unknown amount type %q", ErrInvalidAmount, typ)
	}
	if value < 0 {
		return Amount{}, fmt.Errorf("%w: value %d is negative", ErrInvalidAmount, value)
	}
	return Amount{value: value, typ: typ}, nil
}

func MemberAmount(value int64) (Amount, error) {
	return NewAmount(value, MemberDue)
}

func NetworkAmount(value int64) (Amount, error) {
	return NewAmount(value, NetworkDue)
}

func ZeroAmount(typ AmountType) (Amount, error) {
	return NewAmount(0, typ)
}

func (a Amount) Value() int64     { return a.value }
func (a Amount) Type() AmountType { return a.typ }

// IsZero reports whether the amount carries no value.
func (a Amount) IsZero() bool { return a.value == 0 }

// Plus returns a + other. Both operands must share a type.
func (a Amount) Plus(other Amount) (Amount, error) {
	if err := a.compatible(other); err != nil {
		return Amount{}, err
	}
	if other.value > math.MaxInt64-a.value {
		return Amount{}, fmt.Errorf("%w: %d + %d overflows", ErrInvalidAmount, a.value, other.value)
	}
	return Amount{value: a.value + other.value, typ: a.typ}, nil
}

// Minus returns a - other. Both operands must share a type and the result
// must not be negative; this is what rejects over-debiting a balance.
func (a Amount) Minus(other Amount) (Amount, error) {
	if err := a.compatible(other); err != nil {
		return Amount{}, err
	}
	if other.value > a.value {
		return Amount{}, fmt.Errorf("%w: %d - %d is negative", ErrInvalidAmount, a.value, other.value)
	}
	return Amount{value: a.value - other.value, typ: a.typ}, nil
}

func (a Amount) compatible(other Amount) error {
	if !a.typ.Valid() || !other.typ.Valid() {
		return fmt.Errorf("%w: untyped operand", ErrInvalidAmount)
	}
	if a.typ != other.typ {
		return fmt.Errorf("%w: type mismatch %s vs %s", ErrInvalidAmount, a.typ, other.typ)
	}
	return nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.value, a.typ)
}
