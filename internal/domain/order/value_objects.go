package order

import (
	"errors"
	"strings"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrCommentTooLong  = errors.New("comment exceeds maximum length")
)

const MaxCommentLength = 500

// Quantity is the number of portions an order reserves.
type Quantity int32

func NewQuantity(v int32) (Quantity, error) {
	if v <= 0 {
		return 0, ErrInvalidQuantity
	}
	return Quantity(v), nil
}

func (q Quantity) Value() int32 {
	return int32(q)
}

// Money is an amount in currency minor units (cents).
type Money int64

func NewMoney(cents int64) (Money, error) {
	if cents < 0 {
		return 0, ErrNegativeAmount
	}
	return Money(cents), nil
}

func (m Money) Cents() int64 {
	return int64(m)
}

// Major converts minor units to major units (15000 -> 150.00).
func (m Money) Major() float64 {
	return float64(m) / 100.0
}

type Comment string

func NewComment(s string) (Comment, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > MaxCommentLength {
		return "", ErrCommentTooLong
	}
	return Comment(trimmed), nil
}

func (c Comment) String() string {
	return string(c)
}

func (c Comment) IsEmpty() bool {
	return c == ""
}
