// Package money holds fixed-point currency amounts in minor units (cents).
//
// Decimal input is rounded exactly once, half away from zero, when it enters
// the engine through Round2. Everything after that is integer arithmetic
// bounded by Max, so a sum of two in-range amounts always fits in int64.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

type Cents int64

const Zero Cents = 0

// Max is the largest magnitude any amount, line or total may take:
// 9,999,999,999.99.
const Max Cents = 999_999_999_999

var ErrOutOfRange = errors.New("amount out of range")

var (
	hundred    = decimal.NewFromInt(100)
	maxDecimal = decimal.NewFromInt(int64(Max))
)

// Round2 rounds d to two fractional digits and returns it in cents. Values
// beyond ±Max fail with ErrOutOfRange instead of wrapping.
func Round2(d decimal.Decimal) (Cents, error) {
	cents := d.Round(2).Mul(hundred)
	if cents.Abs().GreaterThan(maxDecimal) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Cents(cents.IntPart()), nil
}

// ForWeight prices a weighed portion: round2(weightKg * perKg).
func ForWeight(weightKg decimal.Decimal, perKg Cents) (Cents, error) {
	return Round2(weightKg.Mul(perKg.Decimal()))
}

// Mul is c*qty, failing with ErrOutOfRange when the product leaves ±Max.
func Mul(c Cents, qty int) (Cents, error) {
	if !c.InRange() {
		return 0, fmt.Errorf("%w: %d cents", ErrOutOfRange, c)
	}
	if c == 0 || qty == 0 {
		return 0, nil
	}
	if int64(qty) > math.MaxInt64/int64(Max) || int64(qty) < -math.MaxInt64/int64(Max) {
		return 0, fmt.Errorf("%w: quantity %d", ErrOutOfRange, qty)
	}
	product := c * Cents(qty)
	if !product.InRange() {
		return 0, fmt.Errorf("%w: %s x %d", ErrOutOfRange, c, qty)
	}
	return product, nil
}

// Sum adds values, failing with ErrOutOfRange as soon as the running total
// leaves ±Max.
func Sum(values ...Cents) (Cents, error) {
	total := Zero
	for _, v := range values {
		if !v.InRange() {
			return 0, fmt.Errorf("%w: %d cents", ErrOutOfRange, v)
		}
		total += v
		if !total.InRange() {
			return 0, fmt.Errorf("%w: running total %d cents", ErrOutOfRange, total)
		}
	}
	return total, nil
}

func (c Cents) InRange() bool {
	return c >= -Max && c <= Max
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Times is c*qty for operands already known to be in range, such as the
// lines of a cart.
func (c Cents) Times(qty int) Cents {
	return c * Cents(qty)
}

func (c Cents) IsNegative() bool {
	return c < 0
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	rounded, err := Round2(d)
	if err != nil {
		return err
	}
	*c = rounded
	return nil
}
