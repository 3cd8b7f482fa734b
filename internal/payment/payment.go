// Package payment reconciles cash tendered against a cart total.
package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
)

// Reconcile rounds both operands to the cent before comparing them, so an
// exact tender is never rejected because of representation drift.
func Reconcile(total, tendered decimal.Decimal) (domain.PaymentResult, error) {
	totalCents, err := money.Round2(total)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("%w: total: %v", domain.ErrInvalidInput, err)
	}
	tenderedCents, err := money.Round2(tendered)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("%w: tendered amount: %v", domain.ErrInvalidInput, err)
	}
	return ReconcileCents(totalCents, tenderedCents)
}

func ReconcileCents(total, tendered money.Cents) (domain.PaymentResult, error) {
	if total.IsNegative() {
		return domain.PaymentResult{}, fmt.Errorf("%w: total must be >= 0", domain.ErrInvalidInput)
	}
	if tendered.IsNegative() {
		return domain.PaymentResult{}, fmt.Errorf("%w: tendered amount must be >= 0", domain.ErrInvalidInput)
	}
	if !total.InRange() || !tendered.InRange() {
		return domain.PaymentResult{}, fmt.Errorf("%w: amounts must not exceed %s", domain.ErrInvalidInput, money.Max)
	}
	if tendered < total {
		return domain.PaymentResult{Total: total, Tendered: tendered}, fmt.Errorf(
			"%w: tendered %s, total %s, short by %s",
			domain.ErrInsufficientPayment, tendered, total, total-tendered,
		)
	}
	return domain.PaymentResult{
		Total:     total,
		Tendered:  tendered,
		ChangeDue: tendered - total,
		Accepted:  true,
	}, nil
}

// ParseTendered reads a cash amount typed by the cashier. Empty, malformed,
// negative and out-of-range input is rejected rather than read as zero.
func ParseTendered(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: tendered amount is required", domain.ErrInvalidInput)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: tendered amount %q is not a number", domain.ErrInvalidInput, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: tendered amount must be >= 0", domain.ErrInvalidInput)
	}
	if _, err := money.Round2(amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: tendered amount: %v", domain.ErrInvalidInput, err)
	}
	return amount, nil
}
