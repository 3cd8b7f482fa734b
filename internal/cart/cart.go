// Package cart models the line items of the active transaction.
//
// Cart is a value: every operation returns a new Cart and leaves the
// receiver untouched, so an old Cart can be kept as a snapshot.
package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
	"kasirinaja/register/internal/xid"
)

// MaxQuantity caps a single line. Together with money.Max it keeps every
// subtotal and the cart total inside int64.
const MaxQuantity = 9999

type Cart struct {
	lines []domain.LineItem
}

func New() Cart {
	return Cart{}
}

// AddOrIncrement bumps the quantity of the existing non-weighed line for
// barcode, or appends a new line with quantity 1.
func (c Cart) AddOrIncrement(barcode, name string, unitPrice money.Cents) (Cart, domain.LineItem, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return c, domain.LineItem{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidInput)
	}
	if unitPrice.IsNegative() || unitPrice > money.Max {
		return c, domain.LineItem{}, fmt.Errorf("%w: unit price must be between 0 and %s", domain.ErrInvalidInput, money.Max)
	}

	next := c.clone()
	for i := range next.lines {
		line := &next.lines[i]
		if line.IsWeighed || line.Barcode != barcode {
			continue
		}
		if line.Quantity >= MaxQuantity {
			return c, domain.LineItem{}, fmt.Errorf("%w: line %s already holds the maximum quantity %d", domain.ErrInvalidInput, line.ID, MaxQuantity)
		}
		line.Quantity++
		if err := next.checkTotal(); err != nil {
			return c, domain.LineItem{}, err
		}
		return next, *line, nil
	}

	line := domain.LineItem{
		ID:        xid.New("line"),
		Barcode:   barcode,
		Name:      strings.TrimSpace(name),
		UnitPrice: unitPrice,
		Quantity:  1,
	}
	next.lines = append(next.lines, line)
	if err := next.checkTotal(); err != nil {
		return c, domain.LineItem{}, err
	}
	return next, line, nil
}

// AddWeighed appends a weighed line priced at round2(weightKg * pricePerKg).
// Weighed lines are never merged.
func (c Cart) AddWeighed(barcode, name string, weightKg decimal.Decimal, pricePerKg money.Cents) (Cart, domain.LineItem, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return c, domain.LineItem{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidInput)
	}
	if pricePerKg.IsNegative() || pricePerKg > money.Max {
		return c, domain.LineItem{}, fmt.Errorf("%w: price per kg must be between 0 and %s", domain.ErrInvalidInput, money.Max)
	}
	if !weightKg.IsPositive() {
		return c, domain.LineItem{}, fmt.Errorf("%w: weight must be > 0", domain.ErrInvalidInput)
	}
	price, err := money.ForWeight(weightKg, pricePerKg)
	if err != nil {
		return c, domain.LineItem{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	line := domain.LineItem{
		ID:         xid.New("line"),
		Barcode:    barcode,
		Name:       strings.TrimSpace(name),
		UnitPrice:  price,
		Quantity:   1,
		IsWeighed:  true,
		WeightKg:   weightKg,
		PricePerKg: pricePerKg,
	}
	next := c.clone()
	next.lines = append(next.lines, line)
	if err := next.checkTotal(); err != nil {
		return c, domain.LineItem{}, err
	}
	return next, line, nil
}

// SetQuantity sets the quantity of line id. n <= 0 removes the line;
// n above MaxQuantity, or a total that would leave the money range, is
// refused and the cart is returned unchanged.
func (c Cart) SetQuantity(id string, n int) (Cart, error) {
	idx := c.indexOf(id)
	if idx < 0 {
		return c, fmt.Errorf("%w: line %s", domain.ErrNotFound, id)
	}
	if n <= 0 {
		return c.Remove(id), nil
	}
	if n > MaxQuantity {
		return c, fmt.Errorf("%w: quantity %d exceeds %d", domain.ErrInvalidInput, n, MaxQuantity)
	}
	next := c.clone()
	next.lines[idx].Quantity = n
	if err := next.checkTotal(); err != nil {
		return c, err
	}
	return next, nil
}

// Remove drops line id. Removing an absent id returns an equal cart.
func (c Cart) Remove(id string) Cart {
	idx := c.indexOf(id)
	if idx < 0 {
		return c
	}
	lines := make([]domain.LineItem, 0, len(c.lines)-1)
	lines = append(lines, c.lines[:idx]...)
	lines = append(lines, c.lines[idx+1:]...)
	return Cart{lines: lines}
}

func (c Cart) Clear() Cart {
	return Cart{}
}

// checkTotal verifies every subtotal and the running total stay within
// money.Max.
func (c Cart) checkTotal() error {
	subtotals := make([]money.Cents, 0, len(c.lines))
	for _, line := range c.lines {
		sub, err := money.Mul(line.UnitPrice, line.Quantity)
		if err != nil {
			return fmt.Errorf("%w: line %s: %v", domain.ErrInvalidInput, line.ID, err)
		}
		subtotals = append(subtotals, sub)
	}
	if _, err := money.Sum(subtotals...); err != nil {
		return fmt.Errorf("%w: cart total: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// Total never overflows: every mutation is checked by checkTotal.
func (c Cart) Total() money.Cents {
	total := money.Zero
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (c Cart) Lines() []domain.LineItem {
	out := make([]domain.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c Cart) Len() int {
	return len(c.lines)
}

func (c Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// ItemCount is the sum of line quantities.
func (c Cart) ItemCount() int {
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

func (c Cart) Find(id string) (domain.LineItem, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return domain.LineItem{}, false
	}
	return c.lines[idx], true
}

func (c Cart) View() domain.CartView {
	view := domain.CartView{
		Lines:     make([]domain.CartLineView, 0, len(c.lines)),
		ItemCount: c.ItemCount(),
		Total:     c.Total(),
	}
	for _, line := range c.lines {
		view.Lines = append(view.Lines, domain.CartLineView{LineItem: line, Subtotal: line.Subtotal()})
	}
	return view
}

func (c Cart) indexOf(id string) int {
	for i, line := range c.lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	lines := make([]domain.LineItem, len(c.lines), len(c.lines)+1)
	copy(lines, c.lines)
	return Cart{lines: lines}
}
