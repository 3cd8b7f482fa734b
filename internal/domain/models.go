package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/money"
)

// Product is what a barcode resolves to. For weighed products UnitPrice is
// the price per kilogram.
type Product struct {
	Barcode   string      `json:"barcode"`
	Name      string      `json:"name"`
	UnitPrice money.Cents `json:"unit_price"`
	IsWeighed bool        `json:"is_weighed"`
}

type LineItem struct {
	ID         string          `json:"id"`
	Barcode    string          `json:"barcode"`
	Name       string          `json:"name"`
	UnitPrice  money.Cents     `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	IsWeighed  bool            `json:"is_weighed"`
	WeightKg   decimal.Decimal `json:"weight_kg,omitempty"`
	PricePerKg money.Cents     `json:"price_per_kg,omitempty"`
}

func (l LineItem) Subtotal() money.Cents {
	return l.UnitPrice.Times(l.Quantity)
}

type PaymentResult struct {
	Total     money.Cents `json:"total"`
	Tendered  money.Cents `json:"tendered"`
	ChangeDue money.Cents `json:"change_due"`
	Accepted  bool        `json:"accepted"`
}

type ReceiptLine struct {
	LineID     string          `json:"line_id"`
	Barcode    string          `json:"barcode"`
	Name       string          `json:"name"`
	UnitPrice  money.Cents     `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	IsWeighed  bool            `json:"is_weighed"`
	WeightKg   decimal.Decimal `json:"weight_kg,omitempty"`
	PricePerKg money.Cents     `json:"price_per_kg,omitempty"`
	LineTotal  money.Cents     `json:"line_total"`
}

// Receipt is the frozen record of a paid transaction. It owns its lines.
type Receipt struct {
	ID         string        `json:"id"`
	RegisterID string        `json:"register_id"`
	IssuedAt   time.Time     `json:"issued_at"`
	Lines      []ReceiptLine `json:"lines"`
	Total      money.Cents   `json:"total"`
	Tendered   money.Cents   `json:"tendered"`
	Change     money.Cents   `json:"change"`
}

func (r Receipt) ItemCount() int {
	count := 0
	for _, line := range r.Lines {
		count += line.Quantity
	}
	return count
}

// Clone returns a copy that shares no backing arrays with r.
func (r Receipt) Clone() Receipt {
	out := r
	out.Lines = make([]ReceiptLine, len(r.Lines))
	copy(out.Lines, r.Lines)
	return out
}

type Actor struct {
	Username string
	Role     string
}

type CartView struct {
	Lines     []CartLineView `json:"lines"`
	ItemCount int            `json:"item_count"`
	Total     money.Cents    `json:"total"`
}

type CartLineView struct {
	LineItem
	Subtotal money.Cents `json:"subtotal"`
}

type ScanRequest struct {
	Barcode string `json:"barcode"`
}

type ScanResult struct {
	Product          Product   `json:"product"`
	Line             *LineItem `json:"line,omitempty"`
	WeighingRequired bool      `json:"weighing_required"`
	Cart             CartView  `json:"cart"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutRequest struct {
	Tendered string `json:"tendered"`
}

type CheckoutResponse struct {
	Receipt Receipt `json:"receipt"`
	Preview string  `json:"preview"`
}

type AbandonRequest struct {
	ManagerPIN string `json:"manager_pin"`
	Reason     string `json:"reason"`
}

type WeighingView struct {
	State      string          `json:"state"`
	Barcode    string          `json:"barcode,omitempty"`
	Name       string          `json:"name,omitempty"`
	PricePerKg money.Cents     `json:"price_per_kg"`
	WeightKg   decimal.Decimal `json:"weight_kg"`
	LineTotal  money.Cents     `json:"line_total"`
	CanConfirm bool            `json:"can_confirm"`
}
