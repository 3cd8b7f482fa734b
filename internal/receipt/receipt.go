// Package receipt freezes a paid cart into an immutable Receipt.
package receipt

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"kasirinaja/register/internal/cart"
	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/xid"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// sequence is shared by every Builder so ids stay unique across builders in
// one process.
var sequence atomic.Uint64

type Builder struct {
	registerID string
	clock      Clock
}

func NewBuilder(registerID string, clock Clock) *Builder {
	if clock == nil {
		clock = SystemClock{}
	}
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		registerID = "REG-01"
	}
	return &Builder{registerID: registerID, clock: clock}
}

// Build snapshots c and the accepted payment. The returned receipt owns its
// lines; later changes to c never reach it.
func (b *Builder) Build(c cart.Cart, payment domain.PaymentResult) (domain.Receipt, error) {
	if !payment.Accepted {
		return domain.Receipt{}, fmt.Errorf("%w: payment was not accepted", domain.ErrStateViolation)
	}
	if c.IsEmpty() {
		return domain.Receipt{}, fmt.Errorf("%w: cannot issue a receipt for an empty cart", domain.ErrStateViolation)
	}
	if payment.Total != c.Total() {
		return domain.Receipt{}, fmt.Errorf("%w: payment total %s does not match cart total %s", domain.ErrStateViolation, payment.Total, c.Total())
	}

	issuedAt := b.clock.Now()
	items := c.Lines()
	lines := make([]domain.ReceiptLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.ReceiptLine{
			LineID:     item.ID,
			Barcode:    item.Barcode,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			IsWeighed:  item.IsWeighed,
			WeightKg:   item.WeightKg,
			PricePerKg: item.PricePerKg,
			LineTotal:  item.Subtotal(),
		})
	}

	return domain.Receipt{
		ID:         b.nextID(issuedAt),
		RegisterID: b.registerID,
		IssuedAt:   issuedAt,
		Lines:      lines,
		Total:      payment.Total,
		Tendered:   payment.Tendered,
		Change:     payment.ChangeDue,
	}, nil
}

func (b *Builder) nextID(at time.Time) string {
	seq := sequence.Add(1)
	return fmt.Sprintf("RCPT-%s-%06d-%s", at.Format("20060102"), seq, strings.ToUpper(xid.Short(4)))
}
