// Package register runs the single-register transaction flow: scan, weigh,
// checkout, receipt, clear. All cart mutations are serialised; the only
// operation that waits on a device does so without holding the register.
package register

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/cart"
	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/metrics"
	"kasirinaja/register/internal/payment"
	"kasirinaja/register/internal/receipt"
	"kasirinaja/register/internal/store"
	"kasirinaja/register/internal/weighing"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	RegisterID string
	StoreName  string
	Lookup     store.ProductLookup
	Sensor     weighing.Sensor
	Clock      receipt.Clock
	// Sink receives every receipt. Optional.
	Sink store.ReceiptSink
	// History backs LastReceipt after a restart. Optional.
	History store.ReceiptHistory
	Logger  zerolog.Logger
	Metrics *metrics.Register
}

type Register struct {
	lookup    store.ProductLookup
	sink      store.ReceiptSink
	history   store.ReceiptHistory
	weigh     *weighing.Coordinator
	builder   *receipt.Builder
	storeName string
	log       zerolog.Logger
	metrics   *metrics.Register

	mu   sync.Mutex
	cart cart.Cart
	last *domain.Receipt
}

func New(opts Options) (*Register, error) {
	if opts.Lookup == nil {
		return nil, errors.New("register: product lookup is required")
	}
	if opts.Sensor == nil {
		return nil, errors.New("register: weight sensor is required")
	}
	storeName := strings.TrimSpace(opts.StoreName)
	if storeName == "" {
		storeName = "SuperMart"
	}

	return &Register{
		lookup:    opts.Lookup,
		sink:      opts.Sink,
		history:   opts.History,
		weigh:     weighing.NewCoordinator(opts.Sensor),
		builder:   receipt.NewBuilder(opts.RegisterID, opts.Clock),
		storeName: storeName,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		cart:      cart.New(),
	}, nil
}

func (r *Register) Cart(_ context.Context) domain.CartView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.View()
}

// Scan resolves barcode and either adds the product to the cart or, for a
// product sold by weight, opens a weighing session.
func (r *Register) Scan(ctx context.Context, barcode string) (domain.ScanResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		r.metrics.Scan("rejected")
		return domain.ScanResult{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state := r.weigh.State(); state.Open() {
		r.metrics.Scan("rejected")
		return domain.ScanResult{}, fmt.Errorf("%w: finish or cancel the weighing in progress first", domain.ErrStateViolation)
	}

	product, err := r.lookup.Lookup(ctx, barcode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.metrics.Scan("not_found")
			r.event(ctx, r.log.Info()).Str("barcode", barcode).Msg("unknown barcode scanned")
		} else {
			r.metrics.Scan("error")
		}
		return domain.ScanResult{}, err
	}

	if product.IsWeighed {
		if err := r.weigh.Begin(product); err != nil {
			r.metrics.Scan("rejected")
			return domain.ScanResult{}, err
		}
		r.metrics.Scan("weighing")
		r.metrics.Weighing("started")
		r.event(ctx, r.log.Info()).Str("barcode", product.Barcode).Msg("weighing started")
		return domain.ScanResult{
			Product:          product,
			WeighingRequired: true,
			Cart:             r.cart.View(),
		}, nil
	}

	next, line, err := r.cart.AddOrIncrement(product.Barcode, product.Name, product.UnitPrice)
	if err != nil {
		r.metrics.Scan("rejected")
		return domain.ScanResult{}, err
	}
	r.cart = next
	r.metrics.Scan("added")
	r.event(ctx, r.log.Info()).
		Str("barcode", line.Barcode).
		Int("quantity", line.Quantity).
		Stringer("total", r.cart.Total()).
		Msg("item scanned")

	return domain.ScanResult{Product: product, Line: &line, Cart: r.cart.View()}, nil
}

func (r *Register) Weighing(_ context.Context) domain.WeighingView {
	return weighingView(r.weigh.Snapshot())
}

// ReadWeight samples the scale for the open weighing session. The register
// lock is not held while the sensor works.
func (r *Register) ReadWeight(ctx context.Context) (domain.WeighingView, error) {
	weight, err := r.weigh.ReadWeight(ctx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDeviceUnavailable):
			r.metrics.Weighing("read_unavailable")
			r.event(ctx, r.log.Warn()).Err(err).Msg("scale returned no sample")
		case errors.Is(err, domain.ErrStateViolation):
			r.metrics.Weighing("read_rejected")
		}
		return weighingView(r.weigh.Snapshot()), err
	}
	r.metrics.Weighing("read")
	r.event(ctx, r.log.Debug()).Stringer("weight_kg", weight).Msg("weight captured")
	return weighingView(r.weigh.Snapshot()), nil
}

func (r *Register) ConfirmWeighing(ctx context.Context) (domain.LineItem, domain.CartView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, line, err := r.weigh.Confirm(r.cart)
	if err != nil {
		r.metrics.Weighing("confirm_rejected")
		return domain.LineItem{}, r.cart.View(), err
	}
	r.cart = next
	r.metrics.Weighing("confirmed")
	r.event(ctx, r.log.Info()).
		Str("barcode", line.Barcode).
		Stringer("weight_kg", line.WeightKg).
		Stringer("line_total", line.UnitPrice).
		Msg("weighed item added")
	return line, r.cart.View(), nil
}

func (r *Register) CancelWeighing(ctx context.Context) domain.WeighingView {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.weigh.State().Open() {
		r.weigh.Cancel()
		r.metrics.Weighing("cancelled")
		r.event(ctx, r.log.Info()).Msg("weighing cancelled")
	}
	return weighingView(r.weigh.Snapshot())
}

func (r *Register) SetQuantity(ctx context.Context, lineID string, quantity int) (domain.CartView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.cart.SetQuantity(lineID, quantity)
	if err != nil {
		return r.cart.View(), err
	}
	r.cart = next
	r.event(ctx, r.log.Info()).Str("line_id", lineID).Int("quantity", quantity).Msg("quantity changed")
	return r.cart.View(), nil
}

func (r *Register) Remove(ctx context.Context, lineID string) domain.CartView {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.cart.Len()
	r.cart = r.cart.Remove(lineID)
	if r.cart.Len() != before {
		r.event(ctx, r.log.Info()).Str("line_id", lineID).Msg("line removed")
	}
	return r.cart.View()
}

// Checkout settles the cart against tendered cash. On success the receipt
// is handed to the sink and the cart is cleared. A short tender leaves the
// cart untouched.
func (r *Register) Checkout(ctx context.Context, tendered decimal.Decimal) (domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.weigh.State().Open() {
		r.metrics.Checkout("rejected")
		return domain.Receipt{}, fmt.Errorf("%w: finish or cancel the weighing in progress first", domain.ErrStateViolation)
	}
	if r.cart.IsEmpty() {
		r.metrics.Checkout("rejected")
		return domain.Receipt{}, fmt.Errorf("%w: cart is empty", domain.ErrStateViolation)
	}

	result, err := payment.Reconcile(r.cart.Total().Decimal(), tendered)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientPayment) {
			r.metrics.Checkout("insufficient")
		} else {
			r.metrics.Checkout("rejected")
		}
		r.event(ctx, r.log.Info()).Err(err).Msg("payment rejected")
		return domain.Receipt{}, err
	}

	issued, err := r.builder.Build(r.cart, result)
	if err != nil {
		r.metrics.Checkout("rejected")
		return domain.Receipt{}, err
	}

	if r.sink != nil {
		if err := r.sink.Publish(ctx, issued.Clone()); err != nil {
			r.event(ctx, r.log.Warn()).Err(err).Str("receipt_id", issued.ID).Msg("receipt sink failed, sale kept")
		}
	}

	kept := issued.Clone()
	r.last = &kept
	r.cart = r.cart.Clear()
	r.metrics.Checkout("accepted")
	r.metrics.Sale(int64(issued.Total))
	r.event(ctx, r.log.Info()).
		Str("receipt_id", issued.ID).
		Stringer("total", issued.Total).
		Stringer("tendered", issued.Tendered).
		Stringer("change", issued.Change).
		Int("items", issued.ItemCount()).
		Msg("sale completed")

	return issued, nil
}

// Abandon discards the transaction in progress, including any open weighing
// session, and reports how many lines were dropped.
func (r *Register) Abandon(ctx context.Context, reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.weigh.Cancel()
	dropped := r.cart.Len()
	r.cart = r.cart.Clear()
	r.event(ctx, r.log.Warn()).
		Int("lines", dropped).
		Str("reason", strings.TrimSpace(reason)).
		Msg("transaction abandoned")
	return dropped
}

func (r *Register) LastReceipt(ctx context.Context) (domain.Receipt, error) {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()

	if last != nil {
		return last.Clone(), nil
	}
	if r.history != nil {
		return r.history.Last(ctx)
	}
	return domain.Receipt{}, fmt.Errorf("%w: no receipt issued yet", domain.ErrNotFound)
}

// Preview renders a receipt as text under this register's store name.
func (r *Register) Preview(rcpt domain.Receipt) string {
	return receipt.Render(rcpt, r.storeName)
}

func (r *Register) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if actor, ok := ActorFromContext(ctx); ok {
		e = e.Str("actor", actor.Username).Str("actor_role", actor.Role)
	}
	return e
}

func weighingView(s weighing.Session) domain.WeighingView {
	return domain.WeighingView{
		State:      string(s.State),
		Barcode:    s.Product.Barcode,
		Name:       s.Product.Name,
		PricePerKg: s.PricePerKg,
		WeightKg:   s.WeightKg,
		LineTotal:  s.LineTotal(),
		CanConfirm: s.CanConfirm(),
	}
}
