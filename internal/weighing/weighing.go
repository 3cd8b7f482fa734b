// Package weighing turns a scale reading into a priced cart line.
//
// A Coordinator runs one session at a time:
//
//	Idle -> AwaitingWeight -> WeightCaptured -> Confirmed | Cancelled
//
// Reads go to the Sensor without holding the coordinator lock. A session
// allows one outstanding read, and a read that outlives its session is
// discarded.
package weighing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/cart"
	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
)

type State string

const (
	StateIdle           State = "idle"
	StateAwaitingWeight State = "awaiting_weight"
	StateWeightCaptured State = "weight_captured"
	StateConfirmed      State = "confirmed"
	StateCancelled      State = "cancelled"
)

// Open reports whether a session is in progress.
func (s State) Open() bool {
	return s == StateAwaitingWeight || s == StateWeightCaptured
}

// Sensor is the scale. A zero reading or domain.ErrDeviceUnavailable both
// mean no sample was taken.
type Sensor interface {
	Read(ctx context.Context) (decimal.Decimal, error)
	// MaxKg is the device capacity. Zero leaves only MaxWeightKg.
	MaxKg() decimal.Decimal
}

type Session struct {
	State      State           `json:"state"`
	Product    domain.Product  `json:"product"`
	PricePerKg money.Cents     `json:"price_per_kg"`
	WeightKg   decimal.Decimal `json:"weight_kg"`
	Reading    bool            `json:"reading"`
}

// CanConfirm mirrors the confirm affordance: only a captured positive weight.
func (s Session) CanConfirm() bool {
	return s.State == StateWeightCaptured && s.WeightKg.IsPositive() && !s.Reading
}

// LineTotal is the price the line would get if confirmed now.
func (s Session) LineTotal() money.Cents {
	if !s.WeightKg.IsPositive() {
		return money.Zero
	}
	total, err := money.ForWeight(s.WeightKg, s.PricePerKg)
	if err != nil {
		return money.Zero
	}
	return total
}

// MaxWeightKg bounds every reading, whatever the sensor reports as its
// capacity.
var MaxWeightKg = decimal.NewFromInt(1000)

type Coordinator struct {
	sensor Sensor

	mu         sync.Mutex
	state      State
	product    domain.Product
	weight     decimal.Decimal
	generation uint64
	reading    bool
	cancelRead context.CancelFunc
}

func NewCoordinator(sensor Sensor) *Coordinator {
	return &Coordinator{sensor: sensor, state: StateIdle}
}

// capacity is the sensor's own limit, clamped to MaxWeightKg. A sensor
// reporting zero gets MaxWeightKg.
func (c *Coordinator) capacity() decimal.Decimal {
	capacity := c.sensor.MaxKg()
	if !capacity.IsPositive() || capacity.GreaterThan(MaxWeightKg) {
		return MaxWeightKg
	}
	return capacity
}

// Begin opens a session for a weighed product.
func (c *Coordinator) Begin(product domain.Product) error {
	if !product.IsWeighed {
		return fmt.Errorf("%w: product %s is not sold by weight", domain.ErrInvalidInput, product.Barcode)
	}
	if product.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: price per kg must be >= 0", domain.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Open() {
		return fmt.Errorf("%w: weighing for %s already in progress", domain.ErrStateViolation, c.product.Barcode)
	}
	c.resetLocked(StateAwaitingWeight)
	c.product = product
	return nil
}

// ReadWeight asks the sensor for a sample. A positive reading within the
// device capacity moves the session to WeightCaptured, replacing any earlier
// capture. Anything else leaves the session where it was.
func (c *Coordinator) ReadWeight(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	if !c.state.Open() {
		state := c.state
		c.mu.Unlock()
		return decimal.Zero, fmt.Errorf("%w: cannot read weight in state %s", domain.ErrStateViolation, state)
	}
	if c.reading {
		c.mu.Unlock()
		return decimal.Zero, fmt.Errorf("%w: a weight read is already in progress", domain.ErrStateViolation)
	}
	readCtx, cancel := context.WithCancel(ctx)
	c.reading = true
	c.cancelRead = cancel
	generation := c.generation
	c.mu.Unlock()

	weight, readErr := c.sensor.Read(readCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return decimal.Zero, fmt.Errorf("%w: weighing session closed before the reading arrived", domain.ErrStateViolation)
	}
	c.reading = false
	c.cancelRead = nil

	if readErr != nil {
		if errors.Is(readErr, domain.ErrDeviceUnavailable) {
			return decimal.Zero, readErr
		}
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, readErr)
	}
	if !weight.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no weight on the scale", domain.ErrDeviceUnavailable)
	}
	if capacity := c.capacity(); weight.GreaterThan(capacity) {
		return decimal.Zero, fmt.Errorf("%w: reading %s kg exceeds capacity %s kg", domain.ErrDeviceUnavailable, weight, capacity)
	}
	if _, err := money.ForWeight(weight, c.product.UnitPrice); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s kg at %s/kg: %v", domain.ErrInvalidInput, weight, c.product.UnitPrice, err)
	}

	c.weight = weight
	c.state = StateWeightCaptured
	return weight, nil
}

// Confirm appends the weighed line to cart and closes the session. On any
// failure the cart is returned unchanged.
func (c *Coordinator) Confirm(current cart.Cart) (cart.Cart, domain.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWeightCaptured || !c.weight.IsPositive() {
		return current, domain.LineItem{}, fmt.Errorf("%w: no captured weight to confirm", domain.ErrStateViolation)
	}
	if c.reading {
		return current, domain.LineItem{}, fmt.Errorf("%w: a weight read is still in progress", domain.ErrStateViolation)
	}

	next, line, err := current.AddWeighed(c.product.Barcode, c.product.Name, c.weight, c.product.UnitPrice)
	if err != nil {
		return current, domain.LineItem{}, err
	}
	c.resetLocked(StateConfirmed)
	return next, line, nil
}

// Cancel discards the session and any pending read. Cancelling with no open
// session is a no-op.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Open() {
		return
	}
	c.resetLocked(StateCancelled)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		State:      c.state,
		Product:    c.product,
		PricePerKg: c.product.UnitPrice,
		WeightKg:   c.weight,
		Reading:    c.reading,
	}
}

func (c *Coordinator) resetLocked(next State) {
	if c.cancelRead != nil {
		c.cancelRead()
	}
	c.generation++
	c.reading = false
	c.cancelRead = nil
	c.product = domain.Product{}
	c.weight = decimal.Zero
	c.state = next
}
