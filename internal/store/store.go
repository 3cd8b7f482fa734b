package store

import (
	"context"
	"errors"
	"fmt"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
)

// ProductLookup resolves a barcode. Unknown barcodes fail with
// domain.ErrNotFound.
type ProductLookup interface {
	Lookup(ctx context.Context, barcode string) (domain.Product, error)
}

// ReceiptSink consumes finished receipts.
type ReceiptSink interface {
	Publish(ctx context.Context, receipt domain.Receipt) error
}

// ReceiptHistory returns the most recently published receipt, or
// domain.ErrNotFound when there is none.
type ReceiptHistory interface {
	Last(ctx context.Context) (domain.Receipt, error)
}

type NamedSink struct {
	Name string
	Sink ReceiptSink
}

// Fanout publishes every receipt to each sink in order. One sink failing does
// not stop the others; the failures come back joined.
type Fanout struct {
	sinks []NamedSink
	// OnFailure, when set, is called once per failing sink.
	OnFailure func(name string, err error)
}

func NewFanout(sinks ...NamedSink) *Fanout {
	kept := make([]NamedSink, 0, len(sinks))
	for _, s := range sinks {
		if s.Sink != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept}
}

func (f *Fanout) Publish(ctx context.Context, receipt domain.Receipt) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.Publish(ctx, receipt.Clone()); err != nil {
			if f.OnFailure != nil {
				f.OnFailure(s.Name, err)
			}
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Last asks each sink that keeps history, in order, and returns the first hit.
func (f *Fanout) Last(ctx context.Context) (domain.Receipt, error) {
	var firstErr error
	for _, s := range f.sinks {
		history, ok := s.Sink.(ReceiptHistory)
		if !ok {
			continue
		}
		receipt, err := history.Last(ctx)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, domain.ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return domain.Receipt{}, firstErr
	}
	return domain.Receipt{}, fmt.Errorf("%w: no receipt issued yet", domain.ErrNotFound)
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

// ValidateProduct checks a catalogue entry before it is stored.
func ValidateProduct(p domain.Product) error {
	if p.Barcode == "" || p.Name == "" {
		return fmt.Errorf("%w: barcode and name are required", domain.ErrInvalidInput)
	}
	if p.UnitPrice.IsNegative() || p.UnitPrice > money.Max {
		return fmt.Errorf("%w: price for %s must be between 0 and %s", domain.ErrInvalidInput, p.Barcode, money.Max)
	}
	return nil
}
