// Package scale provides the weight sensors the register can run with when
// no hardware driver is attached.
package scale

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/domain"
)

const (
	ModeSimulated = "simulated"
	ModeOffline   = "offline"
)

var (
	simulatedMinKg = decimal.RequireFromString("0.10")
	simulatedSpan  = decimal.NewFromInt(2)
)

// Simulated returns a random 0.10 to 2.10 kg reading, two decimals, after
// an optional settle delay.
type Simulated struct {
	maxKg   decimal.Decimal
	latency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulated(maxKg decimal.Decimal, latency time.Duration, rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5ca1e))
	}
	return &Simulated{maxKg: maxKg, latency: latency, rng: rng}
}

func (s *Simulated) Read(ctx context.Context) (decimal.Decimal, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()

	weight := decimal.NewFromFloat(f).Mul(simulatedSpan).Add(simulatedMinKg).Round(2)
	return weight, nil
}

func (s *Simulated) MaxKg() decimal.Decimal {
	return s.maxKg
}

// Offline never produces a sample.
type Offline struct {
	maxKg decimal.Decimal
}

func NewOffline(maxKg decimal.Decimal) Offline {
	return Offline{maxKg: maxKg}
}

func (Offline) Read(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%w: scale is offline", domain.ErrDeviceUnavailable)
}

func (o Offline) MaxKg() decimal.Decimal {
	return o.maxKg
}
