package scale

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/weighing"
)

var (
	_ weighing.Sensor = (*Simulated)(nil)
	_ weighing.Sensor = Offline{}
)

func TestSimulatedStaysInRange(t *testing.T) {
	s := NewSimulated(decimal.NewFromInt(30), 0, rand.New(rand.NewPCG(1, 2)))
	low := decimal.RequireFromString("0.10")
	high := decimal.RequireFromString("2.10")

	for i := 0; i < 1000; i++ {
		w, err := s.Read(context.Background())
		require.NoError(t, err)
		require.True(t, w.GreaterThanOrEqual(low), "reading %s", w)
		require.True(t, w.LessThanOrEqual(high), "reading %s", w)
		require.LessOrEqual(t, -w.Exponent(), int32(2), "reading %s has more than two decimals", w)
	}
}

func TestSimulatedHonoursContext(t *testing.T) {
	s := NewSimulated(decimal.NewFromInt(30), time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Read(ctx)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestSimulatedLatency(t *testing.T) {
	s := NewSimulated(decimal.Zero, 20*time.Millisecond, nil)
	start := time.Now()
	_, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.True(t, s.MaxKg().IsZero())
}

func TestOfflineIsUnavailable(t *testing.T) {
	o := NewOffline(decimal.NewFromInt(15))
	_, err := o.Read(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Equal(t, "15", o.MaxKg().String())
}
