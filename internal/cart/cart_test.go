package cart

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
)

func TestAddOrIncrementMergesSameBarcode(t *testing.T) {
	c := New()
	var err error
	for i := 0; i < 5; i++ {
		c, _, err = c.AddOrIncrement("A", "Milk 1L", 250)
		require.NoError(t, err)
	}

	require.Equal(t, 1, c.Len())
	assert.Equal(t, 5, c.Lines()[0].Quantity)
	assert.Equal(t, money.Cents(1250), c.Total())
}

func TestAddOrIncrementTwiceTotalsFive(t *testing.T) {
	c, first, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)
	c, second, err := c.AddOrIncrement("A", "A", 250)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity)
	assert.Equal(t, "5.00", c.Total().String())
}

func TestAddOrIncrementRejectsBadInput(t *testing.T) {
	c := New()
	_, _, err := c.AddOrIncrement("  ", "x", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = c.AddOrIncrement("A", "x", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.True(t, c.IsEmpty())
}

func TestAddOrIncrementZeroPriceAllowed(t *testing.T) {
	c, line, err := New().AddOrIncrement("FREE", "Sample", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, money.Zero, c.Total())
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	base, line, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)

	bumped, _, err := base.AddOrIncrement("A", "A", 250)
	require.NoError(t, err)
	_, err = base.SetQuantity(line.ID, 9)
	require.NoError(t, err)
	_ = base.Remove(line.ID)
	_, _, err = base.AddWeighed("B", "Bananas", decimal.RequireFromString("1.5"), 320)
	require.NoError(t, err)

	require.Equal(t, 1, base.Len())
	assert.Equal(t, 1, base.Lines()[0].Quantity)
	assert.Equal(t, 2, bumped.Lines()[0].Quantity)
}

func TestLinesReturnsCopy(t *testing.T) {
	c, _, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)

	lines := c.Lines()
	lines[0].Quantity = 99
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestAddWeighedComputesPriceAndNeverMerges(t *testing.T) {
	c, line, err := New().AddWeighed("555666777", "Bananas (per kg)", decimal.RequireFromString("1.5"), 320)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(480), line.UnitPrice)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, line.IsWeighed)
	assert.Equal(t, money.Cents(320), line.PricePerKg)

	c, again, err := c.AddWeighed("555666777", "Bananas (per kg)", decimal.RequireFromString("0.75"), 320)
	require.NoError(t, err)
	assert.NotEqual(t, line.ID, again.ID)
	assert.Equal(t, money.Cents(240), again.UnitPrice)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "7.20", c.Total().String())

	// a non-weighed scan of the same barcode must not fold into a weighed line
	c, plain, err := c.AddOrIncrement("555666777", "Bananas (per kg)", 320)
	require.NoError(t, err)
	assert.False(t, plain.IsWeighed)
	assert.Equal(t, 3, c.Len())
}

func TestAddWeighedRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		barcode string
		weight  string
		perKg   money.Cents
	}{
		{"empty barcode", "", "1", 100},
		{"zero weight", "B", "0", 100},
		{"negative weight", "B", "-0.5", 100},
		{"negative price", "B", "1", -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, err := New().AddWeighed(tc.barcode, "x", decimal.RequireFromString(tc.weight), tc.perKg)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.True(t, c.IsEmpty())
		})
	}
}

func TestSetQuantity(t *testing.T) {
	c, milk, err := New().AddOrIncrement("A", "Milk", 250)
	require.NoError(t, err)
	c, bread, err := c.AddOrIncrement("B", "Bread", 175)
	require.NoError(t, err)

	c, err = c.SetQuantity(milk.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "9.25", c.Total().String())
	assert.Equal(t, 4, c.ItemCount())

	c, err = c.SetQuantity(milk.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, bread.ID, c.Lines()[0].ID)
	assert.Equal(t, "1.75", c.Total().String())

	c, err = c.SetQuantity(bread.ID, -2)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, money.Zero, c.Total())
}

func TestSetQuantityUnknownLine(t *testing.T) {
	c, _, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)

	same, err := c.SetQuantity("nope", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, c.Lines(), same.Lines())
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	c, _, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)

	after := c.Remove("missing")
	assert.Equal(t, c.Lines(), after.Lines())
	assert.Equal(t, c.Total(), after.Total())
}

func TestRemovePreservesOrder(t *testing.T) {
	c := New()
	ids := make([]string, 0, 3)
	for _, code := range []string{"A", "B", "C"} {
		var line domain.LineItem
		var err error
		c, line, err = c.AddOrIncrement(code, code, 100)
		require.NoError(t, err)
		ids = append(ids, line.ID)
	}

	c = c.Remove(ids[1])
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, ids[0], lines[0].ID)
	assert.Equal(t, ids[2], lines[1].ID)
}

func TestFindAndView(t *testing.T) {
	c, line, err := New().AddOrIncrement("A", "Milk", 250)
	require.NoError(t, err)
	c, _, err = c.AddOrIncrement("A", "Milk", 250)
	require.NoError(t, err)

	found, ok := c.Find(line.ID)
	require.True(t, ok)
	assert.Equal(t, 2, found.Quantity)
	_, ok = c.Find("x")
	assert.False(t, ok)

	view := c.View()
	require.Len(t, view.Lines, 1)
	assert.Equal(t, money.Cents(500), view.Lines[0].Subtotal)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, money.Cents(500), view.Total)
}

func TestClear(t *testing.T) {
	c, _, err := New().AddOrIncrement("A", "A", 250)
	require.NoError(t, err)
	assert.True(t, c.Clear().IsEmpty())
	assert.False(t, c.IsEmpty())
}

func TestSetQuantityRejectsQuantitiesBeyondCap(t *testing.T) {
	c, milk, err := New().AddOrIncrement("A", "Milk", 250)
	require.NoError(t, err)

	for _, n := range []int{MaxQuantity + 1, math.MaxInt/2 + 1, math.MaxInt} {
		same, err := c.SetQuantity(milk.ID, n)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, n)
		assert.Equal(t, "2.50", same.Total().String())
		assert.False(t, same.Total().IsNegative())
	}

	c, err = c.SetQuantity(milk.ID, MaxQuantity)
	require.NoError(t, err)
	assert.Equal(t, "24997.50", c.Total().String())
}

func TestAddOrIncrementStopsAtMaxQuantity(t *testing.T) {
	c, line, err := New().AddOrIncrement("A", "Gum", 1)
	require.NoError(t, err)
	c, err = c.SetQuantity(line.ID, MaxQuantity)
	require.NoError(t, err)

	same, _, err := c.AddOrIncrement("A", "Gum", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, MaxQuantity, same.Lines()[0].Quantity)
}

func TestTotalStaysWithinMoneyRange(t *testing.T) {
	c, line, err := New().AddOrIncrement("A", "Gold bar", money.Max)
	require.NoError(t, err)
	assert.Equal(t, money.Max, c.Total())

	_, err = c.SetQuantity(line.ID, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = c.AddOrIncrement("A", "Gold bar", money.Max)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = c.AddOrIncrement("B", "Gold coin", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = New().AddOrIncrement("C", "Too dear", money.Max+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = c.AddWeighed("D", "Saffron", decimal.RequireFromString("0.01"), 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, c.Len())
}

func TestAddWeighedRejectsPriceOverflow(t *testing.T) {
	_, _, err := New().AddWeighed("W", "Bananas", decimal.RequireFromString("1000000000000"), 320)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = New().AddWeighed("W", "Bananas", decimal.RequireFromString("1"), money.Max+1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
