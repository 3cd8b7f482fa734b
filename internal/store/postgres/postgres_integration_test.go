package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/store"
)

var (
	_ store.ProductLookup  = (*Store)(nil)
	_ store.ReceiptSink    = (*Store)(nil)
	_ store.ReceiptHistory = (*Store)(nil)
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("REGISTER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set REGISTER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestProductLookupRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	barcode := fmt.Sprintf("IT-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE barcode = $1`, barcode)
	})

	_, err := s.Lookup(ctx, barcode)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpsertProduct(ctx, domain.Product{Barcode: barcode, Name: "Apples (per kg)", UnitPrice: 410, IsWeighed: true}))
	p, err := s.Lookup(ctx, barcode)
	require.NoError(t, err)
	assert.Equal(t, "4.10", p.UnitPrice.String())
	assert.True(t, p.IsWeighed)

	inserted, err := s.SeedProducts(ctx, []domain.Product{{Barcode: barcode, Name: "Ignored", UnitPrice: 1}})
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestPublishAndReadBackReceipt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := fmt.Sprintf("RCPT-IT-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	})

	issued := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	r := domain.Receipt{
		ID:         id,
		RegisterID: "REG-IT",
		IssuedAt:   issued,
		Lines: []domain.ReceiptLine{
			{LineID: "line-a", Barcode: "123456789", Name: "Milk 1L", UnitPrice: 250, Quantity: 2, LineTotal: 500},
			{LineID: "line-b", Barcode: "555666777", Name: "Bananas (per kg)", UnitPrice: 480, Quantity: 1,
				IsWeighed: true, WeightKg: decimal.RequireFromString("1.5"), PricePerKg: 320, LineTotal: 480},
		},
		Total:    980,
		Tendered: 1000,
		Change:   20,
	}
	require.NoError(t, s.Publish(ctx, r))
	assert.ErrorIs(t, s.Publish(ctx, r), domain.ErrInvalidInput)

	got, err := s.FindReceipt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r.Total, got.Total)
	assert.Equal(t, r.Change, got.Change)
	assert.True(t, issued.Equal(got.IssuedAt))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "line-a", got.Lines[0].LineID)
	assert.True(t, got.Lines[1].WeightKg.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, r.Lines[1].PricePerKg, got.Lines[1].PricePerKg)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, last.ID)
}
