package memory

import (
	"context"
	"fmt"
	"testing"

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

func TestSeededCatalogue(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	milk, err := s.Lookup(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, "Milk 1L", milk.Name)
	assert.Equal(t, "2.50", milk.UnitPrice.String())
	assert.False(t, milk.IsWeighed)

	bananas, err := s.Lookup(ctx, " 555666777 ")
	require.NoError(t, err)
	assert.True(t, bananas.IsWeighed)
	assert.Equal(t, "3.20", bananas.UnitPrice.String())

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.Equal(t, "Bananas (per kg)", products[0].Name)
}

func TestLookupErrors(t *testing.T) {
	s := NewSeeded()
	_, err := s.Lookup(context.Background(), "000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpsertProduct(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpsertProduct(ctx, domain.Product{Barcode: "42", Name: "Tea", UnitPrice: 199}))
	require.NoError(t, s.UpsertProduct(ctx, domain.Product{Barcode: "42", Name: "Tea", UnitPrice: 209}))
	p, err := s.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "2.09", p.UnitPrice.String())

	assert.ErrorIs(t, s.UpsertProduct(ctx, domain.Product{Barcode: "43", Name: "Bad", UnitPrice: -1}), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.UpsertProduct(ctx, domain.Product{Barcode: "", Name: "Nameless"}), domain.ErrInvalidInput)
}

func receipt(id string) domain.Receipt {
	return domain.Receipt{
		ID:    id,
		Lines: []domain.ReceiptLine{{LineID: "l1", Barcode: "A", Name: "A", UnitPrice: 250, Quantity: 1, LineTotal: 250}},
		Total: 250,
	}
}

func TestPublishAndHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Last(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Publish(ctx, receipt("r-1")))
	require.NoError(t, s.Publish(ctx, receipt("r-2")))
	assert.ErrorIs(t, s.Publish(ctx, receipt("r-2")), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.Publish(ctx, receipt("")), domain.ErrInvalidInput)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r-2", last.ID)

	found, err := s.FindReceipt(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", found.ID)
	_, err = s.FindReceipt(ctx, "r-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.ListReceipts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r-2", list[0].ID)
}

func TestPublishStoresCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	r := receipt("r-1")
	require.NoError(t, s.Publish(ctx, r))

	r.Lines[0].Quantity = 50
	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Lines[0].Quantity)

	last.Lines[0].Quantity = 70
	again, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Quantity)
}

func TestHistoryIsBounded(t *testing.T) {
	s := New()
	s.historyLimit = 3
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Publish(ctx, receipt(fmt.Sprintf("r-%d", i))))
	}

	list, err := s.ListReceipts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "r-4", list[0].ID)
	assert.Equal(t, "r-2", list[2].ID)

	// ids that fell out of the journal may be recorded again
	require.NoError(t, s.Publish(ctx, receipt("r-0")))
}
