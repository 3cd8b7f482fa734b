package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/store"
)

const defaultHistoryLimit = 500

// Store is the in-process catalogue and receipt journal used when no
// database is configured.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	receipts     []domain.Receipt
	receiptIDs   map[string]struct{}
	historyLimit int
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		receipts:     make([]domain.Receipt, 0, 64),
		receiptIDs:   make(map[string]struct{}),
		historyLimit: defaultHistoryLimit,
	}
}

// Catalogue is the demo product list the register ships with.
func Catalogue() []domain.Product {
	return []domain.Product{
		{Barcode: "123456789", Name: "Milk 1L", UnitPrice: 250},
		{Barcode: "987654321", Name: "Bread Loaf", UnitPrice: 175},
		{Barcode: "555666777", Name: "Bananas (per kg)", UnitPrice: 320, IsWeighed: true},
		{Barcode: "111222333", Name: "Orange Juice 500ml", UnitPrice: 425},
		{Barcode: "444555666", Name: "Eggs (12 pack)", UnitPrice: 385},
	}
}

func NewSeeded() *Store {
	s := New()
	for _, p := range Catalogue() {
		s.products[p.Barcode] = p
	}
	return s
}

func (s *Store) Lookup(_ context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[barcode]
	if !exists {
		return domain.Product{}, fmt.Errorf("%w: barcode %s", domain.ErrNotFound, barcode)
	}
	return product, nil
}

func (s *Store) UpsertProduct(_ context.Context, product domain.Product) error {
	product.Barcode = strings.TrimSpace(product.Barcode)
	product.Name = strings.TrimSpace(product.Name)
	if err := store.ValidateProduct(product); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.Barcode] = product
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

// Publish journals the receipt. The oldest receipts are dropped once the
// journal is full.
func (s *Store) Publish(_ context.Context, receipt domain.Receipt) error {
	if receipt.ID == "" {
		return fmt.Errorf("%w: receipt id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receiptIDs[receipt.ID]; exists {
		return fmt.Errorf("%w: receipt %s already recorded", domain.ErrInvalidInput, receipt.ID)
	}
	s.receipts = append(s.receipts, receipt.Clone())
	s.receiptIDs[receipt.ID] = struct{}{}

	if over := len(s.receipts) - s.historyLimit; over > 0 {
		for _, dropped := range s.receipts[:over] {
			delete(s.receiptIDs, dropped.ID)
		}
		s.receipts = slices.Clone(s.receipts[over:])
	}
	return nil
}

func (s *Store) Last(_ context.Context) (domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.receipts) == 0 {
		return domain.Receipt{}, fmt.Errorf("%w: no receipt issued yet", domain.ErrNotFound)
	}
	return s.receipts[len(s.receipts)-1].Clone(), nil
}

func (s *Store) FindReceipt(_ context.Context, id string) (domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.receipts) - 1; i >= 0; i-- {
		if s.receipts[i].ID == id {
			return s.receipts[i].Clone(), nil
		}
	}
	return domain.Receipt{}, fmt.Errorf("%w: receipt %s", domain.ErrNotFound, id)
}

// ListReceipts returns up to limit receipts, newest first.
func (s *Store) ListReceipts(_ context.Context, limit int) ([]domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.receipts) {
		limit = len(s.receipts)
	}
	out := make([]domain.Receipt, 0, limit)
	for i := len(s.receipts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.receipts[i].Clone())
	}
	return out, nil
}
