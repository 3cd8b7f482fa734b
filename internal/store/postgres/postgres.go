package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/money"
	"kasirinaja/register/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Lookup(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidInput)
	}

	var product domain.Product
	var priceCents int64
	err := s.db.QueryRowContext(ctx, `
		SELECT barcode, name, unit_price_cents, is_weighed
		FROM products
		WHERE barcode = $1 AND active = true
	`, barcode).Scan(&product.Barcode, &product.Name, &priceCents, &product.IsWeighed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: barcode %s", domain.ErrNotFound, barcode)
		}
		return domain.Product{}, err
	}
	product.UnitPrice = money.Cents(priceCents)
	return product, nil
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) error {
	product.Barcode = strings.TrimSpace(product.Barcode)
	product.Name = strings.TrimSpace(product.Name)
	if err := store.ValidateProduct(product); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (barcode, name, unit_price_cents, is_weighed, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		ON CONFLICT (barcode)
		DO UPDATE SET name = EXCLUDED.name,
			unit_price_cents = EXCLUDED.unit_price_cents,
			is_weighed = EXCLUDED.is_weighed,
			active = true,
			updated_at = now()
	`, product.Barcode, product.Name, int64(product.UnitPrice), product.IsWeighed)
	return err
}

// SeedProducts inserts products that are not in the catalogue yet and leaves
// existing rows alone.
func (s *Store) SeedProducts(ctx context.Context, products []domain.Product) (int, error) {
	inserted := 0
	for _, p := range products {
		if err := store.ValidateProduct(p); err != nil {
			return inserted, err
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO products (barcode, name, unit_price_cents, is_weighed, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
			ON CONFLICT (barcode) DO NOTHING
		`, p.Barcode, p.Name, int64(p.UnitPrice), p.IsWeighed)
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// Publish writes the receipt and its lines in one transaction.
func (s *Store) Publish(ctx context.Context, receipt domain.Receipt) error {
	if receipt.ID == "" || len(receipt.Lines) == 0 {
		return fmt.Errorf("%w: receipt needs an id and at least one line", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (id, register_id, issued_at, total_cents, tendered_cents, change_cents, item_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, receipt.ID, receipt.RegisterID, receipt.IssuedAt.UTC(), int64(receipt.Total), int64(receipt.Tendered),
		int64(receipt.Change), receipt.ItemCount())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: receipt %s already recorded", domain.ErrInvalidInput, receipt.ID)
		}
		return err
	}

	for i, line := range receipt.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO receipt_lines (
				receipt_id, position, line_id, barcode, name, unit_price_cents, quantity,
				is_weighed, weight_kg, price_per_kg_cents, line_total_cents
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, receipt.ID, i, line.LineID, line.Barcode, line.Name, int64(line.UnitPrice), line.Quantity,
			line.IsWeighed, nullWeight(line), nullPerKg(line), int64(line.LineTotal))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) Last(ctx context.Context) (domain.Receipt, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM receipts ORDER BY issued_at DESC, created_at DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Receipt{}, fmt.Errorf("%w: no receipt issued yet", domain.ErrNotFound)
		}
		return domain.Receipt{}, err
	}
	return s.FindReceipt(ctx, id)
}

func (s *Store) FindReceipt(ctx context.Context, id string) (domain.Receipt, error) {
	var receipt domain.Receipt
	var total, tendered, change int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, register_id, issued_at, total_cents, tendered_cents, change_cents
		FROM receipts
		WHERE id = $1
	`, id).Scan(&receipt.ID, &receipt.RegisterID, &receipt.IssuedAt, &total, &tendered, &change)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Receipt{}, fmt.Errorf("%w: receipt %s", domain.ErrNotFound, id)
		}
		return domain.Receipt{}, err
	}
	receipt.IssuedAt = receipt.IssuedAt.UTC()
	receipt.Total = money.Cents(total)
	receipt.Tendered = money.Cents(tendered)
	receipt.Change = money.Cents(change)

	rows, err := s.db.QueryContext(ctx, `
		SELECT line_id, barcode, name, unit_price_cents, quantity, is_weighed,
			weight_kg, price_per_kg_cents, line_total_cents
		FROM receipt_lines
		WHERE receipt_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return domain.Receipt{}, err
	}
	defer rows.Close()

	receipt.Lines = make([]domain.ReceiptLine, 0, 8)
	for rows.Next() {
		var line domain.ReceiptLine
		var unitPrice, lineTotal int64
		var weight decimal.NullDecimal
		var perKg sql.NullInt64
		if err := rows.Scan(&line.LineID, &line.Barcode, &line.Name, &unitPrice, &line.Quantity, &line.IsWeighed,
			&weight, &perKg, &lineTotal); err != nil {
			return domain.Receipt{}, err
		}
		line.UnitPrice = money.Cents(unitPrice)
		line.LineTotal = money.Cents(lineTotal)
		if weight.Valid {
			line.WeightKg = weight.Decimal
		}
		if perKg.Valid {
			line.PricePerKg = money.Cents(perKg.Int64)
		}
		receipt.Lines = append(receipt.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Receipt{}, err
	}
	return receipt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullWeight(line domain.ReceiptLine) any {
	if !line.IsWeighed {
		return nil
	}
	return line.WeightKg
}

func nullPerKg(line domain.ReceiptLine) any {
	if !line.IsWeighed {
		return nil
	}
	return int64(line.PricePerKg)
}
