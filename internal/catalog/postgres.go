package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// PGCatalog reads products from Postgres.
type PGCatalog struct{ DB postgres.DBTX }

func (c *PGCatalog) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := c.DB.QueryRow(ctx, `
		SELECT id, sku, name, price, track_stock, stock, sales_count, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.TrackStock, &p.Stock, &p.SalesCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("catalog.get", "product %s not found", id)
	}
	if err != nil {
		return Product{}, err
	}

	rows, err := c.DB.Query(ctx, `SELECT id, product_id, size, stock FROM product_sizes WHERE product_id=$1 ORDER BY size`, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var v SizeVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Stock); err != nil {
			return Product{}, err
		}
		p.Variants = append(p.Variants, v)
	}
	return p, rows.Err()
}

// PGLedger applies stock movements with conditional UPDATEs so concurrent
// callers never read-modify-write the counter in application memory.
// Bind it to a pgx.Tx to make several movements atomic together.
type PGLedger struct{ DB postgres.DBTX }

func NewPGLedger(db postgres.DBTX) *PGLedger { return &PGLedger{DB: db} }

type stockMode struct {
	name     string
	tracked  bool
	variants bool
}

func (l *PGLedger) mode(ctx context.Context, productID string) (stockMode, error) {
	var m stockMode
	err := l.DB.QueryRow(ctx, `
		SELECT p.name, p.track_stock, EXISTS (SELECT 1 FROM product_sizes s WHERE s.product_id = p.id)
		FROM products p WHERE p.id=$1`, productID).Scan(&m.name, &m.tracked, &m.variants)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, apperr.NotFound("ledger", "product %s not found", productID)
	}
	return m, err
}

func (l *PGLedger) Reserve(ctx context.Context, line Line) error {
	if line.Qty <= 0 {
		return apperr.Validation("ledger.reserve", map[string]string{"quantity": "must be positive"})
	}
	m, err := l.mode(ctx, line.ProductID)
	if err != nil || !m.tracked {
		return err
	}
	name := line.ProductName
	if name == "" {
		name = m.name
	}

	if !m.variants {
		ct, err := l.DB.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id=$1 AND stock >= $2`, line.ProductID, line.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 1 {
			return nil
		}
		var avail int
		if err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, line.ProductID).Scan(&avail); err != nil {
			return err
		}
		return &InsufficientStockError{ProductID: line.ProductID, ProductName: name, Requested: line.Qty, Available: avail}
	}

	size := strings.TrimSpace(line.Size)
	if size == "" {
		return apperr.Validation("ledger.reserve", map[string]string{"size": "size is required for " + name})
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE product_sizes SET stock = stock - $3
		WHERE product_id=$1 AND lower(size)=lower($2) AND stock >= $3`, line.ProductID, size, line.Qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var avail int
	err = l.DB.QueryRow(ctx, `SELECT stock FROM product_sizes WHERE product_id=$1 AND lower(size)=lower($2)`, line.ProductID, size).Scan(&avail)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("ledger.reserve", "size %s not found for %s", size, name)
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: line.ProductID, ProductName: name, Size: size, Requested: line.Qty, Available: avail}
}

func (l *PGLedger) Release(ctx context.Context, line Line) error {
	if line.Qty <= 0 {
		return apperr.Validation("ledger.release", map[string]string{"quantity": "must be positive"})
	}
	m, err := l.mode(ctx, line.ProductID)
	if err != nil || !m.tracked {
		return err
	}
	if !m.variants {
		_, err = l.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, line.ProductID, line.Qty)
		return err
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE product_sizes SET stock = stock + $3
		WHERE product_id=$1 AND lower(size)=lower($2)`, line.ProductID, strings.TrimSpace(line.Size), line.Qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("ledger.release", "size %s not found for %s", line.Size, m.name)
	}
	return nil
}

func (l *PGLedger) AddSales(ctx context.Context, productID string, delta int) error {
	_, err := l.DB.Exec(ctx, `
		UPDATE products SET sales_count = GREATEST(sales_count + $2, 0), updated_at = now()
		WHERE id=$1`, productID, delta)
	return err
}
