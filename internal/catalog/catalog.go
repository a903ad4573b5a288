// Package catalog holds the product read model and the stock ledger.
//
// Stock is tracked either per size variant or, for products without
// variants, on the product itself. The ledger is the only writer of stock.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
)

type Product struct {
	ID         string
	SKU        string
	Name       string
	Price      int64
	TrackStock bool
	Stock      int // authoritative only when Variants is empty
	SalesCount int
	Variants   []SizeVariant
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type SizeVariant struct {
	ID        string
	ProductID string
	Size      string
	Stock     int
}

func (p Product) HasVariants() bool { return len(p.Variants) > 0 }

// Variant looks a size up case-insensitively.
func (p Product) Variant(size string) (SizeVariant, bool) {
	size = strings.TrimSpace(size)
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, size) {
			return v, true
		}
	}
	return SizeVariant{}, false
}

// Line is one stock movement request.
type Line struct {
	ProductID   string
	ProductName string
	Size        string // empty for products without variants
	Qty         int
}

// Reader is the read side of the catalog collaborator.
type Reader interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Ledger mutates stock counters atomically. Reserve never partially
// applies: it either takes the full quantity or returns
// *InsufficientStockError.
type Ledger interface {
	Reserve(ctx context.Context, line Line) error
	Release(ctx context.Context, line Line) error
	AddSales(ctx context.Context, productID string, delta int) error
}

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Size        string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.Size != "" {
		return fmt.Sprintf("insufficient stock for %s (size %s): requested %d, available %d", name, e.Size, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.KindInsufficientStock }

// Available returns the sellable quantity for the product and size.
// Untracked products report tracked=false with no error.
func Available(p Product, size string) (qty int, tracked bool, err error) {
	if !p.TrackStock {
		return 0, false, nil
	}
	if !p.HasVariants() {
		return p.Stock, true, nil
	}
	if strings.TrimSpace(size) == "" {
		return 0, true, apperr.Validation("catalog.available", map[string]string{"size": "size is required for " + p.Name})
	}
	v, ok := p.Variant(size)
	if !ok {
		return 0, true, apperr.NotFound("catalog.available", "size %s not found for %s", size, p.Name)
	}
	return v.Stock, true, nil
}

// CheckAvailable rejects qty when it exceeds what Available reports.
func CheckAvailable(p Product, size string, qty int) error {
	avail, tracked, err := Available(p, size)
	if err != nil || !tracked {
		return err
	}
	if qty > avail {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        size,
			Requested:   qty,
			Available:   avail,
		}
	}
	return nil
}
