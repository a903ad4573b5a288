// Package memstore is a process-local implementation of the catalog and
// order stores. Transactions are serialized by one mutex and work on a
// copy of the data that replaces the live state only on success.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type state struct {
	products map[string]catalog.Product
	orders   map[string]orders.Order
	byNumber map[string]string
	deleted  map[string]bool
}

func (s *state) clone() *state {
	out := &state{
		products: make(map[string]catalog.Product, len(s.products)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		byNumber: make(map[string]string, len(s.byNumber)),
		deleted:  make(map[string]bool, len(s.deleted)),
	}
	for k, p := range s.products {
		out.products[k] = copyProduct(p)
	}
	for k, o := range s.orders {
		out.orders[k] = copyOrder(o)
	}
	for k, v := range s.byNumber {
		out.byNumber[k] = v
	}
	for k := range s.deleted {
		out.deleted[k] = true
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: &state{
		products: map[string]catalog.Product{},
		orders:   map[string]orders.Order{},
		byNumber: map[string]string{},
		deleted:  map[string]bool{},
	}}
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = copyProduct(p)
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("catalog.get", "product %s not found", id)
	}
	return copyProduct(p), nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Get(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.data}).LockOrder(context.Background(), id)
}

func (s *Store) GetByNumber(_ context.Context, number string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.data}).LockOrderByNumber(context.Background(), number)
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.data.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type tx struct{ st *state }

func (t *tx) Ledger() catalog.Ledger { return ledger{st: t.st} }

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order.get", "order %s not found", id)
	}
	return copyOrder(o), nil
}

func (t *tx) LockOrderByNumber(ctx context.Context, number string) (orders.Order, error) {
	id, ok := t.st.byNumber[number]
	if !ok && t.st.deleted[number] {
		return orders.Order{}, orders.DeletedError(number)
	}
	if !ok {
		return orders.Order{}, apperr.NotFound("order.get", "order %s not found", number)
	}
	return t.LockOrder(ctx, id)
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, dup := t.st.byNumber[o.Number]; dup {
		return apperr.Internal("order.insert", errDuplicateNumber(o.Number))
	}
	t.st.orders[o.ID] = copyOrder(o)
	t.st.byNumber[o.Number] = o.ID
	return nil
}

// UpdateOrder keeps the inserted snapshot and copies the mutable fields.
func (t *tx) UpdateOrder(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return apperr.NotFound("order.update", "order %s not found", o.ID)
	}
	cur.Status = o.Status
	cur.PaymentToken = o.PaymentToken
	cur.PaymentType = o.PaymentType
	cur.TransactionID = o.TransactionID
	cur.StockCommitted = o.StockCommitted
	cur.TrackingNumber = o.TrackingNumber
	cur.PaidAt = copyTime(o.PaidAt)
	cur.ShippedAt = copyTime(o.ShippedAt)
	cur.DeliveredAt = copyTime(o.DeliveredAt)
	cur.UpdatedAt = o.UpdatedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id string) error {
	o, ok := t.st.orders[id]
	if !ok {
		return nil
	}
	delete(t.st.byNumber, o.Number)
	delete(t.st.orders, id)
	t.st.deleted[o.Number] = true
	return nil
}

type errDuplicateNumber string

func (e errDuplicateNumber) Error() string { return "duplicate order number " + string(e) }

// ledger mutates the transaction's working copy, so a failed unit of work
// discards every movement it made.
type ledger struct{ st *state }

func (l ledger) slot(op string, line catalog.Line) (*catalog.Product, *int, error) {
	p, ok := l.st.products[line.ProductID]
	if !ok {
		return nil, nil, apperr.NotFound(op, "product %s not found", line.ProductID)
	}
	if line.Qty <= 0 {
		return nil, nil, apperr.Validation(op, map[string]string{"quantity": "must be positive"})
	}
	if !p.TrackStock {
		return &p, nil, nil
	}
	if !p.HasVariants() {
		return &p, &p.Stock, nil
	}
	size := strings.TrimSpace(line.Size)
	if size == "" {
		return nil, nil, apperr.Validation(op, map[string]string{"size": "size is required for " + p.Name})
	}
	for i := range p.Variants {
		if strings.EqualFold(p.Variants[i].Size, size) {
			return &p, &p.Variants[i].Stock, nil
		}
	}
	return nil, nil, apperr.NotFound(op, "size %s not found for %s", size, p.Name)
}

func (l ledger) Reserve(_ context.Context, line catalog.Line) error {
	p, stock, err := l.slot("ledger.reserve", line)
	if err != nil || stock == nil {
		return err
	}
	if *stock < line.Qty {
		return &catalog.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        line.Size,
			Requested:   line.Qty,
			Available:   *stock,
		}
	}
	*stock -= line.Qty
	l.st.products[p.ID] = *p
	return nil
}

func (l ledger) Release(_ context.Context, line catalog.Line) error {
	p, stock, err := l.slot("ledger.release", line)
	if err != nil || stock == nil {
		return err
	}
	*stock += line.Qty
	l.st.products[p.ID] = *p
	return nil
}

func (l ledger) AddSales(_ context.Context, productID string, delta int) error {
	p, ok := l.st.products[productID]
	if !ok {
		return apperr.NotFound("ledger.sales", "product %s not found", productID)
	}
	p.SalesCount += delta
	if p.SalesCount < 0 {
		p.SalesCount = 0
	}
	l.st.products[productID] = p
	return nil
}
