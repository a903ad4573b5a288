package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
)

type Item struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	TotalPrice  int64   `json:"total_price"`
	Options     Options `json:"options"`
}

// Cart totals are derived from Items by Recalculate and never set directly.
type Cart struct {
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	TotalQty   int       `json:"total_qty"`
	Subtotal   int64     `json:"subtotal"`
	GrandTotal int64     `json:"grand_total"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Cart) Recalculate() {
	c.TotalQty = 0
	c.Subtotal = 0
	for i := range c.Items {
		it := &c.Items[i]
		it.TotalPrice = it.UnitPrice * int64(it.Quantity)
		c.TotalQty += it.Quantity
		c.Subtotal += it.TotalPrice
	}
	c.GrandTotal = c.Subtotal
}

func (c *Cart) find(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// Store persists a user's active cart. Get returns an empty cart when the
// user has none.
type Store interface {
	Get(ctx context.Context, userID string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, userID string) error
}

type AddItemInput struct {
	ProductID string
	Quantity  int
	Options   Options
}

type Deps struct {
	Store       Store
	Catalog     catalog.Reader
	Clock       func() time.Time
	IDGenerator func() string
	Logger      *zap.Logger
}

// Service is the cart aggregator. It validates quantities against current
// availability but never mutates stock.
type Service struct {
	store   Store
	catalog catalog.Reader
	clock   func() time.Time
	newID   func() string
	log     *zap.Logger
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("cart service: store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		store:   deps.Store,
		catalog: deps.Catalog,
		clock:   func() time.Time { return clock().UTC() },
		newID:   newID,
		log:     logging.OrNop(deps.Logger),
	}, nil
}

func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return Cart{}, apperr.Validation("cart.get", map[string]string{"user_id": "required"})
	}
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	c.UserID = userID
	c.Recalculate()
	return c, nil
}

// AddItem merges into an existing line with the same product and options,
// otherwise appends a new line.
func (s *Service) AddItem(ctx context.Context, userID string, in AddItemInput) (Cart, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.ProductID) == "" {
		fields["product_id"] = "required"
	}
	if in.Quantity <= 0 {
		fields["quantity"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return Cart{}, apperr.Validation("cart.add", fields)
	}
	if in.Options == nil {
		in.Options = Options{}
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	p, err := s.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Cart{}, err
	}

	key := in.Options.Key()
	idx := -1
	for i, it := range c.Items {
		if it.ProductID == p.ID && it.Options.Key() == key {
			idx = i
			break
		}
	}

	want := in.Quantity
	if idx >= 0 {
		want += c.Items[idx].Quantity
	}
	if err := catalog.CheckAvailable(p, in.Options.Size(), want+c.demand(p, in.Options.Size(), idx)); err != nil {
		return Cart{}, err
	}

	if idx >= 0 {
		c.Items[idx].Quantity = want
		c.Items[idx].UnitPrice = p.Price
	} else {
		c.Items = append(c.Items, Item{
			ID:          s.newID(),
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    want,
			UnitPrice:   p.Price,
			Options:     in.Options.Clone(),
		})
	}
	return s.save(ctx, c)
}

func (s *Service) SetQuantity(ctx context.Context, userID, itemID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, apperr.Validation("cart.set_quantity", map[string]string{"quantity": "must be at least 1"})
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	idx := c.find(itemID)
	if idx < 0 {
		return Cart{}, apperr.NotFound("cart.set_quantity", "cart item %s not found", itemID)
	}
	it := c.Items[idx]
	p, err := s.catalog.GetProduct(ctx, it.ProductID)
	if err != nil {
		return Cart{}, err
	}
	if err := catalog.CheckAvailable(p, it.Options.Size(), qty+c.demand(p, it.Options.Size(), idx)); err != nil {
		return Cart{}, err
	}
	c.Items[idx].Quantity = qty
	c.Items[idx].UnitPrice = p.Price
	return s.save(ctx, c)
}

// demand sums what other lines already ask of the same stock counter: the
// product for simple products, the product and size for variant ones.
// Lines differing only in other options draw from the same counter.
func (c Cart) demand(p catalog.Product, size string, skip int) int {
	size = strings.TrimSpace(size)
	n := 0
	for i, it := range c.Items {
		if i == skip || it.ProductID != p.ID {
			continue
		}
		if p.HasVariants() && !strings.EqualFold(strings.TrimSpace(it.Options.Size()), size) {
			continue
		}
		n += it.Quantity
	}
	return n
}

func (s *Service) Remove(ctx context.Context, userID, itemID string) (Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	idx := c.find(itemID)
	if idx < 0 {
		return Cart{}, apperr.NotFound("cart.remove", "cart item %s not found", itemID)
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return s.save(ctx, c)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("cart.clear", map[string]string{"user_id": "required"})
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Debug("cart cleared", zap.String("user_id", userID))
	return nil
}

func (s *Service) save(ctx context.Context, c Cart) (Cart, error) {
	c.Recalculate()
	c.UpdatedAt = s.clock()
	if err := s.store.Save(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}
