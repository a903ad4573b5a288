package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
)

type Deps struct {
	Store       Store
	Catalog     catalog.Reader
	Gateway     Gateway
	Carts       CartClearer
	Events      EventPublisher
	Pricing     Pricing
	Clock       func() time.Time
	IDGenerator func() string
	NumberGen   func(now time.Time) string
	Logger      *zap.Logger
}

// Service is the order state machine. Every transition, together with its
// stock side effects, runs in one Store transaction.
type Service struct {
	store     Store
	catalog   catalog.Reader
	gateway   Gateway
	carts     CartClearer
	events    EventPublisher
	pricing   Pricing
	clock     func() time.Time
	newID     func() string
	newNumber func(time.Time) string
	log       *zap.Logger
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	newNumber := deps.NumberGen
	if newNumber == nil {
		newNumber = NewOrderNumber
	}
	events := deps.Events
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{
		store:     deps.Store,
		catalog:   deps.Catalog,
		gateway:   deps.Gateway,
		carts:     deps.Carts,
		events:    events,
		pricing:   deps.Pricing,
		clock:     func() time.Time { return clock().UTC() },
		newID:     newID,
		newNumber: newNumber,
		log:       logging.OrNop(deps.Logger),
	}, nil
}

type CheckoutInput struct {
	UserID        string
	Cart          cart.Cart
	PaymentMethod PaymentMethod
	Shipping      Address
	Billing       Address // defaults to Shipping when zero
}

func (in CheckoutInput) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.UserID) == "" {
		fields["user_id"] = "required"
	}
	if len(in.Cart.Items) == 0 {
		fields["items"] = "cart is empty"
	}
	if _, ok := ParsePaymentMethod(string(in.PaymentMethod)); !ok {
		fields["payment_method"] = "must be midtrans or manual"
	}
	validateAddress(fields, "shipping", in.Shipping)
	if !in.Billing.IsZero() {
		validateAddress(fields, "billing", in.Billing)
	}
	if len(fields) > 0 {
		return apperr.Validation("checkout", fields)
	}
	return nil
}

func validateAddress(fields map[string]string, prefix string, a Address) {
	req := map[string]string{
		"name":        a.Name,
		"phone":       a.Phone,
		"line1":       a.Line1,
		"city":        a.City,
		"postal_code": a.PostalCode,
	}
	for k, v := range req {
		if strings.TrimSpace(v) == "" {
			fields[prefix+"."+k] = "required"
		}
	}
}

// CreateFromCart snapshots the cart into a pending order. Gateway orders
// get a payment session and leave stock untouched until payment is
// confirmed. Manual orders reserve their stock immediately.
func (s *Service) CreateFromCart(ctx context.Context, in CheckoutInput) (Order, error) {
	if err := in.validate(); err != nil {
		return Order{}, err
	}
	method, _ := ParsePaymentMethod(string(in.PaymentMethod))
	billing := in.Billing
	if billing.IsZero() {
		billing = in.Shipping
	}

	now := s.clock()
	o := Order{
		ID:            s.newID(),
		Number:        s.newNumber(now),
		UserID:        in.UserID,
		Status:        StatusPending,
		PaymentMethod: method,
		Shipping:      in.Shipping,
		Billing:       billing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items, err := s.snapshotItems(ctx, o.ID, in.Cart)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	o.Totals = s.pricing.Compute(items)

	// The session is opened before any row lock is taken. The order number
	// is unique, so an abandoned session is never paid against a live order.
	if method == PaymentMidtrans {
		sess, err := s.gateway.CreateSession(ctx, sessionRequest(o))
		if err != nil {
			err = apperr.Gateway("checkout.session", err)
			s.logFailure(ctx, "checkout", o, err)
			return Order{}, err
		}
		o.PaymentToken = sess.Token
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if method == PaymentManual {
			if err := commitStock(ctx, tx.Ledger(), o); err != nil {
				return err
			}
			o.StockCommitted = true
		}
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		s.logFailure(ctx, "checkout", o, err)
		return Order{}, err
	}

	s.log.Info("order placed",
		zap.String("order_number", o.Number),
		zap.String("user_id", o.UserID),
		zap.String("payment_method", string(method)),
		zap.Int64("total", o.Totals.Total))
	s.publish(ctx, o, EventOrderPlaced, "", "checkout")
	if method == PaymentManual {
		s.clearCart(ctx, o)
	}
	return o, nil
}

// snapshotItems prices lines from the live catalog and rejects the whole
// checkout if any product and size lacks the demanded quantity.
func (s *Service) snapshotItems(ctx context.Context, orderID string, c cart.Cart) ([]Item, error) {
	type demandKey struct{ product, size string }
	demand := map[demandKey]int{}
	products := map[string]catalog.Product{}
	items := make([]Item, 0, len(c.Items))

	for _, line := range c.Items {
		if line.Quantity <= 0 {
			return nil, apperr.Validation("checkout", map[string]string{"items." + line.ID + ".quantity": "must be at least 1"})
		}
		p, ok := products[line.ProductID]
		if !ok {
			var err error
			p, err = s.catalog.GetProduct(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			products[p.ID] = p
		}
		size := strings.TrimSpace(line.Options.Size())
		if v, ok := p.Variant(size); ok {
			size = v.Size
		}
		k := demandKey{p.ID, strings.ToLower(size)}
		demand[k] += line.Quantity
		if err := catalog.CheckAvailable(p, size, demand[k]); err != nil {
			return nil, err
		}
		items = append(items, Item{
			ID:          s.newID(),
			OrderID:     orderID,
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Size:        size,
			Quantity:    line.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  p.Price * int64(line.Quantity),
			Options:     line.Options.Clone(),
		})
	}
	return items, nil
}

// UpdateStatus is the administrative transition. Moving into a fulfilling
// status commits stock if the order holds none; cancelling releases it.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status, tracking string) (Order, error) {
	raw := to
	to, ok := ParseStatus(string(raw))
	if !ok {
		return Order{}, apperr.Validation("order.update_status", map[string]string{"status": fmt.Sprintf("unknown status %q", raw)})
	}
	var (
		o       Order
		from    Status
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		tracking = strings.TrimSpace(tracking)
		if from == to {
			if to == StatusShipped && tracking != "" && tracking != o.TrackingNumber {
				o.TrackingNumber = tracking
				o.UpdatedAt = s.clock()
				return tx.UpdateOrder(ctx, o)
			}
			return nil
		}
		if !CanTransition(from, to) {
			return apperr.InvalidTransition("order.update_status", string(from), string(to))
		}
		if err := s.applyTransition(ctx, tx, &o, to); err != nil {
			return err
		}
		if to == StatusShipped && tracking != "" {
			o.TrackingNumber = tracking
		}
		changed = true
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		s.logFailure(ctx, "update_status", o, err)
		return Order{}, err
	}
	if changed {
		s.publish(ctx, o, EventOrderStatusChanged, from, "admin")
	}
	return o, nil
}

// Cancel is the customer-facing cancellation, allowed while the order is
// pending or processing. A non-empty userID must own the order.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (Order, error) {
	var from Status
	var o Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return apperr.NotFound("order.cancel", "order %s not found", orderID)
		}
		from = o.Status
		if !from.Cancellable() {
			return apperr.InvalidTransition("order.cancel", string(from), string(StatusCancelled))
		}
		if err := s.applyTransition(ctx, tx, &o, StatusCancelled); err != nil {
			return err
		}
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		s.logFailure(ctx, "cancel", o, err)
		return Order{}, err
	}
	s.publish(ctx, o, EventOrderStatusChanged, from, "customer")
	return o, nil
}

// Destroy hard-deletes a cancelled order.
func (s *Service) Destroy(ctx context.Context, orderID string) error {
	var o Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusCancelled {
			return &apperr.Error{
				Op:      "order.destroy",
				Kind:    apperr.KindInvalidTransition,
				Message: fmt.Sprintf("only cancelled orders can be deleted, order is %s", o.Status),
			}
		}
		return tx.DeleteOrder(ctx, o.ID)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, o, EventOrderDeleted, o.Status, "admin")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (Order, error) {
	return s.store.GetByNumber(ctx, number)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("order.list", map[string]string{"user_id": "required"})
	}
	return s.store.ListByUser(ctx, userID)
}

// applyTransition performs the stock and timestamp effects of moving o to
// status to. It does not persist o.
func (s *Service) applyTransition(ctx context.Context, tx Tx, o *Order, to Status) error {
	now := s.clock()
	switch {
	case to == StatusCancelled:
		if o.StockCommitted {
			if err := releaseStock(ctx, tx.Ledger(), *o); err != nil {
				return err
			}
			o.StockCommitted = false
		}
	case fulfilling[to] && !o.StockCommitted:
		if err := commitStock(ctx, tx.Ledger(), *o); err != nil {
			return err
		}
		o.StockCommitted = true
	}

	if o.Status == StatusDelivered && to != StatusDelivered {
		o.DeliveredAt = nil
	}
	switch to {
	case StatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// commitStock reserves every item and bumps sales counters. A shortfall on
// any item fails the whole call; the caller's transaction undoes the rest.
func commitStock(ctx context.Context, l catalog.Ledger, o Order) error {
	for _, line := range o.stockLines() {
		if err := l.Reserve(ctx, line); err != nil {
			return err
		}
		if err := l.AddSales(ctx, line.ProductID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func releaseStock(ctx context.Context, l catalog.Ledger, o Order) error {
	for _, line := range o.stockLines() {
		if err := l.Release(ctx, line); err != nil {
			return err
		}
		if err := l.AddSales(ctx, line.ProductID, -line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, o Order, typ string, from Status, reason string) {
	err := s.events.PublishOrderChange(ctx, Change{
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		From:        from,
		To:          o.Status,
		Reason:      reason,
		TotalAmount: o.Totals.Total,
		OccurredAt:  o.UpdatedAt,
	})
	if err != nil {
		s.log.Warn("publish order event", zap.String("order_number", o.Number), zap.Error(err))
	}
}

func (s *Service) clearCart(ctx context.Context, o Order) {
	if s.carts == nil {
		return
	}
	if err := s.carts.Clear(ctx, o.UserID); err != nil {
		s.log.Warn("clear cart", zap.String("user_id", o.UserID), zap.String("order_number", o.Number), zap.Error(err))
	}
}

func (s *Service) logFailure(_ context.Context, op string, o Order, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("user_id", o.UserID),
		zap.Error(err),
	}
	switch apperr.KindOf(err) {
	case apperr.KindGateway, apperr.KindInternal:
		s.log.Error("order operation failed", fields...)
	default:
		s.log.Debug("order operation rejected", fields...)
	}
}
