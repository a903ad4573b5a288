package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (d *memDedup) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key], d.err
}

func (d *memDedup) Mark(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = true
	return nil
}

type tokenGateway struct{}

func (tokenGateway) CreateSession(_ context.Context, req orders.SessionRequest) (orders.Session, error) {
	return orders.Session{Token: "tok-" + req.OrderNumber}, nil
}

type harness struct {
	rec   *Reconciler
	svc   *orders.Service
	store *memstore.Store
	dedup *memDedup
	order orders.Order
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	store.PutProduct(catalog.Product{ID: "cap", SKU: "CAP-01", Name: "Cap", Price: 50000, TrackStock: true, Stock: 3})
	seq := 0
	svc, err := orders.NewService(orders.Deps{
		Store:   store,
		Catalog: store,
		Gateway: tokenGateway{},
		Pricing: orders.Pricing{ShippingFee: 10000, TaxRate: decimal.Zero},
		Clock:   func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		NumberGen: func(time.Time) string {
			seq++
			return fmt.Sprintf("ORD-%03d", seq)
		},
	})
	require.NoError(t, err)

	o, err := svc.CreateFromCart(context.Background(), orders.CheckoutInput{
		UserID: "u1",
		Cart: cart.Cart{UserID: "u1", Items: []cart.Item{
			{ID: "i1", ProductID: "cap", Quantity: 2},
		}},
		PaymentMethod: orders.PaymentMidtrans,
		Shipping:      orders.Address{Name: "Budi", Phone: "0812", Line1: "Jl. Braga 2", City: "Bandung", PostalCode: "40111"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 110000, o.Totals.Total)

	dedup := &memDedup{keys: map[string]bool{}}
	rec, err := NewReconciler(ReconcilerDeps{
		Verifier: SignatureVerifier{ServerKey: testServerKey},
		Orders:   svc,
		Dedup:    dedup,
	})
	require.NoError(t, err)
	return &harness{rec: rec, svc: svc, store: store, dedup: dedup, order: o}
}

func (h *harness) notice(status, fraud string) Notification {
	return signed(Notification{
		OrderID:           h.order.Number,
		StatusCode:        "200",
		GrossAmount:       "110000.00",
		TransactionStatus: status,
		FraudStatus:       fraud,
		PaymentType:       "bank_transfer",
		TransactionID:     "trx-1",
	})
}

func (h *harness) stock(t *testing.T) int {
	t.Helper()
	p, err := h.store.GetProduct(context.Background(), "cap")
	require.NoError(t, err)
	return p.Stock
}

func TestHandleSettlementCommitsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	out, err := h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.Equal(t, orders.StatusProcessing, out.Status)
	require.Equal(t, 1, h.stock(t))

	out, err = h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.True(t, out.Duplicate)
	require.Equal(t, 1, h.stock(t))

	// capture/accept decides the same action as settlement
	out, err = h.rec.Handle(ctx, h.notice("capture", "accept"))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Equal(t, 1, h.stock(t))

	o, err := h.svc.GetByNumber(ctx, h.order.Number)
	require.NoError(t, err)
	require.Equal(t, "bank_transfer", o.PaymentType)
	require.NotNil(t, o.PaidAt)
}

func TestHandleWithoutDedupStillIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.rec.dedup = nil

	for i := 0; i < 3; i++ {
		_, err := h.rec.Handle(ctx, h.notice("settlement", ""))
		require.NoError(t, err)
	}
	require.Equal(t, 1, h.stock(t))
}

func TestHandleDedupFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.dedup.err = errors.New("redis down")

	out, err := h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.True(t, out.Applied)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	n := h.notice("settlement", "")
	n.SignatureKey = "deadbeef"

	_, err := h.rec.Handle(context.Background(), n)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Equal(t, 3, h.stock(t))
}

func TestHandleRejectsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	n := h.notice("settlement", "")
	n.GrossAmount = "1000.00"
	n = signed(n)

	_, err := h.rec.Handle(context.Background(), n)
	require.ErrorIs(t, err, ErrAmountMismatch)
	require.Equal(t, apperr.KindGateway, apperr.KindOf(err))
	require.Equal(t, 3, h.stock(t))
	require.Empty(t, h.dedup.keys)
}

func TestHandleChallengeThenDeny(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	out, err := h.rec.Handle(ctx, h.notice("capture", "challenge"))
	require.NoError(t, err)
	require.Equal(t, orders.ActionReview, out.Action)
	require.Equal(t, orders.StatusPending, out.Status)

	out, err = h.rec.Handle(ctx, h.notice("deny", ""))
	require.NoError(t, err)
	require.Equal(t, orders.StatusCancelled, out.Status)
	require.Equal(t, 3, h.stock(t))
}

func TestHandleExpireAfterSettlementRestores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.Equal(t, 1, h.stock(t))

	out, err := h.rec.Handle(ctx, h.notice("expire", ""))
	require.NoError(t, err)
	require.Equal(t, orders.StatusCancelled, out.Status)
	require.Equal(t, 3, h.stock(t))
}

func TestHandleIgnoresRefundNotice(t *testing.T) {
	h := newHarness(t)

	out, err := h.rec.Handle(context.Background(), h.notice("refund", ""))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Empty(t, out.Action)
}

func TestHandleUnknownOrder(t *testing.T) {
	h := newHarness(t)
	n := h.notice("settlement", "")
	n.OrderID = "ORD-404"
	n = signed(n)

	_, err := h.rec.Handle(context.Background(), n)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestHandleAcknowledgesDeletedOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.rec.Handle(ctx, h.notice("expire", ""))
	require.NoError(t, err)
	require.NoError(t, h.svc.Destroy(ctx, h.order.ID))

	out, err := h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Equal(t, 3, h.stock(t))
}

func TestHandleChallengeThenAccept(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	out, err := h.rec.Handle(ctx, h.notice("capture", "challenge"))
	require.NoError(t, err)
	require.Equal(t, orders.StatusPending, out.Status)
	require.Empty(t, h.dedup.keys)

	out, err = h.rec.Handle(ctx, h.notice("capture", "accept"))
	require.NoError(t, err)
	require.False(t, out.Duplicate)
	require.True(t, out.Applied)
	require.Equal(t, orders.StatusProcessing, out.Status)
	require.Equal(t, 1, h.stock(t))

	// settlement after capture decides the same action
	out, err = h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.True(t, out.Duplicate)
	require.Equal(t, 1, h.stock(t))
}

func TestHandleChallengeThenCaptureDeny(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.rec.Handle(ctx, h.notice("capture", "challenge"))
	require.NoError(t, err)

	out, err := h.rec.Handle(ctx, h.notice("capture", "deny"))
	require.NoError(t, err)
	require.False(t, out.Duplicate)
	require.Equal(t, orders.StatusCancelled, out.Status)
	require.Equal(t, 3, h.stock(t))
}

func TestHandlePendingRepeatsAreNotMarked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		out, err := h.rec.Handle(ctx, h.notice("pending", ""))
		require.NoError(t, err)
		require.False(t, out.Duplicate)
	}
	require.Empty(t, h.dedup.keys)

	out, err := h.rec.Handle(ctx, h.notice("settlement", ""))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.True(t, h.dedup.keys["ORD-001:confirm"])
}

func TestDedupKey(t *testing.T) {
	require.Equal(t, "ORD-1:confirm", dedupKey("ORD-1", orders.ActionConfirm))
	require.True(t, settles(orders.ActionVoid))
	require.False(t, settles(orders.ActionReview))
	require.False(t, settles(orders.ActionAwait))
}
