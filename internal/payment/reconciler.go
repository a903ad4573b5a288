package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Verifier interface {
	Verify(n Notification) error
}

type OrderReconciler interface {
	GetByNumber(ctx context.Context, number string) (orders.Order, error)
	Reconcile(ctx context.Context, number string, u orders.PaymentUpdate) (orders.ReconcileResult, error)
}

// Deduper remembers notifications that were already applied.
// redisx.Dedup satisfies it.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// DedupScope namespaces webhook markers: dedup:webhook:{order}:{action}.
const DedupScope = "webhook"

// Markers are keyed by the decided action, not the raw status: capture
// means review or confirm depending on fraud_status.
func dedupKey(orderNumber string, a orders.PaymentAction) string {
	return orderNumber + ":" + string(a)
}

// settles reports whether an action ends the payment flow for an order.
// Review and await are always followed by a later notice that must run.
func settles(a orders.PaymentAction) bool {
	return a == orders.ActionConfirm || a == orders.ActionVoid
}

type Outcome struct {
	OrderNumber string               `json:"order_id"`
	Action      orders.PaymentAction `json:"action,omitempty"`
	Status      orders.Status        `json:"status,omitempty"`
	Applied     bool                 `json:"applied"`
	Duplicate   bool                 `json:"duplicate,omitempty"`
}

type ReconcilerDeps struct {
	Verifier Verifier
	Orders   OrderReconciler
	Dedup    Deduper // optional
	Logger   *zap.Logger
}

// Reconciler turns verified gateway notifications into order actions.
type Reconciler struct {
	verifier Verifier
	orders   OrderReconciler
	dedup    Deduper
	log      *zap.Logger
}

func NewReconciler(deps ReconcilerDeps) (*Reconciler, error) {
	if deps.Verifier == nil {
		return nil, fmt.Errorf("payment: verifier is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("payment: order reconciler is required")
	}
	return &Reconciler{
		verifier: deps.Verifier,
		orders:   deps.Orders,
		dedup:    deps.Dedup,
		log:      logging.OrNop(deps.Logger),
	}, nil
}

// Handle verifies and applies one notification. Statuses that carry nothing
// for the order are acknowledged. A failed stock commit surfaces as an error
// so the gateway retries delivery.
func (r *Reconciler) Handle(ctx context.Context, n Notification) (Outcome, error) {
	const op = "payment.handle"
	if err := n.validate(); err != nil {
		return Outcome{}, err
	}
	if err := r.verifier.Verify(n); err != nil {
		r.log.Warn("notification rejected", zap.String("order_number", n.OrderID), zap.Error(err))
		return Outcome{}, err
	}
	out := Outcome{OrderNumber: n.OrderID}
	log := r.log.With(
		zap.String("order_number", n.OrderID),
		zap.String("transaction_status", n.TransactionStatus),
		zap.String("fraud_status", n.FraudStatus),
	)

	action, ok := Decide(n.TransactionStatus, n.FraudStatus)
	if !ok {
		log.Info("notification ignored")
		return out, nil
	}
	out.Action = action

	key := dedupKey(n.OrderID, action)
	marks := r.dedup != nil && settles(action)
	if marks {
		seen, err := r.dedup.Seen(ctx, key)
		if err != nil {
			log.Warn("dedup lookup failed", zap.Error(err))
		} else if seen {
			out.Duplicate = true
			log.Debug("duplicate notification")
			return out, nil
		}
	}

	o, err := r.orders.GetByNumber(ctx, n.OrderID)
	if errors.Is(err, orders.ErrDeleted) {
		log.Info("notification for deleted order acknowledged")
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if !amountMatches(n.GrossAmount, o.Totals.Total) {
		log.Warn("gross amount mismatch", zap.String("gross_amount", n.GrossAmount), zap.Int64("order_total", o.Totals.Total))
		return out, apperr.Gateway(op, ErrAmountMismatch)
	}

	res, err := r.orders.Reconcile(ctx, n.OrderID, orders.PaymentUpdate{
		Action:        action,
		PaymentType:   n.PaymentType,
		TransactionID: n.TransactionID,
		GatewayStatus: n.TransactionStatus,
	})
	if errors.Is(err, orders.ErrDeleted) {
		log.Info("notification for deleted order acknowledged")
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Applied = res.Applied
	out.Status = res.Order.Status

	if marks {
		if err := r.dedup.Mark(ctx, key); err != nil {
			log.Warn("dedup mark failed", zap.Error(err))
		}
	}
	log.Info("notification reconciled", zap.String("action", string(action)), zap.Bool("applied", res.Applied), zap.String("status", string(res.Order.Status)))
	return out, nil
}
