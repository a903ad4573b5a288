package orders

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
)

// PaymentAction is what a verified gateway notification asks of an order.
type PaymentAction string

const (
	// ActionConfirm: captured and accepted, or settled.
	ActionConfirm PaymentAction = "confirm"
	// ActionReview: captured but flagged by fraud screening.
	ActionReview PaymentAction = "review"
	// ActionAwait: the customer has not completed payment yet.
	ActionAwait PaymentAction = "await"
	// ActionVoid: denied, expired or cancelled at the gateway.
	ActionVoid PaymentAction = "void"
)

type PaymentUpdate struct {
	Action        PaymentAction
	PaymentType   string
	TransactionID string
	// GatewayStatus is recorded on the emitted event only.
	GatewayStatus string
}

type ReconcileResult struct {
	Order   Order
	Applied bool // false when the notification was acknowledged without effect
}

// Reconcile applies a payment notification to the order with the given
// number. Repeated or late notifications are acknowledged without a second
// stock movement: only pending orders can be confirmed, and only pending or
// processing orders can be voided.
func (s *Service) Reconcile(ctx context.Context, number string, u PaymentUpdate) (ReconcileResult, error) {
	var (
		res  ReconcileResult
		from Status
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrderByNumber(ctx, number)
		if err != nil {
			return err
		}
		res.Order = o
		from = o.Status
		if from.IsFinal() {
			return nil
		}

		switch u.Action {
		case ActionConfirm:
			if from.IsSettled() {
				return nil
			}
			if err := s.applyTransition(ctx, tx, &o, StatusProcessing); err != nil {
				return err
			}
			now := s.clock()
			o.PaidAt = &now
		case ActionReview, ActionAwait:
			if from != StatusPending {
				return nil
			}
			if !recordPayment(&o, u) {
				return nil
			}
			o.UpdatedAt = s.clock()
		case ActionVoid:
			if !from.Cancellable() {
				return nil
			}
			if err := s.applyTransition(ctx, tx, &o, StatusCancelled); err != nil {
				return err
			}
		default:
			return apperr.Validation("payment.reconcile", map[string]string{"action": "unsupported " + string(u.Action)})
		}
		recordPayment(&o, u)
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		res.Order = o
		res.Applied = true
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "reconcile", res.Order, err)
		return ReconcileResult{}, err
	}

	o := res.Order
	if !res.Applied {
		s.log.Info("payment notification ignored",
			zap.String("order_number", number),
			zap.String("status", string(o.Status)),
			zap.String("action", string(u.Action)))
		return res, nil
	}
	if o.Status != from {
		s.publish(ctx, o, EventOrderStatusChanged, from, "payment:"+u.GatewayStatus)
	}
	if u.Action == ActionConfirm {
		s.clearCart(ctx, o)
	}
	s.log.Info("payment notification applied",
		zap.String("order_number", number),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
		zap.String("action", string(u.Action)))
	return res, nil
}

// recordPayment copies gateway metadata onto o and reports whether
// anything changed.
func recordPayment(o *Order, u PaymentUpdate) bool {
	changed := false
	if pt := strings.TrimSpace(u.PaymentType); pt != "" && pt != o.PaymentType {
		o.PaymentType = pt
		changed = true
	}
	if id := strings.TrimSpace(u.TransactionID); id != "" && id != o.TransactionID {
		o.TransactionID = id
		changed = true
	}
	return changed
}
