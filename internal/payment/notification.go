package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid notification signature")
	ErrAmountMismatch   = errors.New("payment: gross amount does not match order total")
)

// Notification is the HTTP notification body the gateway posts for every
// transaction status change.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`
}

func (n Notification) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(n.OrderID) == "" {
		fields["order_id"] = "required"
	}
	if strings.TrimSpace(n.TransactionStatus) == "" {
		fields["transaction_status"] = "required"
	}
	if strings.TrimSpace(n.SignatureKey) == "" {
		fields["signature_key"] = "required"
	}
	if len(fields) > 0 {
		return apperr.Validation("payment.notification", fields)
	}
	return nil
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// SignatureVerifier checks notifications against the merchant server key.
type SignatureVerifier struct {
	ServerKey string
}

func (v SignatureVerifier) Verify(n Notification) error {
	if v.ServerKey == "" {
		return apperr.Gateway("payment.verify", errors.New("server key not configured"))
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, v.ServerKey)
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return apperr.Gateway("payment.verify", ErrInvalidSignature)
	}
	return nil
}

// Decide maps gateway vocabulary onto an order action. ok=false means the
// status carries nothing for the order (refunds, chargebacks, authorize)
// and the notification is acknowledged as is.
func Decide(transactionStatus, fraudStatus string) (action orders.PaymentAction, ok bool) {
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture":
		switch fraud {
		case "challenge":
			return orders.ActionReview, true
		case "deny":
			return orders.ActionVoid, true
		default:
			return orders.ActionConfirm, true
		}
	case "settlement":
		return orders.ActionConfirm, true
	case "pending":
		return orders.ActionAwait, true
	case "deny", "expire", "cancel", "failure":
		return orders.ActionVoid, true
	}
	return "", false
}

// amountMatches compares the gateway's decimal string with an order total.
func amountMatches(gross string, total int64) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(gross))
	if err != nil {
		return false
	}
	return d.Equal(decimal.NewFromInt(total))
}
