package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/payment"
)

type WebhookHandler struct {
	Payments *payment.Reconciler
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/payments/midtrans/notification", h.notification)
}

// notification answers 200 for everything that should not be redelivered,
// including duplicates and statuses that carry no order action. Any other
// status makes the gateway retry.
func (h *WebhookHandler) notification(w http.ResponseWriter, r *http.Request) {
	var n payment.Notification
	if !decodeJSON(w, r, &n) {
		return
	}
	out, err := h.Payments.Handle(r.Context(), n)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "invalid_signature", "message": "signature verification failed"})
		return
	case errors.Is(err, payment.ErrAmountMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "amount_mismatch", "message": "gross amount does not match order"})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
