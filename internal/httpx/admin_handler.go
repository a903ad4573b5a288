package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// AdminHandler exposes back-office order operations. Access control belongs
// to the gateway in front of /admin.
type AdminHandler struct {
	Orders *orders.Service
	Redis  *redis.Client
}

type updateStatusReq struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin/orders/{id}", func(r chi.Router) {
		r.Patch("/status", h.updateStatus)
		r.Delete("/", h.destroy)
	})
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), orders.Status(req.Status), req.TrackingNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cacheStatus(r, h.Redis, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
