package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

type OrdersHandler struct {
	Orders *orders.Service
	Carts  *cart.Service
	// Redis, when set, serves the order status cache.
	Redis *redis.Client
}

type checkoutReq struct {
	PaymentMethod string         `json:"payment_method"`
	Shipping      orders.Address `json:"shipping_address"`
	Billing       orders.Address `json:"billing_address"`
}

type checkoutResp struct {
	Order        orders.Order `json:"order"`
	PaymentToken string       `json:"payment_token,omitempty"`
}

type statusResp struct {
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	Cached      bool      `json:"cached"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Get("/orders/track/{number}", h.track)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req checkoutReq
	if !decodeJSON(w, r, &req) {
		return
	}
	method, ok := orders.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		writeError(w, r, apperr.Validation("checkout", map[string]string{"payment_method": "must be midtrans or manual"}))
		return
	}
	c, err := h.Carts.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Orders.CreateFromCart(r.Context(), orders.CheckoutInput{
		UserID:        uid,
		Cart:          c,
		PaymentMethod: method,
		Shipping:      req.Shipping,
		Billing:       req.Billing,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, checkoutResp{Order: o, PaymentToken: o.PaymentToken})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	list, err := h.Orders.ListForUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	o, err := h.Orders.Get(r.Context(), id)
	if err == nil && o.UserID != uid {
		err = apperr.NotFound("order.get", "order %s not found", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Cancel(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, o)
}

// track reports only the status of an order number, cache first.
func (h *OrdersHandler) track(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	ctx := r.Context()
	if h.Redis != nil {
		e, ok, err := redisx.CachedStatus(ctx, h.Redis, number)
		if err != nil {
			logging.FromContext(ctx).Warn("status cache read failed", zap.Error(err))
		} else if ok {
			writeJSON(w, http.StatusOK, statusResp{OrderNumber: number, Status: e.Status, UpdatedAt: e.UpdatedAt, Cached: true})
			return
		}
	}
	o, err := h.Orders.GetByNumber(ctx, number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, statusResp{OrderNumber: o.Number, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) cacheStatus(r *http.Request, o orders.Order) {
	cacheStatus(r, h.Redis, o)
}

func cacheStatus(r *http.Request, rdb *redis.Client, o orders.Order) {
	if rdb == nil {
		return
	}
	if err := redisx.CacheStatus(r.Context(), rdb, o.Number, string(o.Status), o.UpdatedAt); err != nil {
		logging.FromContext(r.Context()).Warn("status cache write failed", zap.String("order_number", o.Number), zap.Error(err))
	}
}
