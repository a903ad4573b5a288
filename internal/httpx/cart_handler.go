package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
)

type CartHandler struct {
	Carts *cart.Service
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Options accepts either {"size":"M"} or [{"name":"size","value":"M"}].
	Options json.RawMessage `json:"options"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.clear)
		r.Post("/items", h.addItem)
		r.Patch("/items/{id}", h.setQuantity)
		r.Delete("/items/{id}", h.removeItem)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	c, err := h.Carts.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(c))
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req addItemReq
	if !decodeJSON(w, r, &req) {
		return
	}
	opts, err := cart.ParseOptions(req.Options)
	if err != nil {
		writeError(w, r, apperr.Validation("cart.add", map[string]string{"options": err.Error()}))
		return
	}
	c, err := h.Carts.AddItem(r.Context(), uid, cart.AddItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Options:   opts,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(c))
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req setQuantityReq
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Carts.SetQuantity(r.Context(), uid, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(c))
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	c, err := h.Carts.Remove(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(c))
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.Carts.Clear(r.Context(), uid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cartView keeps items rendered as [] for an empty cart.
func cartView(c cart.Cart) cart.Cart {
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c
}
