package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
)

// HeaderUserID carries the caller identity set by the upstream auth proxy.
const HeaderUserID = "X-User-ID"

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_json", "message": "invalid json body"})
		return false
	}
	return true
}

// userID returns the caller or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized", "message": "missing " + HeaderUserID})
		return "", false
	}
	return id, true
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps err onto the JSON error envelope. Internal and gateway
// details are logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	payload := map[string]any{
		"error":  string(kind),
		"status": status,
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		payload["request_id"] = id
	}
	if apperr.Public(kind) {
		payload["message"] = publicMessage(err)
		if f := apperr.FieldsOf(err); len(f) > 0 {
			payload["fields"] = f
		}
	} else {
		payload["message"] = http.StatusText(status)
		logging.FromContext(r.Context()).Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, payload)
}

func publicMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
