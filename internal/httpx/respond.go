package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// orderErrorStatus maps engine errors to HTTP status codes.
func orderErrorStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrProductNotFound), errors.Is(err, orders.ErrSizeNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNoEffectiveChange):
		return http.StatusConflict
	case errors.Is(err, orders.ErrTransactionConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeOrderError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := orderErrorStatus(err)
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if code == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeError(w, code, "internal server error")
		return
	}
	writeError(w, code, err.Error())
}
