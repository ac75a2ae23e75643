package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     "insufficient stock",
			Code:      "insufficient_stock",
			Details:   stockErr.Error(),
			ProductID: stockErr.ProductID,
		})
		return
	}

	var (
		httpStatus int
		code       string
		message    = err.Error()
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidArgument):
		httpStatus, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, service.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, service.ErrUnauthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrUnauthorized):
		httpStatus, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, service.ErrConflict):
		httpStatus, code, message = http.StatusConflict, "conflict", service.ErrConflict.Error()
	case errors.Is(err, service.ErrStoreUnavailable):
		httpStatus, code, message = http.StatusServiceUnavailable, "service_unavailable", service.ErrStoreUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	case errors.Is(err, context.Canceled):
		httpStatus, code, message = http.StatusServiceUnavailable, "canceled", "request canceled"
	default:
		httpStatus, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	if httpStatus >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", httpStatus).Msg("request failed")
	}
	respondError(w, httpStatus, code, message)
}
