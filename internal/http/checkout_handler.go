package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

type CheckoutService interface {
	Checkout(ctx context.Context, userID int64, idempotencyKey string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// Checkout places an order from the caller's cart. The idempotency key is
// taken from the header first, then from an optional JSON body.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" && r.Body != nil {
		var req InitiateCheckoutRequestDTO
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		key = req.IdempotencyKey
	}
	if len(key) > 255 {
		respondError(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long")
		return
	}

	order, err := h.checkout.Checkout(ctx, userID, key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}
