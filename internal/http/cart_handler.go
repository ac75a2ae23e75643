package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type CartService interface {
	ViewCart(ctx context.Context, userID int64) (*domain.CartView, error)
	AddToCart(ctx context.Context, userID, productID int64, qty int32) (*domain.CartItem, error)
	UpdateCartItem(ctx context.Context, userID, itemID int64, qty int32) (*domain.CartItem, bool, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int32 `json:"quantity"`
}

type CartItemDTO struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartLineDTO struct {
	ItemID      int64        `json:"item_id"`
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name"`
	UnitPrice   domain.Money `json:"unit_price"`
	Quantity    int32        `json:"quantity"`
	Available   int32        `json:"available"`
	Subtotal    domain.Money `json:"subtotal"`
}

type CartDTO struct {
	UserID int64         `json:"user_id"`
	Items  []CartLineDTO `json:"items"`
	Total  domain.Money  `json:"total"`
}

func toCartItemDTO(item *domain.CartItem) CartItemDTO {
	return CartItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UpdatedAt: item.UpdatedAt,
	}
}

func toCartDTO(view *domain.CartView) CartDTO {
	dto := CartDTO{
		UserID: view.UserID,
		Items:  make([]CartLineDTO, 0, len(view.Lines)),
		Total:  view.Total,
	}
	for _, l := range view.Lines {
		// the view total was computed from these lines, so each subtotal fits
		subtotal, _ := l.Subtotal()
		dto.Items = append(dto.Items, CartLineDTO{
			ItemID:      l.Item.ID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			UnitPrice:   l.Product.Price,
			Quantity:    l.Item.Quantity,
			Available:   l.Product.Stock,
			Subtotal:    subtotal,
		})
	}
	return dto
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	view, err := h.carts.ViewCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(view))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	item, err := h.carts.AddToCart(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCartItemDTO(item))
}

// UpdateItem replaces the quantity. Zero or less removes the row.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, deleted, err := h.carts.UpdateCartItem(ctx, userID, itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if deleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, toCartItemDTO(item))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	if err := h.carts.RemoveCartItem(ctx, userID, itemID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
