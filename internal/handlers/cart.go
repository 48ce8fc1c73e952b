package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/platform/httpx"
	"github.com/snapedits/api/internal/services"
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

const maxCartBodySize = 16 * 1024

// NewCartHandlers constructs handlers enforcing authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items", h.updateQuantity)
	r.Delete("/items/{serviceId}", h.removeItem)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, identity.UID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addCartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.AddCartItemCommand{
		UserID:    identity.UID,
		ServiceID: strings.TrimSpace(req.ServiceID),
		Quantity:  req.Quantity,
		FormData:  req.FormData,
	}
	for _, v := range req.Variations {
		cmd.Variations = append(cmd.Variations, services.SelectedVariation{
			VariationType: strings.TrimSpace(v.VariationType),
			OptionID:      strings.TrimSpace(v.OptionID),
			OptionName:    strings.TrimSpace(v.OptionName),
		})
	}

	cart, err := h.carts.AddItem(ctx, cmd)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateCartQuantityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateItemQuantity(ctx, services.UpdateCartQuantityCommand{
		UserID:    identity.UID,
		ServiceID: strings.TrimSpace(req.ServiceID),
		OptionIDs: req.OptionIDs,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID:    identity.UID,
		ServiceID: chi.URLParam(r, "serviceId"),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, identity.UID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (h *CartHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput), errors.Is(err, services.ErrInvalidVariationCombination):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound), errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

func setCartResponseHeaders(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:       strings.TrimSpace(cart.ID),
		UserID:   strings.TrimSpace(cart.UserID),
		Currency: strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Total:    cart.Total,
		Quantity: cart.Quantity,
		Items:    buildCartItems(cart.Items),
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartItems(items []services.CartItem) []cartItemPayload {
	if len(items) == 0 {
		return []cartItemPayload{}
	}

	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		entry := cartItemPayload{
			ID:           strings.TrimSpace(item.ID),
			ServiceID:    strings.TrimSpace(item.ServiceID),
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			FormData:     cloneAnyMap(item.FormData),
		}
		for _, v := range item.Variations {
			entry.Variations = append(entry.Variations, selectedVariationPayload{
				VariationType: v.VariationType,
				OptionID:      v.OptionID,
				OptionName:    v.OptionName,
			})
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		if item.UpdatedAt != nil && !item.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(*item.UpdatedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

func buildCartETag(cart services.Cart) string {
	if strings.TrimSpace(cart.ID) == "" || cart.UpdatedAt.IsZero() {
		return ""
	}
	input := fmt.Sprintf("%s:%d", strings.TrimSpace(cart.ID), cart.UpdatedAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(input))
	token := hex.EncodeToString(sum[:8])
	return fmt.Sprintf(`W/"%s"`, token)
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Currency  string            `json:"currency"`
	Total     int64             `json:"total"`
	Quantity  int               `json:"quantity"`
	Items     []cartItemPayload `json:"items"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ID           string                     `json:"id"`
	ServiceID    string                     `json:"service_id"`
	ServiceName  string                     `json:"service_name"`
	FeatureImage string                     `json:"feature_image,omitempty"`
	BasePrice    int64                      `json:"base_price"`
	FinalPrice   int64                      `json:"final_price"`
	Quantity     int                        `json:"quantity"`
	Variations   []selectedVariationPayload `json:"variations,omitempty"`
	FormData     map[string]any             `json:"form_data,omitempty"`
	AddedAt      string                     `json:"added_at,omitempty"`
	UpdatedAt    string                     `json:"updated_at,omitempty"`
}

type selectedVariationPayload struct {
	VariationType string `json:"variation_type"`
	OptionID      string `json:"option_id"`
	OptionName    string `json:"option_name"`
}

type addCartItemRequest struct {
	ServiceID  string                     `json:"service_id"`
	Quantity   int                        `json:"quantity"`
	Variations []selectedVariationPayload `json:"variations"`
	FormData   map[string]any             `json:"form_data"`
}

type updateCartQuantityRequest struct {
	ServiceID string   `json:"service_id"`
	OptionIDs []string `json:"option_ids"`
	Quantity  int      `json:"quantity"`
}
