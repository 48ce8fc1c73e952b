package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/platform/httpx"
	"github.com/snapedits/api/internal/services"
)

// OrderHandlers exposes authenticated checkout and order history endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

const maxOrderBodySize = 64 * 1024

// NewOrderHandlers constructs handlers for the customer order surface.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.confirmOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
	r.Post("/{orderId}/cancel", h.cancelOrder)
	r.Get("/{orderId}/invoice", h.downloadInvoice)
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req confirmOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.ConfirmOrderCommand{
		UserID:         identity.UID,
		UserEmail:      identity.Email,
		Total:          req.Total,
		BillingAddress: buildAddress(req.BillingAddress),
		PayPalOrderID:  strings.TrimSpace(req.PayPalOrderID),
		CouponCode:     strings.TrimSpace(req.CouponCode),
	}
	for _, item := range req.Items {
		line := services.OrderLineItem{
			ServiceID:    strings.TrimSpace(item.ServiceID),
			ServiceName:  item.ServiceName,
			FeatureImage: item.FeatureImage,
			BasePrice:    item.BasePrice,
			FinalPrice:   item.FinalPrice,
			Quantity:     item.Quantity,
			FormData:     item.FormData,
		}
		for _, v := range item.Variations {
			line.Variations = append(line.Variations, services.SelectedVariation{
				VariationType: v.VariationType,
				OptionID:      v.OptionID,
				OptionName:    v.OptionName,
			})
		}
		cmd.Items = append(cmd.Items, line)
	}

	order, err := h.orders.ConfirmOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	pager, err := parseListPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListByUser(ctx, identity.UID, pager)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderId"), identity.UID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID:     chi.URLParam(r, "orderId"),
		RequesterID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	path, err := h.orders.InvoiceFile(ctx, chi.URLParam(r, "orderId"), identity.UID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	serveInvoice(ctx, w, path)
}

// serveInvoice streams a generated invoice PDF. A missing file is reported as
// not found rather than leaking the storage path.
func serveInvoice(ctx context.Context, w http.ResponseWriter, path string) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			httpx.WriteError(ctx, w, httpx.NewError("invoice_not_found", "invoice has not been generated yet", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invoice_error", "failed to read invoice", http.StatusInternalServerError))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	_, _ = io.Copy(w, file)
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// writeOrderError maps order and coupon sentinels to response codes. Payment
// verification failures are client errors: the capture was not completed, so
// the storefront must restart the payment flow.
func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment could not be verified", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrCouponUsageExceeded),
		errors.Is(err, services.ErrCouponMinCartValue),
		errors.Is(err, services.ErrCouponNotFound),
		errors.Is(err, services.ErrCouponInvalidInput):
		writeCouponError(ctx, w, err)
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func buildOrderListResponse(page domain.CursorPage[services.Order]) orderListResponse {
	resp := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	return resp
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                   order.ID,
		OrderNumber:          order.OrderNumber,
		UserID:               order.UserID,
		Subtotal:             order.Subtotal,
		CouponCode:           order.CouponCode,
		Discount:             order.Discount,
		Total:                order.Total,
		Currency:             strings.ToUpper(strings.TrimSpace(order.Currency)),
		BillingAddress:       buildAddressPayload(order.BillingAddress),
		PayPalOrderID:        order.PayPalOrderID,
		Status:               string(order.Status),
		PaymentStatus:        string(order.PaymentStatus),
		InvoiceNumber:        order.InvoiceNumber,
		InvoiceURL:           order.InvoiceURL,
		CompletionPercentage: order.CompletionPercentage,
		Cancelled:            order.Cancelled,
	}
	for _, item := range order.Items {
		entry := orderItemPayload{
			ServiceID:    item.ServiceID,
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
		payload.Items = append(payload.Items, entry)
	}
	if !order.ExpectedDelivery.IsZero() {
		payload.ExpectedDelivery = formatTime(order.ExpectedDelivery)
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(order.CreatedAt)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	return payload
}

func buildAddress(payload addressPayload) services.Address {
	return services.Address{
		FullName:   strings.TrimSpace(payload.FullName),
		Email:      strings.TrimSpace(payload.Email),
		Phone:      strings.TrimSpace(payload.Phone),
		Line1:      strings.TrimSpace(payload.Line1),
		Line2:      strings.TrimSpace(payload.Line2),
		City:       strings.TrimSpace(payload.City),
		State:      strings.TrimSpace(payload.State),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
}

func buildAddressPayload(address services.Address) addressPayload {
	return addressPayload{
		FullName:   address.FullName,
		Email:      address.Email,
		Phone:      address.Phone,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID                   string             `json:"id"`
	OrderNumber          string             `json:"order_number"`
	UserID               string             `json:"user_id"`
	Items                []orderItemPayload `json:"items"`
	Subtotal             int64              `json:"subtotal"`
	CouponCode           string             `json:"coupon_code,omitempty"`
	Discount             int64              `json:"discount"`
	Total                int64              `json:"total"`
	Currency             string             `json:"currency"`
	BillingAddress       addressPayload     `json:"billing_address"`
	PayPalOrderID        string             `json:"paypal_order_id,omitempty"`
	Status               string             `json:"status"`
	PaymentStatus        string             `json:"payment_status"`
	InvoiceNumber        string             `json:"invoice_number"`
	InvoiceURL           string             `json:"invoice_url,omitempty"`
	CompletionPercentage int                `json:"completion_percentage"`
	ExpectedDelivery     string             `json:"expected_delivery,omitempty"`
	Cancelled            bool               `json:"cancelled"`
	CancelledAt          string             `json:"cancelled_at,omitempty"`
	CreatedAt            string             `json:"created_at,omitempty"`
	UpdatedAt            string             `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ServiceID    string                     `json:"service_id"`
	ServiceName  string                     `json:"service_name"`
	FeatureImage string                     `json:"feature_image,omitempty"`
	BasePrice    int64                      `json:"base_price"`
	FinalPrice   int64                      `json:"final_price"`
	Quantity     int                        `json:"quantity"`
	Variations   []selectedVariationPayload `json:"variations,omitempty"`
	FormData     map[string]any             `json:"form_data,omitempty"`
}

type addressPayload struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type confirmOrderRequest struct {
	Items          []orderItemPayload `json:"items"`
	Total          int64              `json:"total"`
	BillingAddress addressPayload     `json:"billing_address"`
	PayPalOrderID  string             `json:"paypal_order_id"`
	CouponCode     string             `json:"coupon_code"`
}
