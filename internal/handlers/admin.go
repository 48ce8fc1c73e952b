package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/platform/httpx"
	"github.com/snapedits/api/internal/services"
)

// AdminHandlers exposes the staff-only management surface: coupons, catalog
// maintenance, order administration, and the notification inbox.
type AdminHandlers struct {
	authn         *auth.Authenticator
	catalog       services.CatalogService
	coupons       services.CouponService
	orders        services.OrderService
	notifications services.NotificationService
}

const maxAdminBodySize = 256 * 1024

// NewAdminHandlers constructs handlers for the /admin route group.
func NewAdminHandlers(
	authn *auth.Authenticator,
	catalog services.CatalogService,
	coupons services.CouponService,
	orders services.OrderService,
	notifications services.NotificationService,
) *AdminHandlers {
	return &AdminHandlers{
		authn:         authn,
		catalog:       catalog,
		coupons:       coupons,
		orders:        orders,
		notifications: notifications,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin, auth.RoleStaff))
	}

	r.Get("/coupons", h.listCoupons)
	r.Post("/coupons", h.createCoupon)
	r.Put("/coupons/{couponId}", h.updateCoupon)
	r.Delete("/coupons/{couponId}", h.deleteCoupon)

	r.Put("/catalog/categories/{categoryId}", h.upsertCategory)
	r.Delete("/catalog/categories/{categoryId}", h.deleteCategory)

	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderId}/status", h.updateOrderStatus)
	r.Post("/orders/{orderId}/refund", h.refundOrder)
	r.Delete("/orders/{orderId}", h.deleteOrder)

	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/{notificationId}/read", h.markNotificationRead)
}

// Coupons ---------------------------------------------------------------------

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	coupons, err := h.coupons.ListCoupons(ctx)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	payload := couponsResponse{Coupons: make([]couponPayload, 0, len(coupons))}
	for _, coupon := range coupons {
		payload.Coupons = append(payload.Coupons, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, "")
}

func (h *AdminHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, chi.URLParam(r, "couponId"))
}

func (h *AdminHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request, couponID string) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertCouponCommand{
		CouponID:     couponID,
		Code:         req.Code,
		DiscountType: services.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		Value:        req.Value,
		MinCartValue: req.MinCartValue,
		MaxUses:      req.MaxUses,
	}
	if trimmed := strings.TrimSpace(req.ExpiresAt); trimmed != "" {
		expires, parseErr := parseRFC3339(trimmed)
		if parseErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expires_at must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.ExpiresAt = expires
	}

	var coupon services.Coupon
	if couponID == "" {
		coupon, err = h.coupons.CreateCoupon(ctx, cmd)
	} else {
		coupon, err = h.coupons.UpdateCoupon(ctx, cmd)
	}
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if couponID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.coupons.DeleteCoupon(ctx, chi.URLParam(r, "couponId")); err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// Catalog ---------------------------------------------------------------------

func (h *AdminHandlers) upsertCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertCategoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	actorID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		actorID = identity.UID
	}

	category := buildCategoryFromRequest(req)
	category.ID = strings.TrimSpace(chi.URLParam(r, "categoryId"))

	saved, err := h.catalog.UpsertCategory(ctx, services.UpsertCategoryCommand{
		Category: category,
		ActorID:  actorID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(saved)})
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "categoryId")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// Orders ----------------------------------------------------------------------

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parseListPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID:     strings.TrimSpace(r.URL.Query().Get("user_id")),
		Pagination: pager,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(strings.ToLower(raw))
		if !isValidOrderStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
			return
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status := domain.PaymentStatus(strings.ToLower(raw))
		if !isValidPaymentStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown payment status", http.StatusBadRequest))
			return
		}
		filter.PaymentStatus = &status
	}

	page, err := h.orders.ListAll(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:              chi.URLParam(r, "orderId"),
		Status:               services.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		CompletionPercentage: req.CompletionPercentage,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.RequestRefund(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.orders.Delete(ctx, chi.URLParam(r, "orderId")); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// Notifications ---------------------------------------------------------------

func (h *AdminHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireNotificationIdentity(ctx, w)
	if !ok {
		return
	}

	pager, err := parseListPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.notifications.List(ctx, services.NotificationListFilter{
		AdminID:    identity.UID,
		UnreadOnly: strings.EqualFold(r.URL.Query().Get("unread_only"), "true"),
		Pagination: pager,
	})
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	resp := notificationListResponse{
		Notifications: make([]notificationPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, n := range page.Items {
		resp.Notifications = append(resp.Notifications, buildNotificationPayload(n))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminHandlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireNotificationIdentity(ctx, w)
	if !ok {
		return
	}

	err := h.notifications.MarkRead(ctx, services.MarkNotificationReadCommand{
		AdminID:        identity.UID,
		NotificationID: chi.URLParam(r, "notificationId"),
	})
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "read"})
}

func (h *AdminHandlers) requireNotificationIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to process notification request", http.StatusInternalServerError))
	}
}

func isValidOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func isValidPaymentStatus(status domain.PaymentStatus) bool {
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusCompleted, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
		return true
	}
	return false
}

func buildCategoryFromRequest(req upsertCategoryRequest) services.Category {
	category := services.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.TrimSpace(req.Slug),
		Description: strings.TrimSpace(req.Description),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		SortOrder:   req.SortOrder,
	}
	for _, sub := range req.Subcategories {
		entry := services.Subcategory{
			ID:   strings.TrimSpace(sub.ID),
			Name: strings.TrimSpace(sub.Name),
			Slug: strings.TrimSpace(sub.Slug),
		}
		for _, svc := range sub.Services {
			service := domain.CatalogService{
				ID:           strings.TrimSpace(svc.ID),
				Name:         strings.TrimSpace(svc.Name),
				Slug:         strings.TrimSpace(svc.Slug),
				Description:  strings.TrimSpace(svc.Description),
				FeatureImage: strings.TrimSpace(svc.FeatureImage),
				BasePrice:    svc.BasePrice,
				Currency:     strings.ToUpper(strings.TrimSpace(svc.Currency)),
				Features:     svc.Features,
			}
			for _, vt := range svc.VariationTypes {
				variation := services.VariationType{
					Name:     strings.TrimSpace(vt.Name),
					Required: vt.Required,
				}
				for _, opt := range vt.Options {
					variation.Options = append(variation.Options, services.VariationOption{
						ID:   strings.TrimSpace(opt.ID),
						Name: strings.TrimSpace(opt.Name),
					})
				}
				service.VariationTypes = append(service.VariationTypes, variation)
			}
			for _, combo := range svc.PriceCombinations {
				service.PriceCombinations = append(service.PriceCombinations, services.PriceCombination{
					Options: combo.Options,
					Price:   combo.Price,
				})
			}
			entry.Services = append(entry.Services, service)
		}
		category.Subcategories = append(category.Subcategories, entry)
	}
	return category
}

type couponsResponse struct {
	Coupons []couponPayload `json:"coupons"`
}

type couponResponse struct {
	Coupon couponPayload `json:"coupon"`
}

type upsertCouponRequest struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Value        int64  `json:"value"`
	MinCartValue int64  `json:"min_cart_value"`
	MaxUses      *int64 `json:"max_uses"`
	ExpiresAt    string `json:"expires_at"`
}

type categoryResponse struct {
	Category categoryPayload `json:"category"`
}

type upsertCategoryRequest struct {
	Name          string               `json:"name"`
	Slug          string               `json:"slug"`
	Description   string               `json:"description"`
	ImageURL      string               `json:"image_url"`
	SortOrder     int                  `json:"sort_order"`
	Subcategories []subcategoryPayload `json:"subcategories"`
}

type updateOrderStatusRequest struct {
	Status               string `json:"status"`
	CompletionPercentage *int   `json:"completion_percentage"`
}

type notificationListResponse struct {
	Notifications []notificationPayload `json:"notifications"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	RefKind   string `json:"ref_kind,omitempty"`
	RefID     string `json:"ref_id,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildNotificationPayload(n services.Notification) notificationPayload {
	payload := notificationPayload{
		ID:      n.ID,
		Type:    string(n.Type),
		Message: n.Message,
		RefKind: string(n.Ref.Kind),
		RefID:   n.Ref.ID,
		Read:    n.Read,
	}
	if !n.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(n.CreatedAt)
	}
	return payload
}
