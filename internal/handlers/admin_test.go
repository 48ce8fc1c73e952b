package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/services"
)

type stubNotificationService struct {
	notifyFunc   func(ctx context.Context, cmd services.NotifyAdminsCommand) error
	listFunc     func(ctx context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.Notification], error)
	markReadFunc func(ctx context.Context, cmd services.MarkNotificationReadCommand) error
}

func (s *stubNotificationService) NotifyAdmins(ctx context.Context, cmd services.NotifyAdminsCommand) error {
	if s.notifyFunc != nil {
		return s.notifyFunc(ctx, cmd)
	}
	return nil
}

func (s *stubNotificationService) List(ctx context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.Notification], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Notification]{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, cmd services.MarkNotificationReadCommand) error {
	if s.markReadFunc != nil {
		return s.markReadFunc(ctx, cmd)
	}
	return nil
}

type adminRouterDeps struct {
	catalog       services.CatalogService
	coupons       services.CouponService
	orders        services.OrderService
	notifications services.NotificationService
}

func newAdminRouter(deps adminRouterDeps) chi.Router {
	handler := NewAdminHandlers(nil, deps.catalog, deps.coupons, deps.orders, deps.notifications)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{UID: "admin-1", Email: "staff@example.com", Roles: []string{auth.RoleAdmin}}
}

func TestAdminHandlersCreateCoupon(t *testing.T) {
	var captured services.UpsertCouponCommand
	coupons := &stubCouponService{
		createFunc: func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			captured = cmd
			return services.Coupon{
				ID:           "cpn-1",
				Code:         "SAVE10",
				DiscountType: services.DiscountType("percentage"),
				Value:        10,
				ExpiresAt:    cmd.ExpiresAt,
			}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{coupons: coupons})
	body := `{"code":"save10","discount_type":"percentage","value":10,"min_cart_value":2000,"expires_at":"2026-12-31T00:00:00Z"}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body)), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Code != "save10" || captured.DiscountType != services.DiscountType("percentage") || captured.MinCartValue != 2000 {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if !captured.ExpiresAt.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry: %v", captured.ExpiresAt)
	}

	var resp couponResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Coupon.Code != "SAVE10" {
		t.Fatalf("unexpected coupon: %+v", resp.Coupon)
	}
}

func TestAdminHandlersCreateCouponConflict(t *testing.T) {
	coupons := &stubCouponService{
		createFunc: func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			return services.Coupon{}, services.ErrCouponConflict
		},
	}

	router := newAdminRouter(adminRouterDeps{coupons: coupons})
	body := `{"code":"SAVE10","discount_type":"percentage","value":10}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/admin/coupons", strings.NewReader(body)), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersUpdateCouponByID(t *testing.T) {
	coupons := &stubCouponService{
		updateFunc: func(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			if cmd.CouponID != "cpn-1" {
				t.Fatalf("unexpected coupon id %q", cmd.CouponID)
			}
			return services.Coupon{ID: "cpn-1", Code: "SAVE15", Value: 15}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{coupons: coupons})
	body := `{"code":"SAVE15","discount_type":"percentage","value":15}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPut, "/admin/coupons/cpn-1", strings.NewReader(body)), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersDeleteCoupon(t *testing.T) {
	deleted := ""
	coupons := &stubCouponService{
		deleteFunc: func(ctx context.Context, couponID string) error {
			deleted = couponID
			return nil
		},
	}

	router := newAdminRouter(adminRouterDeps{coupons: coupons})
	req := withTestIdentity(httptest.NewRequest(http.MethodDelete, "/admin/coupons/cpn-1", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if deleted != "cpn-1" {
		t.Fatalf("expected delete of cpn-1, got %q", deleted)
	}
}

func TestAdminHandlersUpsertCategory(t *testing.T) {
	var captured services.UpsertCategoryCommand
	catalog := &stubCatalogService{
		upsertCategoryFunc: func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
			captured = cmd
			return cmd.Category, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{catalog: catalog})
	body := `{
		"name": "Photo Editing",
		"slug": "photo-editing",
		"sort_order": 1,
		"subcategories": [
			{"id": "sub-portrait", "name": "Portrait", "slug": "portrait", "services": [
				{"id": "svc-retouch", "name": "Photo Retouching", "slug": "retouching", "base_price": 1500, "currency": "usd"}
			]}
		]
	}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPut, "/admin/catalog/categories/cat-photo", strings.NewReader(body)), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Category.ID != "cat-photo" {
		t.Fatalf("category id must come from the URL, got %q", captured.Category.ID)
	}
	if captured.ActorID != "admin-1" {
		t.Fatalf("expected actor admin-1, got %q", captured.ActorID)
	}
	if len(captured.Category.Subcategories) != 1 || len(captured.Category.Subcategories[0].Services) != 1 {
		t.Fatalf("unexpected category: %+v", captured.Category)
	}
	if captured.Category.Subcategories[0].Services[0].Currency != "USD" {
		t.Fatalf("expected normalised currency, got %+v", captured.Category.Subcategories[0].Services[0])
	}
}

func TestAdminHandlersDeleteCategoryNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		deleteCategoryFunc: func(ctx context.Context, categoryID string) error {
			return services.ErrCatalogNotFound
		},
	}

	router := newAdminRouter(adminRouterDeps{catalog: catalog})
	req := withTestIdentity(httptest.NewRequest(http.MethodDelete, "/admin/catalog/categories/cat-missing", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersListOrdersWithFilters(t *testing.T) {
	orders := &stubOrderService{
		listAllFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			if filter.UserID != "user-1" {
				t.Fatalf("unexpected user filter %q", filter.UserID)
			}
			if filter.Status == nil || *filter.Status != domain.OrderStatusProcessing {
				t.Fatalf("unexpected status filter %v", filter.Status)
			}
			if filter.PaymentStatus == nil || *filter.PaymentStatus != domain.PaymentStatusCompleted {
				t.Fatalf("unexpected payment filter %v", filter.PaymentStatus)
			}
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleConfirmedOrder()}}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{orders: orders})
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/admin/orders?user_id=user-1&status=processing&payment_status=completed", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersListOrdersRejectsUnknownStatus(t *testing.T) {
	router := newAdminRouter(adminRouterDeps{orders: &stubOrderService{}})
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipped", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersUpdateOrderStatus(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	orders := &stubOrderService{
		updateStatusFunc: func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
			captured = cmd
			order := sampleConfirmedOrder()
			order.Status = cmd.Status
			order.CompletionPercentage = 60
			return order, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{orders: orders})
	body := `{"status":"processing","completion_percentage":60}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord-1/status", strings.NewReader(body)), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.CompletionPercentage == nil || *captured.CompletionPercentage != 60 {
		t.Fatalf("unexpected completion percentage: %v", captured.CompletionPercentage)
	}
}

func TestAdminHandlersRefundOrder(t *testing.T) {
	orders := &stubOrderService{
		refundFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "ord-1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			order := sampleConfirmedOrder()
			order.PaymentStatus = domain.PaymentStatusRefunded
			return order, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{orders: orders})
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/admin/orders/ord-1/refund", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.PaymentStatus != "refunded" {
		t.Fatalf("expected refunded, got %q", resp.Order.PaymentStatus)
	}
}

func TestAdminHandlersDeleteOrder(t *testing.T) {
	deleted := ""
	orders := &stubOrderService{
		deleteFunc: func(ctx context.Context, orderID string) error {
			deleted = orderID
			return nil
		},
	}

	router := newAdminRouter(adminRouterDeps{orders: orders})
	req := withTestIdentity(httptest.NewRequest(http.MethodDelete, "/admin/orders/ord-1", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if deleted != "ord-1" {
		t.Fatalf("expected delete of ord-1, got %q", deleted)
	}
}

func TestAdminHandlersListNotifications(t *testing.T) {
	notifications := &stubNotificationService{
		listFunc: func(ctx context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.Notification], error) {
			if filter.AdminID != "admin-1" {
				t.Fatalf("expected the caller's inbox, got %q", filter.AdminID)
			}
			if !filter.UnreadOnly {
				t.Fatalf("expected unread_only filter")
			}
			return domain.CursorPage[services.Notification]{
				Items: []services.Notification{
					{
						ID:      "ntf-1",
						AdminID: "admin-1",
						Type:    domain.NotificationTypeOrderPlaced,
						Message: "New order SNP-1001 placed",
						Ref:     services.NotificationRef{Kind: domain.ReferenceKindOrder, ID: "ord-1"},
					},
				},
			}, nil
		},
	}

	router := newAdminRouter(adminRouterDeps{notifications: notifications})
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/admin/notifications?unread_only=true", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp notificationListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(resp.Notifications))
	}
	if resp.Notifications[0].Type != "order_placed" || resp.Notifications[0].RefID != "ord-1" {
		t.Fatalf("unexpected notification: %+v", resp.Notifications[0])
	}
}

func TestAdminHandlersMarkNotificationRead(t *testing.T) {
	var captured services.MarkNotificationReadCommand
	notifications := &stubNotificationService{
		markReadFunc: func(ctx context.Context, cmd services.MarkNotificationReadCommand) error {
			captured = cmd
			return nil
		},
	}

	router := newAdminRouter(adminRouterDeps{notifications: notifications})
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/admin/notifications/ntf-1/read", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.AdminID != "admin-1" || captured.NotificationID != "ntf-1" {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestAdminHandlersMarkNotificationReadNotFound(t *testing.T) {
	notifications := &stubNotificationService{
		markReadFunc: func(ctx context.Context, cmd services.MarkNotificationReadCommand) error {
			return services.ErrNotificationNotFound
		},
	}

	router := newAdminRouter(adminRouterDeps{notifications: notifications})
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/admin/notifications/ntf-9/read", nil), adminIdentity())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
