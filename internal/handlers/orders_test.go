package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/snapedits/api/internal/domain"
	"github.com/snapedits/api/internal/platform/auth"
	"github.com/snapedits/api/internal/platform/pagination"
	"github.com/snapedits/api/internal/services"
)

type stubOrderService struct {
	confirmFunc      func(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error)
	cancelFunc       func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	getFunc          func(ctx context.Context, orderID, requesterID string) (services.Order, error)
	listByUserFunc   func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Order], error)
	listAllFunc      func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateStatusFunc func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	deleteFunc       func(ctx context.Context, orderID string) error
	refundFunc       func(ctx context.Context, orderID string) (services.Order, error)
	invoiceFileFunc  func(ctx context.Context, orderID, requesterID string) (string, error)
}

func (s *stubOrderService) ConfirmOrder(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, requesterID string) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID, requesterID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) ListByUser(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listByUserFunc != nil {
		return s.listByUserFunc(ctx, userID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) ListAll(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listAllFunc != nil {
		return s.listAllFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatusFunc != nil {
		return s.updateStatusFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) Delete(ctx context.Context, orderID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, orderID)
	}
	return nil
}

func (s *stubOrderService) RequestRefund(ctx context.Context, orderID string) (services.Order, error) {
	if s.refundFunc != nil {
		return s.refundFunc(ctx, orderID)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) InvoiceFile(ctx context.Context, orderID string, requesterID string) (string, error) {
	if s.invoiceFileFunc != nil {
		return s.invoiceFileFunc(ctx, orderID, requesterID)
	}
	return "", services.ErrOrderNotFound
}

func newOrderRouter(service services.OrderService) chi.Router {
	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func sampleConfirmedOrder() services.Order {
	return services.Order{
		ID:          "ord-1",
		OrderNumber: "SNP-1001",
		UserID:      "user-1",
		Items: []services.OrderLineItem{
			{ServiceID: "svc-retouch", ServiceName: "Photo Retouching", BasePrice: 1500, FinalPrice: 1500, Quantity: 2},
		},
		Subtotal:         3000,
		Total:            3000,
		Currency:         "USD",
		BillingAddress:   services.Address{FullName: "Jo Smith", Line1: "1 Main St", City: "Austin", Country: "US"},
		PayPalOrderID:    "pp-123",
		Status:           domain.OrderStatusPending,
		PaymentStatus:    domain.PaymentStatusCompleted,
		InvoiceNumber:    "SE-2026-1001",
		InvoiceURL:       "https://files.example.com/invoices/SE-2026-1001.pdf",
		ExpectedDelivery: time.Date(2026, 5, 17, 8, 0, 0, 0, time.UTC),
		CreatedAt:        time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestOrderHandlersConfirmOrder(t *testing.T) {
	var captured services.ConfirmOrderCommand
	service := &stubOrderService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleConfirmedOrder(), nil
		},
	}

	router := newOrderRouter(service)
	body := `{
		"items": [
			{"service_id": "svc-retouch", "service_name": "Photo Retouching", "base_price": 1500, "final_price": 1500, "quantity": 2}
		],
		"total": 3000,
		"billing_address": {"full_name": "Jo Smith", "line1": "1 Main St", "city": "Austin", "country": "US"},
		"paypal_order_id": "pp-123"
	}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), &auth.Identity{UID: "user-1", Email: "jo@example.com"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" || captured.UserEmail != "jo@example.com" {
		t.Fatalf("identity not propagated: %+v", captured)
	}
	if captured.PayPalOrderID != "pp-123" || captured.Total != 3000 || len(captured.Items) != 1 {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.BillingAddress.FullName != "Jo Smith" {
		t.Fatalf("unexpected billing address: %+v", captured.BillingAddress)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.OrderNumber != "SNP-1001" || resp.Order.InvoiceNumber != "SE-2026-1001" {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
	if resp.Order.PaymentStatus != "completed" {
		t.Fatalf("expected payment completed, got %q", resp.Order.PaymentStatus)
	}
}

func TestOrderHandlersConfirmOrderPaymentFailed(t *testing.T) {
	service := &stubOrderService{
		confirmFunc: func(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderPaymentFailed
		},
	}

	router := newOrderRouter(service)
	body := `{"items":[{"service_id":"svc-retouch","final_price":1500,"quantity":1}],"total":1500,"billing_address":{"full_name":"Jo","line1":"1 Main St","city":"Austin","country":"US"},"paypal_order_id":"pp-bad"}`
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "payment_failed" {
		t.Fatalf("unexpected error code %v", resp["error"])
	}
}

func TestOrderHandlersListOrdersPagination(t *testing.T) {
	pageToken, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{"2026-08-01T00:00:00Z"}})
	if err != nil {
		t.Fatalf("failed to encode page token: %v", err)
	}
	nextToken, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{"2026-08-02T00:00:00Z"}})
	if err != nil {
		t.Fatalf("failed to encode page token: %v", err)
	}

	service := &stubOrderService{
		listByUserFunc: func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			if pager.PageSize != 5 || pager.PageToken != pageToken {
				t.Fatalf("unexpected pager: %+v", pager)
			}
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{sampleConfirmedOrder()},
				NextPageToken: nextToken,
			}, nil
		},
	}

	router := newOrderRouter(service)
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders?page_size=5&page_token="+pageToken, nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.NextPageToken != nextToken {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOrderHandlersListOrdersRejectsBadPageToken(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders?page_token=!!!invalid!!!", nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersRejectsBadPageSize(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders?page_size=abc", nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, orderID, requesterID string) (services.Order, error) {
			if requesterID != "user-2" {
				t.Fatalf("unexpected requester %q", requesterID)
			}
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	router := newOrderRouter(service)
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil), &auth.Identity{UID: "user-2"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.OrderID != "ord-1" || cmd.RequesterID != "user-1" || cmd.Admin {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			order := sampleConfirmedOrder()
			order.Status = domain.OrderStatusCancelled
			order.Cancelled = true
			return order, nil
		},
	}

	router := newOrderRouter(service)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/orders/ord-1/cancel", nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "cancelled" || !resp.Order.Cancelled {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
}

func TestOrderHandlersDownloadInvoice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SE-2026-1001.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 invoice"), 0o644); err != nil {
		t.Fatalf("write invoice: %v", err)
	}

	service := &stubOrderService{
		invoiceFileFunc: func(ctx context.Context, orderID, requesterID string) (string, error) {
			if orderID != "ord-1" || requesterID != "user-1" {
				t.Fatalf("unexpected arguments %q %q", orderID, requesterID)
			}
			return path, nil
		},
	}

	router := newOrderRouter(service)
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders/ord-1/invoice", nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "SE-2026-1001.pdf") {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatalf("expected pdf bytes, got %q", rr.Body.String())
	}
}

func TestOrderHandlersDownloadInvoiceMissingFile(t *testing.T) {
	service := &stubOrderService{
		invoiceFileFunc: func(ctx context.Context, orderID, requesterID string) (string, error) {
			return filepath.Join(t.TempDir(), "missing.pdf"), nil
		},
	}

	router := newOrderRouter(service)
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/orders/ord-1/invoice", nil), &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
