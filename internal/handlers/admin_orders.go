package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/platform/auth"
	"github.com/nilecart/api/internal/platform/httpx"
	"github.com/nilecart/api/internal/platform/pagination"
	"github.com/nilecart/api/internal/services"
)

const (
	defaultAdminPageSize  = 50
	maxAdminPageSize      = 200
	defaultLowStockLimit  = 5
	maxAdminBodySize      = 8 * 1024
	reviewDecisionApprove = "approve"
	reviewDecisionReject  = "reject"
)

type transitionOrderRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type adminCancelRequest struct {
	Reason string `json:"reason"`
}

type reviewPaymentRequest struct {
	Decision string `json:"decision"`
}

// AdminOrderHandlers exposes back-office order operations. The routes sit
// behind service-to-service OIDC auth, so every caller is trusted staff.
type AdminOrderHandlers struct {
	orders   services.OrderService
	payments services.PaymentService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(orders services.OrderService, payments services.PaymentService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders, payments: payments}
}

// Routes registers the /admin endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Post("/orders/{orderID}/status", h.transitionStatus)
	r.Post("/orders/{orderID}:cancel", h.cancelOrder)
	r.Post("/orders/{orderID}/payments/{paymentID}:review", h.reviewPayment)
	r.Get("/inventory/low-stock", h.listLowStock)
}

func adminActorID(r *http.Request) string {
	if identity, ok := auth.ServiceIdentityFromContext(r.Context()); ok && identity != nil {
		if email := strings.TrimSpace(identity.Email); email != "" {
			return email
		}
		return strings.TrimSpace(identity.Subject)
	}
	return ""
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	var statuses []domain.OrderStatus
	for _, status := range parseFilterValues(query["status"]) {
		statuses = append(statuses, domain.OrderStatus(status))
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultAdminPageSize,
		MaxPageSize:     maxAdminPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.ListOrdersQuery{
		Access:    services.OrderAccess{Admin: true},
		Status:    statuses,
		DateRange: dateRange,
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminOrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	var req transitionOrderRequest
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if target == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.TransitionOrderCommand{
		OrderID:      orderID,
		TargetStatus: target,
		Reason:       strings.TrimSpace(req.Reason),
		ActorID:      adminActorID(r),
	})
	if err != nil {
		// Confirming an order re-checks stock inside the transaction; a
		// shortfall here is distinct from an intake-time rejection.
		var oos *services.OutOfStockError
		if errors.As(err, &oos) {
			httpx.WriteError(ctx, w, httpx.NewError("out_of_stock_confirmation", oos.Error(), http.StatusConflict).
				WithDetails(outOfStockDetails(oos)))
			return
		}
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	var req adminCancelRequest
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Access:  services.OrderAccess{Admin: true, UserID: adminActorID(r)},
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) reviewPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req reviewPaymentRequest
	if !decodeAdminBody(ctx, w, r, &req) {
		return
	}

	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if decision != reviewDecisionApprove && decision != reviewDecisionReject {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "decision must be approve or reject", http.StatusBadRequest))
		return
	}

	payment, err := h.payments.Review(ctx, services.ReviewPaymentCommand{
		OrderID:   strings.TrimSpace(chi.URLParam(r, "orderID")),
		PaymentID: strings.TrimSpace(chi.URLParam(r, "paymentID")),
		Approve:   decision == reviewDecisionApprove,
		ActorID:   adminActorID(r),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentPayload(payment))
}

func (h *AdminOrderHandlers) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	threshold := defaultLowStockLimit
	if raw := strings.TrimSpace(query.Get("threshold")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "threshold must be a non-negative integer", http.StatusBadRequest))
			return
		}
		threshold = parsed
	}
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultAdminPageSize,
		MaxPageSize:     maxAdminPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListLowStock(ctx, services.LowStockQuery{
		Threshold: threshold,
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]lowStockPayload, 0, len(page.Items))
	for _, level := range page.Items {
		items = append(items, lowStockPayload{
			ProductID: strings.TrimSpace(level.ProductID),
			Name:      strings.TrimSpace(level.Name),
			Available: level.Available,
			UpdatedAt: formatTime(level.UpdatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, lowStockResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func decodeAdminBody[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, dst *T) bool {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}
