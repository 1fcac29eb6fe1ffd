package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
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
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	maxOrderCancelBodySize = 4 * 1024
	maxProofBodySize       = 4 * 1024
)

type cancelOrderRequest struct {
	Reason string `json:"reason"`
	Email  string `json:"email"`
}

type proofUploadRequest struct {
	PaymentID   string `json:"payment_id"`
	ContentType string `json:"content_type"`
	Email       string `json:"email"`
}

type proofAttachRequest struct {
	PaymentID string `json:"payment_id"`
	ProofRef  string `json:"proof_ref"`
	Email     string `json:"email"`
}

type proofUploadResponse struct {
	UploadURL string `json:"upload_url"`
	ProofRef  string `json:"proof_ref"`
	ExpiresAt string `json:"expires_at"`
}

// OrderHandlers exposes order reads, cancellation, and the payment proof
// side-channel for buyers. Guests identify themselves with the email used at
// checkout.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments services.PaymentService
}

// NewOrderHandlers constructs buyer-facing order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService) *OrderHandlers {
	return &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalFirebaseAuth())
	}
	group.Get("/", h.listOrders)
	group.Get("/{orderID}", h.getOrder)
	group.Post("/{orderID}:cancel", h.cancelOrder)
	group.Get("/{orderID}/payments", h.listPayments)
	group.Post("/{orderID}/payment-proof", h.createProofUpload)
	group.Post("/{orderID}/payment-proof:attach", h.attachProof)
}

// accessFromRequest derives the caller's order access scope: authenticated
// identity first, otherwise the guest email supplied with the request.
func accessFromRequest(r *http.Request, bodyEmail string) services.OrderAccess {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && strings.TrimSpace(identity.UID) != "" {
		return services.OrderAccess{UserID: identity.UID, Email: identity.Email}
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		email = strings.TrimSpace(bodyEmail)
	}
	return services.OrderAccess{Email: email}
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	access := accessFromRequest(r, "")
	if access.UserID == "" && access.Email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication or guest email required", http.StatusUnauthorized))
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
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.ListOrdersQuery{
		Access:    access,
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, accessFromRequest(r, ""))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
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
		Access:  accessFromRequest(r, req.Email),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	payments, err := h.payments.ListPayments(ctx, orderID, accessFromRequest(r, ""))
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	items := make([]paymentPayload, 0, len(payments))
	for _, payment := range payments {
		items = append(items, buildPaymentPayload(payment))
	}
	writeJSONResponse(w, http.StatusOK, paymentListResponse{Items: items})
}

func (h *OrderHandlers) createProofUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	var req proofUploadRequest
	if !decodeProofBody(ctx, w, r, &req) {
		return
	}

	upload, err := h.payments.CreateProofUpload(ctx, services.ProofUploadCommand{
		OrderID:     orderID,
		PaymentID:   strings.TrimSpace(req.PaymentID),
		Access:      accessFromRequest(r, req.Email),
		ContentType: strings.TrimSpace(req.ContentType),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, proofUploadResponse{
		UploadURL: upload.UploadURL,
		ProofRef:  upload.ProofRef,
		ExpiresAt: formatTime(upload.ExpiresAt),
	})
}

func (h *OrderHandlers) attachProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	var req proofAttachRequest
	if !decodeProofBody(ctx, w, r, &req) {
		return
	}

	payment, err := h.payments.AttachProof(ctx, services.AttachProofCommand{
		OrderID:   orderID,
		PaymentID: strings.TrimSpace(req.PaymentID),
		Access:    accessFromRequest(r, req.Email),
		ProofRef:  strings.TrimSpace(req.ProofRef),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentPayload(payment))
}

func decodeProofBody[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, dst *T) bool {
	body, err := readLimitedBody(r, maxProofBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}
