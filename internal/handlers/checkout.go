package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/platform/auth"
	"github.com/nilecart/api/internal/platform/httpx"
	"github.com/nilecart/api/internal/services"
)

const maxCheckoutRequestBody = 32 * 1024

// CheckoutHandlers exposes order intake for guests and authenticated buyers.
type CheckoutHandlers struct {
	authn     *auth.Authenticator
	checkout  services.CheckoutService
	sanitizer *bluemonday.Policy
	limiter   rateLimiter
}

// CheckoutOption customises checkout handler behaviour.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimiter guards intake with a per-client rate limiter.
func WithCheckoutRateLimiter(limiter rateLimiter) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = limiter
	}
}

// WithCheckoutRateLimit installs a fixed-window limiter allowing perMinute
// intake attempts per client. Non-positive values disable limiting.
func WithCheckoutRateLimit(perMinute int) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newSimpleRateLimiter(perMinute, time.Minute, nil)
	}
}

// NewCheckoutHandlers constructs intake handlers. Guest free-text fields are
// stripped of markup before they reach the service layer.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		authn:     authn,
		checkout:  checkout,
		sanitizer: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the intake endpoint on the orders group.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalFirebaseAuth())
	}
	group.Post("/", h.createOrder)
}

type createOrderRequest struct {
	Items            []orderItemRequest   `json:"items"`
	Guest            *guestRequest        `json:"guest"`
	Address          addressRequest       `json:"address"`
	PaymentMethod    string               `json:"payment_method"`
	DiscountCode     string               `json:"discount_code"`
	ShippingMethodID string               `json:"shipping_method_id"`
	CityID           string               `json:"city_id"`
	Notes            string               `json:"notes"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type guestRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type addressRequest struct {
	Kind       string `json:"kind"`
	Freeform   string `json:"freeform"`
	Street     string `json:"street"`
	Apartment  string `json:"apartment"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (h *CheckoutHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		Lines:            make([]services.QuoteLine, 0, len(req.Items)),
		DiscountCode:     strings.TrimSpace(req.DiscountCode),
		PaymentMethod:    domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		ShippingMethodID: strings.TrimSpace(req.ShippingMethodID),
		CityID:           strings.TrimSpace(req.CityID),
		Notes:            h.clean(req.Notes),
		Locale:           domain.ResolveLocale(r.Header.Get("Accept-Language")),
		Address: services.AddressInput{
			Kind:       domain.AddressKind(strings.ToLower(strings.TrimSpace(req.Address.Kind))),
			Freeform:   h.clean(req.Address.Freeform),
			Street:     h.clean(req.Address.Street),
			Apartment:  h.clean(req.Address.Apartment),
			City:       h.clean(req.Address.City),
			PostalCode: strings.TrimSpace(req.Address.PostalCode),
			Country:    strings.TrimSpace(req.Address.Country),
		},
	}
	for _, item := range req.Items {
		cmd.Lines = append(cmd.Lines, services.QuoteLine{
			ProductID: strings.TrimSpace(item.ProductID),
			Color:     strings.TrimSpace(item.Color),
			Size:      strings.TrimSpace(item.Size),
			Quantity:  item.Quantity,
		})
	}

	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		cmd.UserID = identity.UID
		cmd.UserEmail = identity.Email
	} else if req.Guest != nil {
		cmd.Guest = &services.GuestContactInput{
			Name:  h.clean(req.Guest.Name),
			Email: strings.TrimSpace(req.Guest.Email),
			Phone: strings.TrimSpace(req.Guest.Phone),
		}
	}

	result, err := h.checkout.CreateOrder(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order:   buildOrderPayload(result.Order),
		Payment: buildPaymentPayload(result.Payment),
	})
}

func (h *CheckoutHandlers) clean(value string) string {
	if h.sanitizer == nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(h.sanitizer.Sanitize(value))
}

func clientKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && strings.TrimSpace(identity.UID) != "" {
		return identity.UID
	}
	return strings.TrimSpace(r.RemoteAddr)
}
