package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/observability"
)

// maxWebhookBytes bounds a webhook delivery body
const maxWebhookBytes = 1 << 20

// BillingHandlers handles payment and access HTTP requests
type BillingHandlers struct {
	billing BillingService
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(billingService BillingService) *BillingHandlers {
	return &BillingHandlers{billing: billingService}
}

// RegisterWebhookRoutes registers the unauthenticated provider callback
func (h *BillingHandlers) RegisterWebhookRoutes(router *mux.Router, limit Middleware) {
	router.Handle("/stripe-webhook", limit(http.HandlerFunc(h.HandleWebhook))).Methods("POST")
}

// RegisterRoutes registers the authenticated billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me/access", h.GetAccessStatus).Methods("GET")
}

// RegisterCheckoutRoutes registers the routes that open or settle checkout
// sessions
func (h *BillingHandlers) RegisterCheckoutRoutes(router *mux.Router, limit Middleware) {
	router.Handle("/checkout/access-fee", limit(http.HandlerFunc(h.CreateAccessFeeCheckout))).Methods("POST")
	router.Handle("/checkout/confirm", limit(http.HandlerFunc(h.ConfirmCheckout))).Methods("POST")
}

// ConfirmCheckoutRequest is sent by the success and cancel pages
type ConfirmCheckoutRequest struct {
	SessionID string          `json:"sessionId" validate:"required"`
	Outcome   billing.Outcome `json:"outcome" validate:"required,oneof=success cancel"`
}

// HandleWebhook verifies and applies a provider event
func (h *BillingHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	signature := r.Header.Get(billing.SignatureHeader)
	if signature == "" {
		httputil.WriteBadRequest(w, "missing "+billing.SignatureHeader+" header")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	result, err := h.billing.HandleWebhook(r.Context(), payload, signature)
	if errors.Is(err, apperrors.ErrInvalidInput) {
		logger.WithError(err).Warn("Rejected webhook delivery")
		httputil.WriteJSON(w, http.StatusBadRequest, billing.WebhookResult{Success: false})
		return
	}
	if err != nil {
		// transient; Stripe retries the delivery
		logger.WithError(err).Error("Failed to process webhook")
		httputil.WriteJSON(w, http.StatusInternalServerError, billing.WebhookResult{Success: false})
		return
	}

	// unprocessable events are acknowledged so they are not redelivered
	httputil.WriteSuccess(w, result)
}

// GetAccessStatus returns the caller's access window
func (h *BillingHandlers) GetAccessStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.billing.AccessStatus(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to load access status")
		return
	}
	httputil.WriteSuccess(w, status)
}

// CreateAccessFeeCheckout opens a checkout session for the annual access fee
func (h *BillingHandlers) CreateAccessFeeCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	session, err := h.billing.CreateAccessFeeCheckout(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to create access fee checkout")
		return
	}
	httputil.WriteCreated(w, session)
}

// ConfirmCheckout applies the page the parent returned to
func (h *BillingHandlers) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req ConfirmCheckoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	payment, err := h.billing.ConfirmCheckout(r.Context(), userID, req.SessionID, req.Outcome)
	if err != nil {
		writeError(w, r, err, "Failed to confirm checkout")
		return
	}
	httputil.WriteSuccess(w, payment)
}
