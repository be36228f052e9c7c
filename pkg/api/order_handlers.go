package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/orders"
)

// OrderHandlers handles order HTTP requests
type OrderHandlers struct {
	orders  OrderService
	billing BillingService
}

// NewOrderHandlers creates a new OrderHandlers
func NewOrderHandlers(orderService OrderService, billingService BillingService) *OrderHandlers {
	return &OrderHandlers{
		orders:  orderService,
		billing: billingService,
	}
}

// RegisterRoutes registers the order read routes
func (h *OrderHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orders/quote", h.Quote).Methods("GET")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
}

// RegisterAdminRoutes registers the order overview routes
func (h *OrderHandlers) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/orders", h.ListAllOrders).Methods("GET")
	router.HandleFunc("/orders/daily-counts", h.CountOrdersPerDay).Methods("GET")
}

// RegisterCheckoutRoutes registers order creation, which opens a checkout
// session
func (h *OrderHandlers) RegisterCheckoutRoutes(router *mux.Router, limit Middleware) {
	router.Handle("/orders", limit(http.HandlerFunc(h.CreateOrder))).Methods("POST")
}

// CreateOrderResponse carries the new order and where to pay for it
type CreateOrderResponse struct {
	Order       *orders.Order `json:"order"`
	SessionID   string        `json:"sessionId"`
	CheckoutURL string        `json:"checkoutUrl"`
}

// Quote prices an order without placing it
func (h *OrderHandlers) Quote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	childID := httputil.ParseQueryString(r, "childId", "")
	orderType := httputil.ParseQueryString(r, "orderType", "")
	startDate := httputil.ParseQueryString(r, "startDate", "")
	if !httputil.RequireNonEmpty(w, childID, "childId") ||
		!httputil.RequireNonEmpty(w, orderType, "orderType") ||
		!httputil.RequireNonEmpty(w, startDate, "startDate") {
		return
	}

	quote, err := h.orders.Quote(r.Context(), userID, childID, orderType, startDate)
	if err != nil {
		writeError(w, r, err, "Failed to quote order")
		return
	}
	httputil.WriteSuccess(w, quote)
}

// CreateOrder places an order and opens its checkout session
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req orders.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	order, err := h.orders.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err, "Failed to create order")
		return
	}

	session, err := h.billing.CreateOrderCheckout(r.Context(), userID, orders.CheckoutItem(order))
	if err != nil {
		observability.FromContext(r.Context()).WithField("order_id", order.ID).
			WithError(err).Warn("Order created without checkout session")
		writeError(w, r, err, "Failed to create order checkout")
		return
	}

	httputil.WriteCreated(w, CreateOrderResponse{
		Order:       order,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}

// ListOrders returns the caller's orders, newest first
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.orders.ListForParent(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list orders")
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	httputil.WriteSuccess(w, list)
}

// GetOrder returns one of the caller's orders
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orderID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err, "Failed to load order")
		return
	}
	httputil.WriteSuccess(w, order)
}

// ListAllOrders returns every order with its child's name
func (h *OrderHandlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list orders")
		return
	}
	if list == nil {
		list = []*orders.AdminOrder{}
	}
	httputil.WriteSuccess(w, list)
}

// CountOrdersPerDay returns the number of orders covering each day of the
// start to end range
func (h *OrderHandlers) CountOrdersPerDay(w http.ResponseWriter, r *http.Request) {
	start := httputil.ParseQueryString(r, "start", "")
	end := httputil.ParseQueryString(r, "end", "")
	if !httputil.RequireNonEmpty(w, start, "start") || !httputil.RequireNonEmpty(w, end, "end") {
		return
	}

	counts, err := h.orders.CountPerDay(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err, "Failed to count orders")
		return
	}
	if counts == nil {
		counts = []orders.DailyCount{}
	}
	httputil.WriteSuccess(w, counts)
}
