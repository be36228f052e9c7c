package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/lunchbox/pkg/access"
	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/children"
	"github.com/platinummonkey/lunchbox/pkg/contextkeys"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
)

var errNotImplemented = errors.New("not implemented")

type mockBillingService struct {
	handleWebhookFunc           func(ctx context.Context, payload []byte, signature string) (billing.WebhookResult, error)
	accessStatusFunc            func(ctx context.Context, userID string) (access.Status, error)
	createAccessFeeCheckoutFunc func(ctx context.Context, userID string) (*billing.CheckoutSession, error)
	createOrderCheckoutFunc     func(ctx context.Context, userID string, item billing.CheckoutItem) (*billing.CheckoutSession, error)
	confirmCheckoutFunc         func(ctx context.Context, userID, sessionID string, outcome billing.Outcome) (*billing.Payment, error)
}

func (m *mockBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookResult, error) {
	if m.handleWebhookFunc != nil {
		return m.handleWebhookFunc(ctx, payload, signature)
	}
	return billing.WebhookResult{}, errNotImplemented
}

func (m *mockBillingService) AccessStatus(ctx context.Context, userID string) (access.Status, error) {
	if m.accessStatusFunc != nil {
		return m.accessStatusFunc(ctx, userID)
	}
	return access.Status{}, errNotImplemented
}

func (m *mockBillingService) CreateAccessFeeCheckout(ctx context.Context, userID string) (*billing.CheckoutSession, error) {
	if m.createAccessFeeCheckoutFunc != nil {
		return m.createAccessFeeCheckoutFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *mockBillingService) CreateOrderCheckout(ctx context.Context, userID string, item billing.CheckoutItem) (*billing.CheckoutSession, error) {
	if m.createOrderCheckoutFunc != nil {
		return m.createOrderCheckoutFunc(ctx, userID, item)
	}
	return nil, errNotImplemented
}

func (m *mockBillingService) ConfirmCheckout(ctx context.Context, userID, sessionID string, outcome billing.Outcome) (*billing.Payment, error) {
	if m.confirmCheckoutFunc != nil {
		return m.confirmCheckoutFunc(ctx, userID, sessionID, outcome)
	}
	return nil, errNotImplemented
}

type mockOrderService struct {
	quoteFunc         func(ctx context.Context, parentID, childID, orderType, startDate string) (*orders.QuoteResult, error)
	createFunc        func(ctx context.Context, parentID string, req orders.CreateRequest) (*orders.Order, error)
	getFunc           func(ctx context.Context, parentID, orderID string) (*orders.Order, error)
	listForParentFunc func(ctx context.Context, parentID string) ([]*orders.Order, error)
	listAllFunc       func(ctx context.Context) ([]*orders.AdminOrder, error)
	countPerDayFunc   func(ctx context.Context, startDate, endDate string) ([]orders.DailyCount, error)
}

func (m *mockOrderService) Quote(ctx context.Context, parentID, childID, orderType, startDate string) (*orders.QuoteResult, error) {
	if m.quoteFunc != nil {
		return m.quoteFunc(ctx, parentID, childID, orderType, startDate)
	}
	return nil, errNotImplemented
}

func (m *mockOrderService) Create(ctx context.Context, parentID string, req orders.CreateRequest) (*orders.Order, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, parentID, req)
	}
	return nil, errNotImplemented
}

func (m *mockOrderService) Get(ctx context.Context, parentID, orderID string) (*orders.Order, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, parentID, orderID)
	}
	return nil, errNotImplemented
}

func (m *mockOrderService) ListForParent(ctx context.Context, parentID string) ([]*orders.Order, error) {
	if m.listForParentFunc != nil {
		return m.listForParentFunc(ctx, parentID)
	}
	return nil, errNotImplemented
}

func (m *mockOrderService) ListAll(ctx context.Context) ([]*orders.AdminOrder, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockOrderService) CountPerDay(ctx context.Context, startDate, endDate string) ([]orders.DailyCount, error) {
	if m.countPerDayFunc != nil {
		return m.countPerDayFunc(ctx, startDate, endDate)
	}
	return nil, errNotImplemented
}

type mockOffDayService struct {
	bulkCreateFunc      func(ctx context.Context, req offdays.BulkRequest) (offdays.BulkResult, error)
	deleteFunc          func(ctx context.Context, id string) error
	listClosedDatesFunc func(ctx context.Context, schoolID, startDate, endDate string) ([]calendar.Date, error)
}

func (m *mockOffDayService) BulkCreate(ctx context.Context, req offdays.BulkRequest) (offdays.BulkResult, error) {
	if m.bulkCreateFunc != nil {
		return m.bulkCreateFunc(ctx, req)
	}
	return offdays.BulkResult{}, errNotImplemented
}

func (m *mockOffDayService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *mockOffDayService) ListClosedDates(ctx context.Context, schoolID, startDate, endDate string) ([]calendar.Date, error) {
	if m.listClosedDatesFunc != nil {
		return m.listClosedDatesFunc(ctx, schoolID, startDate, endDate)
	}
	return nil, errNotImplemented
}

type mockChildService struct {
	listSchoolsFunc func(ctx context.Context) ([]children.School, error)
	createFunc      func(ctx context.Context, parentID string, req children.Request) (*children.Child, error)
	updateFunc      func(ctx context.Context, parentID, childID string, req children.Request) (*children.Child, error)
	deleteFunc      func(ctx context.Context, parentID, childID string) error
	getFunc         func(ctx context.Context, parentID, childID string) (*children.Child, error)
	listFunc        func(ctx context.Context, parentID string) ([]*children.Child, error)
}

func (m *mockChildService) ListSchools(ctx context.Context) ([]children.School, error) {
	if m.listSchoolsFunc != nil {
		return m.listSchoolsFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockChildService) Create(ctx context.Context, parentID string, req children.Request) (*children.Child, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, parentID, req)
	}
	return nil, errNotImplemented
}

func (m *mockChildService) Update(ctx context.Context, parentID, childID string, req children.Request) (*children.Child, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, parentID, childID, req)
	}
	return nil, errNotImplemented
}

func (m *mockChildService) Delete(ctx context.Context, parentID, childID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, parentID, childID)
	}
	return errNotImplemented
}

func (m *mockChildService) Get(ctx context.Context, parentID, childID string) (*children.Child, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, parentID, childID)
	}
	return nil, errNotImplemented
}

func (m *mockChildService) List(ctx context.Context, parentID string) ([]*children.Child, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, parentID)
	}
	return nil, errNotImplemented
}

// Test requests authenticate with "Authorization: Bearer <user>" or
// "Bearer admin:<user>"
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}
		principal := &auth.Principal{UserID: token, Role: auth.RoleParent}
		if id, isAdmin := strings.CutPrefix(token, "admin:"); isAdmin {
			principal = &auth.Principal{UserID: id, Role: auth.RoleAdmin}
		}
		ctx := contextkeys.WithAuth(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type testServices struct {
	billing  *mockBillingService
	orders   *mockOrderService
	offDays  *mockOffDayService
	children *mockChildService
}

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *testServices) {
	t.Helper()
	svcs := &testServices{
		billing:  &mockBillingService{},
		orders:   &mockOrderService{},
		offDays:  &mockOffDayService{},
		children: &mockChildService{},
	}
	if cfg.Auth == nil {
		cfg.Auth = fakeAuth
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	router := NewRouter(Services{
		Billing:  svcs.billing,
		Orders:   svcs.orders,
		OffDays:  svcs.offDays,
		Children: svcs.children,
	}, logger, cfg)
	return router, svcs
}

func doRequest(router http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
