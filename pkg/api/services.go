package api

import (
	"context"

	"github.com/platinummonkey/lunchbox/pkg/access"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/children"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
)

// BillingService is the part of billing.Service the handlers call
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookResult, error)
	AccessStatus(ctx context.Context, userID string) (access.Status, error)
	CreateAccessFeeCheckout(ctx context.Context, userID string) (*billing.CheckoutSession, error)
	CreateOrderCheckout(ctx context.Context, userID string, item billing.CheckoutItem) (*billing.CheckoutSession, error)
	ConfirmCheckout(ctx context.Context, userID, sessionID string, outcome billing.Outcome) (*billing.Payment, error)
}

// OrderService is the part of orders.Service the handlers call
type OrderService interface {
	Quote(ctx context.Context, parentID, childID, orderType, startDate string) (*orders.QuoteResult, error)
	Create(ctx context.Context, parentID string, req orders.CreateRequest) (*orders.Order, error)
	Get(ctx context.Context, parentID, orderID string) (*orders.Order, error)
	ListForParent(ctx context.Context, parentID string) ([]*orders.Order, error)
	ListAll(ctx context.Context) ([]*orders.AdminOrder, error)
	CountPerDay(ctx context.Context, startDate, endDate string) ([]orders.DailyCount, error)
}

// ChildService is the part of children.Service the handlers call
type ChildService interface {
	ListSchools(ctx context.Context) ([]children.School, error)
	Create(ctx context.Context, parentID string, req children.Request) (*children.Child, error)
	Update(ctx context.Context, parentID, childID string, req children.Request) (*children.Child, error)
	Delete(ctx context.Context, parentID, childID string) error
	Get(ctx context.Context, parentID, childID string) (*children.Child, error)
	List(ctx context.Context, parentID string) ([]*children.Child, error)
}

// OffDayService is the part of offdays.Service the handlers call
type OffDayService interface {
	BulkCreate(ctx context.Context, req offdays.BulkRequest) (offdays.BulkResult, error)
	Delete(ctx context.Context, id string) error
	ListClosedDates(ctx context.Context, schoolID, startDate, endDate string) ([]calendar.Date, error)
}

var (
	_ BillingService = (*billing.Service)(nil)
	_ OrderService   = (*orders.Service)(nil)
	_ OffDayService  = (*offdays.Service)(nil)
	_ ChildService   = (*children.Service)(nil)
)
