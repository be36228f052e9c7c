package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/async"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/notify"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
)

const (
	deliveryUpdateWorkers = 4
	deliveryUpdateTimeout = 10 * time.Second
	maxCountDays          = 366
)

// OffDaySource returns the explicit off-days of a school in a range
type OffDaySource interface {
	OffDaySet(ctx context.Context, schoolID string, start, end calendar.Date) (calendar.OffDaySet, error)
}

// Service places orders and keeps their delivery status current
type Service struct {
	store   Store
	offDays OffDaySource
	mailer  notify.Mailer
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates an order service. metrics may be nil.
func NewService(store Store, offDays OffDaySource, mailer notify.Mailer, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		offDays: offDays,
		mailer:  mailer,
		logger:  logger,
		metrics: metrics,
	}
}

// ownedChild loads a child and checks it belongs to parentID
func (s *Service) ownedChild(ctx context.Context, parentID, childID string) (*Child, error) {
	if childID == "" {
		return nil, apperrors.InvalidInput("childId is required")
	}
	child, err := s.store.GetChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child.ParentID != parentID {
		return nil, apperrors.PermissionDenied("You do not have permission to create an order for this child")
	}
	return child, nil
}

// resolveWindow parses the order dates. An omitted end date is derived
// from the order type; a supplied one must match the derived one.
func resolveWindow(orderType pricing.OrderType, startDate, endDate string) (calendar.Date, calendar.Date, error) {
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	derived, err := orderType.EndDate(start)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	if endDate == "" {
		return start, derived, nil
	}

	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	if start.After(end) {
		return calendar.Date{}, calendar.Date{}, apperrors.InvalidInput("Start date must be before or equal to end date")
	}
	if !end.Equal(derived) {
		return calendar.Date{}, calendar.Date{}, apperrors.InvalidInput("a %s starting %s ends on %s, not %s", orderType.Label(), start, derived, end)
	}
	return start, end, nil
}

// price counts the billable days of a school in a window and prices them
func (s *Service) price(ctx context.Context, schoolID string, orderType pricing.OrderType, start, end calendar.Date) (*QuoteResult, error) {
	offDays, err := s.offDays.OffDaySet(ctx, schoolID, start, end)
	if err != nil {
		return nil, err
	}
	dates := calendar.BillableDates(start, end, offDays)
	quote, err := pricing.PriceForOrder(orderType, len(dates))
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		OrderType:      orderType,
		StartDate:      start,
		EndDate:        end,
		BillableDates:  dates,
		Quote:          quote,
		TotalCents:     quote.TotalCents(),
		FormattedPrice: pricing.FormatCents(quote.TotalCents()),
	}, nil
}

// Quote prices an order without placing it
func (s *Service) Quote(ctx context.Context, parentID, childID, orderType, startDate string) (*QuoteResult, error) {
	t, err := pricing.ParseOrderType(orderType)
	if err != nil {
		return nil, err
	}
	start, end, err := resolveWindow(t, startDate, "")
	if err != nil {
		return nil, err
	}
	child, err := s.ownedChild(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, child.SchoolID, t, start, end)
}

// Create validates and stores a pending order. The billable days and price
// are frozen on the order.
func (s *Service) Create(ctx context.Context, parentID string, req CreateRequest) (*Order, error) {
	t, err := pricing.ParseOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	start, end, err := resolveWindow(t, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	prefs, err := normalizePreferences(req.Preferences)
	if err != nil {
		return nil, err
	}
	child, err := s.ownedChild(ctx, parentID, req.ChildID)
	if err != nil {
		return nil, err
	}

	q, err := s.price(ctx, child.SchoolID, t, start, end)
	if err != nil {
		return nil, err
	}
	if q.Quote.BillableDays == 0 {
		return nil, apperrors.InvalidInput("no school days between %s and %s", start, end)
	}

	o := &Order{
		ID:             uuid.NewString(),
		ParentID:       parentID,
		ChildID:        child.ID,
		OrderType:      t,
		StartDate:      start,
		EndDate:        end,
		PriceCents:     q.TotalCents,
		BillableDays:   q.Quote.BillableDays,
		Preferences:    prefs,
		PaymentStatus:  billing.PaymentStatusPending,
		DeliveryStatus: DeliveryOrdered,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.WithLabelValues(string(t)).Inc()
	}
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"order_id":      o.ID,
		"order_type":    string(t),
		"billable_days": o.BillableDays,
		"price_cents":   o.PriceCents,
	}).Info("Order created")
	return o, nil
}

func normalizePreferences(p Preferences) (Preferences, error) {
	p.Notes = strings.TrimSpace(p.Notes)
	if utf8.RuneCountInString(p.Notes) > maxNotesLength {
		return Preferences{}, apperrors.InvalidInput("Notes must be %d characters or less", maxNotesLength)
	}
	p.Allergies = strings.TrimSpace(p.Allergies)
	if utf8.RuneCountInString(p.Allergies) > maxAllergiesLength {
		return Preferences{}, apperrors.InvalidInput("Allergies description must be %d characters or less", maxAllergiesLength)
	}
	if !p.BreadType.Valid() {
		return Preferences{}, apperrors.InvalidInput("unknown bread type: %q", string(p.BreadType))
	}
	return p, nil
}

// CheckoutItem describes o for the payment provider
func CheckoutItem(o *Order) billing.CheckoutItem {
	return billing.CheckoutItem{
		OrderID:     o.ID,
		AmountCents: o.PriceCents,
		Description: billing.OrderDescription(o.OrderType, o.StartDate, o.EndDate, o.BillableDays),
	}
}

// Get returns an order owned by parentID
func (s *Service) Get(ctx context.Context, parentID, orderID string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ParentID != parentID {
		return nil, apperrors.PermissionDenied("Order does not belong to this user")
	}
	return o, nil
}

// ListForParent returns every order of a parent
func (s *Service) ListForParent(ctx context.Context, parentID string) ([]*Order, error) {
	return s.store.ListByParent(ctx, parentID)
}

// ListAll returns every order with its child's name
func (s *Service) ListAll(ctx context.Context) ([]*AdminOrder, error) {
	return s.store.ListAllWithChildNames(ctx)
}

// CountPerDay counts the orders covering each day of an inclusive range
func (s *Service) CountPerDay(ctx context.Context, startDate, endDate string) ([]DailyCount, error) {
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, apperrors.InvalidInput("startDate must be before or equal to endDate")
	}
	if end.After(start.AddDays(maxCountDays - 1)) {
		return nil, apperrors.InvalidInput("date range must not exceed %d days", maxCountDays)
	}
	return s.store.CountPerDay(ctx, start, end)
}

type deliveryUpdate struct {
	orderID string
	status  DeliveryStatus
}

// UpdateDeliveryStatuses moves every ordered or in-progress order to the
// status it has on today. Only changed statuses are written; a failed write
// does not stop the others.
func (s *Service) UpdateDeliveryStatuses(ctx context.Context, today calendar.Date) (DeliveryUpdateResult, error) {
	result := DeliveryUpdateResult{ByStatus: map[DeliveryStatus]int{}}

	orders, err := s.store.ListUndelivered(ctx)
	if err != nil {
		return result, err
	}
	result.Scanned = len(orders)

	var updates []deliveryUpdate
	for _, o := range orders {
		if !NeedsDeliveryUpdate(o) {
			continue
		}
		next := NextDeliveryStatus(o, today)
		if next != o.DeliveryStatus {
			updates = append(updates, deliveryUpdate{orderID: o.ID, status: next})
		}
	}

	var (
		mu      sync.Mutex
		written = map[string]bool{}
	)
	errs := async.Batch(ctx, updates, deliveryUpdateWorkers, "delivery status update", deliveryUpdateTimeout,
		func(ctx context.Context, u deliveryUpdate) error {
			if err := s.store.SetDeliveryStatus(ctx, u.orderID, u.status); err != nil {
				return fmt.Errorf("order %s: %w", u.orderID, err)
			}
			mu.Lock()
			written[u.orderID] = true
			mu.Unlock()
			return nil
		})

	for _, err := range errs {
		s.logger.WithError(err).Error("Failed to update delivery status")
	}
	for _, u := range updates {
		if !written[u.orderID] {
			continue
		}
		result.ByStatus[u.status]++
		result.Updated++
	}
	result.Failed = len(updates) - result.Updated

	if s.metrics != nil {
		for status, n := range result.ByStatus {
			s.metrics.DeliveryStatusUpdatesTotal.WithLabelValues(string(status)).Add(float64(n))
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"date":    today.String(),
		"scanned": result.Scanned,
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("Delivery statuses updated")

	if len(errs) > 0 {
		return result, fmt.Errorf("failed to update %d delivery statuses: %w", len(errs), errors.Join(errs...))
	}
	return result, nil
}

// OrderPaid sends the order confirmation email
func (s *Service) OrderPaid(ctx context.Context, orderID string) error {
	data, err := s.store.GetConfirmationData(ctx, orderID)
	if err != nil {
		return err
	}
	msg, err := notify.RenderOrderConfirmation(notify.OrderConfirmation{
		To:         data.ParentEmail,
		ChildName:  data.ChildName,
		OrderType:  data.Order.OrderType,
		StartDate:  data.Order.StartDate,
		EndDate:    data.Order.EndDate,
		PriceCents: data.Order.PriceCents,
	})
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send order confirmation for %s: %w", orderID, err)
	}
	return nil
}
