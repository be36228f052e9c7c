package orders

import (
	"time"

	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
)

// BreadType is the bread a child's sandwiches are made with
type BreadType string

const (
	BreadWhite BreadType = "white"
	BreadBrown BreadType = "brown"
	BreadNone  BreadType = "none"
)

// Valid reports whether b is a known bread type
func (b BreadType) Valid() bool {
	return b == BreadWhite || b == BreadBrown || b == BreadNone
}

// DeliveryStatus tracks an order through its delivery window
type DeliveryStatus string

const (
	DeliveryOrdered    DeliveryStatus = "ordered"
	DeliveryInProgress DeliveryStatus = "in-progress"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

const (
	maxNotesLength     = 1000
	maxAllergiesLength = 500
)

// Preferences are the sandwich options of an order
type Preferences struct {
	Notes     string    `json:"notes"`
	Allergies string    `json:"allergies"`
	BreadType BreadType `json:"breadType"`
	Crust     bool      `json:"crust"`
	Butter    bool      `json:"butter"`
}

// Order is a paid-for delivery window for one child
type Order struct {
	ID             string                `json:"id"`
	ParentID       string                `json:"parentId"`
	ChildID        string                `json:"childId"`
	OrderType      pricing.OrderType     `json:"orderType"`
	StartDate      calendar.Date         `json:"startDate"`
	EndDate        calendar.Date         `json:"endDate"`
	PriceCents     int64                 `json:"price"`
	BillableDays   int                   `json:"billableDays"`
	Preferences    Preferences           `json:"preferences"`
	PaymentStatus  billing.PaymentStatus `json:"paymentStatus"`
	DeliveryStatus DeliveryStatus        `json:"deliveryStatus"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Child is the subset of a child record orders need
type Child struct {
	ID        string
	ParentID  string
	SchoolID  string
	FirstName string
	LastName  string
}

// CreateRequest is the order form
type CreateRequest struct {
	ChildID     string      `json:"childId" validate:"required"`
	OrderType   string      `json:"orderType" validate:"required"`
	StartDate   string      `json:"startDate" validate:"required"`
	EndDate     string      `json:"endDate,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// QuoteResult is what an order would cost before it is placed
type QuoteResult struct {
	OrderType      pricing.OrderType `json:"orderType"`
	StartDate      calendar.Date     `json:"startDate"`
	EndDate        calendar.Date     `json:"endDate"`
	BillableDates  []calendar.Date   `json:"billableDates"`
	Quote          pricing.Quote     `json:"quote"`
	TotalCents     int64             `json:"totalCents"`
	FormattedPrice string            `json:"formattedPrice"`
}

// AdminOrder is an order listed with its child's full name
type AdminOrder struct {
	Order
	ChildName string `json:"childName"`
}

// DailyCount is how many orders cover one day
type DailyCount struct {
	Date       calendar.Date `json:"date"`
	OrderCount int           `json:"orderCount"`
}

// ConfirmationData is what the order confirmation email needs
type ConfirmationData struct {
	ParentEmail string
	ChildName   string
	Order       *Order
}

// DeliveryUpdateResult summarises one delivery status run
type DeliveryUpdateResult struct {
	Scanned  int                    `json:"scanned"`
	Updated  int                    `json:"updated"`
	Failed   int                    `json:"failed"`
	ByStatus map[DeliveryStatus]int `json:"byStatus"`
}
