// Package pricing turns an order plan and a billable-day count into a price.
//
// Rates are kept in integer cents so totals are exact; the float fields of
// a Quote are for display only and TotalCents is what gets persisted and
// sent to the payment provider.
package pricing

import (
	"fmt"
	"math"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
)

// OrderType is the plan an order is placed on
type OrderType string

const (
	OrderTypeDay   OrderType = "day-order"
	OrderTypeWeek  OrderType = "week-order"
	OrderTypeMonth OrderType = "month-order"
)

const (
	// Currency is the ISO currency code of every amount
	Currency = "eur"

	// AccessFeeCents is the yearly access fee
	AccessFeeCents int64 = 1000
)

// dailyRatesCents holds the per-day price of each plan
var dailyRatesCents = map[OrderType]int64{
	OrderTypeDay:   310,
	OrderTypeWeek:  290,
	OrderTypeMonth: 275,
}

// ParseOrderType validates an order type string
func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(s)
	if !t.Valid() {
		return "", apperrors.InvalidInput("unknown order type: %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known plan
func (t OrderType) Valid() bool {
	_, ok := dailyRatesCents[t]
	return ok
}

// EndDate derives the last day of an order from its first day:
// the same day for day orders, six days later for week orders and the end
// of the calendar month for month orders.
func (t OrderType) EndDate(start calendar.Date) (calendar.Date, error) {
	switch t {
	case OrderTypeDay:
		return start, nil
	case OrderTypeWeek:
		return start.AddDays(6), nil
	case OrderTypeMonth:
		return calendar.EndOfMonth(start), nil
	default:
		return calendar.Date{}, apperrors.InvalidInput("unknown order type: %q", string(t))
	}
}

// Label is the human readable plan name ("week order")
func (t OrderType) Label() string {
	switch t {
	case OrderTypeDay:
		return "day order"
	case OrderTypeWeek:
		return "week order"
	case OrderTypeMonth:
		return "month order"
	default:
		return string(t)
	}
}

// DailyRateCents returns the per-day price of t in cents
func DailyRateCents(t OrderType) (int64, error) {
	rate, ok := dailyRatesCents[t]
	if !ok {
		return 0, apperrors.InvalidInput("unknown order type: %q", string(t))
	}
	return rate, nil
}

// Quote is the price of an order
type Quote struct {
	OrderType    OrderType `json:"orderType"`
	BillableDays int       `json:"billableDays"`
	PricePerDay  float64   `json:"pricePerDay"`
	TotalPrice   float64   `json:"totalPrice"`
}

// TotalCents is the total rounded to the minor currency unit
func (q Quote) TotalCents() int64 {
	return int64(math.Round(q.TotalPrice * 100))
}

// PriceForOrder prices billableDays days on plan t. A negative day count is
// a caller bug and is rejected as invalid input.
func PriceForOrder(t OrderType, billableDays int) (Quote, error) {
	if billableDays < 0 {
		return Quote{}, apperrors.InvalidInput("billable days must not be negative, got %d", billableDays)
	}
	rate, err := DailyRateCents(t)
	if err != nil {
		return Quote{}, err
	}

	totalCents := rate * int64(billableDays)
	return Quote{
		OrderType:    t,
		BillableDays: billableDays,
		PricePerDay:  float64(rate) / 100,
		TotalPrice:   float64(totalCents) / 100,
	}, nil
}

// FormatCents renders an amount as "12.50"
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
