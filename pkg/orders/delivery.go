package orders

import (
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
)

// NextDeliveryStatus derives the delivery status of o on today.
//
// Day orders are in progress on their single day. Week and month orders are
// in progress from start to end inclusive. Before that they are ordered and
// after that delivered.
func NextDeliveryStatus(o *Order, today calendar.Date) DeliveryStatus {
	end := o.EndDate
	if o.OrderType == pricing.OrderTypeDay {
		end = o.StartDate
	}
	switch {
	case today.Before(o.StartDate):
		return DeliveryOrdered
	case !today.After(end):
		return DeliveryInProgress
	default:
		return DeliveryDelivered
	}
}

// NeedsDeliveryUpdate reports whether the scheduler still manages o
func NeedsDeliveryUpdate(o *Order) bool {
	return o.DeliveryStatus == DeliveryOrdered || o.DeliveryStatus == DeliveryInProgress
}
