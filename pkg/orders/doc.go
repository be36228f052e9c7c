// Package orders creates sandwich orders and advances their delivery status.
//
// An order freezes its billable-day count and price when it is created:
// off-days added later never change what was charged. Delivery status is
// derived from the calendar by NextDeliveryStatus and written once a day by
// the scheduler through Service.UpdateDeliveryStatuses.
package orders
