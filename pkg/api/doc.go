// Package api exposes the lunchbox HTTP surface.
//
// Handler groups mirror the services they front:
//
//	BillingHandlers  /stripe-webhook, /me/access, /checkout/*
//	OrderHandlers    /orders, /orders/quote, /orders/{id}
//	OffDayHandlers   /schools/{id}/closed-dates, /admin/offdays
//
// NewRouter wires the groups into a gorilla/mux router with
// authentication, admin checks, rate limiting and request metrics.
package api
