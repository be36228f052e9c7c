// Package httputil provides the JSON response helpers, request parsing and
// middleware shared by the lunchbox HTTP handlers.
//
// Handlers return kinded errors from pkg/apperrors and let WriteAppError
// pick the status code:
//
//	order, err := h.orders.Get(ctx, parentID, id)
//	if err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//	httputil.WriteSuccess(w, order)
//
// Middleware is composed with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)(router)
package httputil
