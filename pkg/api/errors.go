package api

import (
	"net/http"

	"github.com/platinummonkey/lunchbox/pkg/apperrors"
	"github.com/platinummonkey/lunchbox/pkg/httputil"
	"github.com/platinummonkey/lunchbox/pkg/middleware"
	"github.com/platinummonkey/lunchbox/pkg/observability"
)

// writeError logs server-side failures and writes the kinded response
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if apperrors.StatusCode(err) >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error(msg)
	}
	httputil.WriteAppError(w, err)
}

// requireUserID returns the authenticated account id or writes a 401
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal := middleware.GetPrincipal(r)
	if principal == nil || principal.UserID == "" {
		httputil.WriteUnauthorized(w, "authentication required")
		return "", false
	}
	return principal.UserID, true
}
