package middleware

import (
	"net/http"

	"github.com/mcoot/tabletop-bank/internal/api/apierr"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
)

// AdminPINHeader carries the admin PIN on destructive requests
const AdminPINHeader = "X-Admin-PIN"

// Admin creates middleware that requires the admin PIN when one is configured
func Admin(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			pin := r.Header.Get(AdminPINHeader)
			if pin == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			if err := authService.Verify(pin); err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
