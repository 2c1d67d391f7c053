package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/tabletop-bank/internal/api/apierr"
	"github.com/mcoot/tabletop-bank/internal/middleware"
)

// Recovery turns handler panics into INTERNAL_ERROR JSON responses
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger.With(slog.String("component", "api")), func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
