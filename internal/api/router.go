package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tabletop-bank/internal/api/handler"
	"github.com/mcoot/tabletop-bank/internal/api/middleware"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
	"github.com/mcoot/tabletop-bank/internal/services/bank"
	"github.com/mcoot/tabletop-bank/internal/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	BankService *bank.Service
	AuthService *auth.Service
	Hub         *sse.Hub
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	bankHandler := handler.NewBankHandler(cfg.BankService)
	eventsHandler := handler.NewEventsHandler(cfg.Hub)

	adminMiddleware := middleware.Admin(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	bankRoutes := api.PathPrefix("/bank").Subrouter()
	bankRoutes.HandleFunc("/scan", bankHandler.Scan).Methods(http.MethodPost)
	bankRoutes.HandleFunc("/players", bankHandler.Players).Methods(http.MethodGet)
	bankRoutes.HandleFunc("/players/{id}", bankHandler.Player).Methods(http.MethodGet)
	bankRoutes.HandleFunc("/players/{id}/sync", bankHandler.Sync).Methods(http.MethodGet)
	bankRoutes.HandleFunc("/history", bankHandler.History).Methods(http.MethodGet)
	bankRoutes.HandleFunc("/verify", bankHandler.Verify).Methods(http.MethodGet)
	bankRoutes.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)

	// Destructive routes need the admin PIN
	bankRoutes.Handle("/reset", adminMiddleware(http.HandlerFunc(bankHandler.Reset))).Methods(http.MethodPost)

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
