package main

import (
	"log"
	"net/http"

	httphandlers "finlink/internal/interfaces/http"
	"finlink/internal/shared/config"
	"finlink/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Protected routes
	authMiddleware := middleware.APIToken(cfg.APIAuth.TokenHash)

	mux.Handle("/api/connections", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleConnections)))
	mux.Handle("/api/connections/{id}", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleConnectionByID)))
	mux.Handle("/api/connections/{id}/refresh", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleRefreshConnection)))
	mux.Handle("/api/refresh", authMiddleware(http.HandlerFunc(deps.ConnectionHandler.HandleRefreshAll)))
	mux.Handle("/api/cards", authMiddleware(http.HandlerFunc(deps.LedgerHandler.HandleCards)))
	mux.Handle("/api/bank-accounts", authMiddleware(http.HandlerFunc(deps.LedgerHandler.HandleBankAccounts)))
	mux.Handle("/api/autofill", authMiddleware(http.HandlerFunc(deps.LedgerHandler.HandleAutoFill)))
	mux.Handle("/api/autofill/export", authMiddleware(http.HandlerFunc(deps.LedgerHandler.HandleAutoFillExport)))

	// Apply global middleware
	handler := middleware.NoStore(mux)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Telemetry(middleware.Tracing(handler))
	handler = middleware.RequestID(middleware.Logging(handler))

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(cfg.TLS.HSTSMaxAge)(handler)
		log.Printf("HSTS enabled (max-age %s)", cfg.TLS.HSTSMaxAge)
	}

	return handler
}
