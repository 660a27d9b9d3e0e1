// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ledgerline/statements/internal/api/handlers"
	"github.com/ledgerline/statements/internal/api/middleware"
	"github.com/ledgerline/statements/internal/statement"
)

// NewRouter wires the statement endpoints behind the middleware chain.
func NewRouter(svc *statement.Service, log zerolog.Logger) http.Handler {
	h := handlers.NewStatementsHandler(svc, log)

	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth)

	api.HandleFunc("/statements", h.Upload).Methods(http.MethodPost)
	api.HandleFunc("/statements", h.List).Methods(http.MethodGet)
	api.HandleFunc("/statements/{id}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/statements/{id}", h.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/statements/{id}/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/statements/{id}/transactions", h.UpdateTransactions).Methods(http.MethodPatch)
	api.HandleFunc("/statements/{id}/remap", h.Remap).Methods(http.MethodPost)
	api.HandleFunc("/statements/{id}/import", h.Import).Methods(http.MethodPost)
	api.HandleFunc("/statements/{id}/transactions/{txId}/matches", h.Matches).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = middleware.CORS(handler)
	handler = middleware.Logger(log)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(log)(handler)
	return handler
}
