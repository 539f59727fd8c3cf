package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/api/recovery"
)

// NewRouter builds the HTTP router with all routes and global middleware.
func NewRouter(h *Handlers, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware)
	router.Use(ObservabilityMiddleware(log))

	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/agent/chat", h.Chat).Methods("POST")
	router.HandleFunc("/gateway/pay", h.GatewayPay).Methods("POST")

	router.HandleFunc("/products", h.ListProducts).Methods("GET")
	router.HandleFunc("/balances/{userId}", h.GetBalance).Methods("GET")
	router.HandleFunc("/transactions/{userId}", h.ListTransactions).Methods("GET")
	router.HandleFunc("/activities/{userId}", h.ListActivities).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
