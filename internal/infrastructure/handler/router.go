package handler

import (
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/metrics"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires the API routes behind the request ID, logging and metrics middleware.
// m may be nil, in which case /metrics is not served.
func NewRouter(rates *RatesHandler, health *HealthHandler, m *metrics.Metrics, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	if m != nil {
		router.Use(middleware.MetricsMiddleware(m))
		router.Handle("/metrics", m.Handler()).Methods("GET")
	}

	rates.RegisterRoutes(router)
	health.RegisterRoutes(router)

	return router
}
