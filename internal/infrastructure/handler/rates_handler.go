// Package handler internal/infrastructure/handler/rates_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/damon-houk/cbr-rates-service/internal/application/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// RatesReader is the read path behind the rates endpoints
type RatesReader interface {
	GetAll(ctx context.Context) service.Result
	GetOne(ctx context.Context, code string) service.Result
}

// RatesHandler handles HTTP requests for currency rates
type RatesHandler struct {
	reader RatesReader
	logger logger.Logger
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(reader RatesReader, log logger.Logger) *RatesHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RatesHandler{
		reader: reader,
		logger: log,
	}
}

// GetCurrencies handles listing all cached rates
func (h *RatesHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Debug("Handling get currencies request", map[string]interface{}{
		"request_id": requestID,
	})

	result := h.reader.GetAll(r.Context())
	h.writeResult(w, result, requestID)
}

// GetCurrency handles a single rate lookup, with the code taken from the path or the query string
func (h *RatesHandler) GetCurrency(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	code, ok := mux.Vars(r)["code"]
	if !ok {
		code = r.URL.Query().Get("code")
	}
	code = strings.TrimSpace(code)

	if code == "" {
		h.logger.Warn("Missing currency code", map[string]interface{}{
			"request_id": requestID,
		})
		sendErrorResponse(w, h.logger, "Missing currency code",
			"A currency code is required, e.g. /currencies/USD or /currency?code=USD",
			http.StatusBadRequest, requestID)
		return
	}

	h.logger.Debug("Handling get currency request", map[string]interface{}{
		"request_id": requestID,
		"code":       code,
	})

	result := h.reader.GetOne(r.Context(), code)
	h.writeResult(w, result, requestID)
}

// RegisterRoutes registers the rates handler routes
func (h *RatesHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/currencies", h.GetCurrencies).Methods("GET")
	router.HandleFunc("/currencies/{code}", h.GetCurrency).Methods("GET")
	router.HandleFunc("/currency", h.GetCurrency).Methods("GET")

	h.logger.Info("Rates routes registered", map[string]interface{}{
		"routes": []string{
			"GET /currencies",
			"GET /currencies/{code}",
			"GET /currency?code=",
		},
	})
}

func (h *RatesHandler) writeResult(w http.ResponseWriter, result service.Result, requestID string) {
	status := statusCode(result.Status)

	h.logger.Debug("Sending rates response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": status,
		"result":      result.Status.String(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result.Response); err != nil {
		h.logger.Error("Failed to encode response", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

func statusCode(s service.Status) int {
	switch s {
	case service.StatusOK:
		return http.StatusOK
	case service.StatusProcessing:
		return http.StatusAccepted
	case service.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	json.NewEncoder(w).Encode(resp)
}
