package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/service"
)

type HTTPHandler struct {
	reservations *service.ReservationService
	logger       *zap.Logger
}

func NewHTTPHandler(reservations *service.ReservationService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{reservations: reservations, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/inventory/reserve", h.Reserve)
	mux.HandleFunc("POST /api/v1/inventory/confirm", h.Confirm)
	mux.HandleFunc("POST /api/v1/inventory/cancel", h.Cancel)
	mux.HandleFunc("GET /api/v1/inventory/{sku}/availability", h.Availability)

	mux.HandleFunc("POST /api/v1/inventory/admin", h.CreateInventory)
	mux.HandleFunc("PUT /api/v1/inventory/admin/{sku}/add-stock", h.AddStock)
	mux.HandleFunc("GET /api/v1/inventory/admin", h.ListInventory)
	mux.HandleFunc("GET /api/v1/inventory/admin/low-stock", h.ListLowStock)

	mux.HandleFunc("GET /health", h.HealthCheck)
}

type ReserveRequest struct {
	OrderID string         `json:"order_id"`
	Items   map[string]int `json:"items"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type CreateInventoryRequest struct {
	SKU               string `json:"sku"`
	AvailableQuantity int    `json:"available_quantity"`
	MinimumStockLevel int    `json:"minimum_stock_level"`
}

type InventoryResponse struct {
	SKU               string    `json:"sku"`
	AvailableQuantity int       `json:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	Unreserved        int       `json:"unreserved"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.reservations.Reserve(r.Context(), req.OrderID, req.Items)
	if err != nil {
		h.logger.Error("reserve failed", zap.String("orderId", req.OrderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *HTTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.reservations.Confirm(r.Context(), req.OrderID); err != nil {
		h.writeServiceError(w, req.OrderID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.reservations.Release(r.Context(), req.OrderID); err != nil {
		h.writeServiceError(w, req.OrderID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	available, err := h.reservations.Availability(r.Context(), sku)
	if err != nil {
		if errors.Is(err, service.ErrInventoryNotFound) {
			writeError(w, http.StatusNotFound, "sku not found")
			return
		}
		h.logger.Error("availability lookup failed", zap.String("sku", sku), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{SKU: sku, Available: available})
}

func (h *HTTPHandler) CreateInventory(w http.ResponseWriter, r *http.Request) {
	var req CreateInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SKU == "" {
		writeError(w, http.StatusBadRequest, "sku is required")
		return
	}

	inv, err := h.reservations.CreateInventory(r.Context(), req.SKU, req.AvailableQuantity, req.MinimumStockLevel)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInventoryExists):
			writeError(w, http.StatusConflict, "inventory already exists")
		case errors.Is(err, service.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("inventory creation failed", zap.String("sku", req.SKU), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryResponse(inv))
}

func (h *HTTPHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity must be an integer")
		return
	}

	inv, err := h.reservations.AddStock(r.Context(), sku, quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInventoryNotFound):
			writeError(w, http.StatusNotFound, "sku not found")
		case errors.Is(err, service.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrLockAcquisitionFailed):
			writeError(w, http.StatusServiceUnavailable, "concurrent update, retry later")
		default:
			h.logger.Error("add stock failed", zap.String("sku", sku), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(inv))
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	h.writeInventoryList(w, r, h.reservations.ListInventory)
}

func (h *HTTPHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	h.writeInventoryList(w, r, h.reservations.ListLowStock)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeInventoryList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]domain.Inventory, error)) {
	records, err := list(r.Context())
	if err != nil {
		h.logger.Error("inventory listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]InventoryResponse, len(records))
	for i := range records {
		out[i] = toInventoryResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, orderID string, err error) {
	switch {
	case errors.Is(err, service.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, service.ErrInvalidReservationState):
		writeError(w, http.StatusConflict, "reservation is not active")
	case errors.Is(err, service.ErrLockAcquisitionFailed):
		writeError(w, http.StatusServiceUnavailable, "concurrent update, retry later")
	default:
		h.logger.Error("reservation operation failed", zap.String("orderId", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toInventoryResponse(inv *domain.Inventory) InventoryResponse {
	return InventoryResponse{
		SKU:               inv.SKU,
		AvailableQuantity: inv.AvailableQuantity,
		ReservedQuantity:  inv.ReservedQuantity,
		MinimumStockLevel: inv.MinimumStockLevel,
		Unreserved:        inv.Unreserved(),
		UpdatedAt:         inv.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
