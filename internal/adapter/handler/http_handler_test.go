package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/service"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

// memoryStore is a minimal single-writer port.StockStore for handler
// tests. Handler tests run sequentially, so writes mutate in place.
type memoryStore struct {
	inventories  map[string]domain.Inventory
	reservations map[string]*domain.Reservation
}

func newMemoryStore(invs ...domain.Inventory) *memoryStore {
	s := &memoryStore{
		inventories:  make(map[string]domain.Inventory),
		reservations: make(map[string]*domain.Reservation),
	}
	for _, inv := range invs {
		s.inventories[inv.SKU] = inv
	}
	return s
}

func (s *memoryStore) RunAtomic(ctx context.Context, fn func(tx port.StockTx) error) error {
	return fn(s)
}

func (s *memoryStore) FindInventoryBySKUs(ctx context.Context, skus []string) ([]domain.Inventory, error) {
	var out []domain.Inventory
	for _, sku := range skus {
		if inv, ok := s.inventories[sku]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memoryStore) FindReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	r, ok := s.reservations[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, port.ErrNotFound)
	}
	clone := *r
	return &clone, nil
}

func (s *memoryStore) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	inv.Version++
	s.inventories[inv.SKU] = inv
	return nil
}

func (s *memoryStore) InsertInventory(ctx context.Context, inv domain.Inventory) error {
	s.inventories[inv.SKU] = inv
	return nil
}

func (s *memoryStore) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	clone := *r
	s.reservations[r.OrderID] = &clone
	return nil
}

func (s *memoryStore) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	clone := *r
	s.reservations[r.OrderID] = &clone
	return nil
}

func (s *memoryStore) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	var out []domain.Inventory
	for _, inv := range s.inventories {
		out = append(out, inv)
	}
	return out, nil
}

func (s *memoryStore) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	var out []domain.Inventory
	for _, inv := range s.inventories {
		if inv.BelowMinimum() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memoryStore) FindExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return nil, nil
}

func newTestServer(invs ...domain.Inventory) *httptest.Server {
	store := newMemoryStore(invs...)
	policy := service.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
	svc := service.NewReservationService(store, nil, zap.NewNop(), policy, time.Hour)

	mux := http.NewServeMux()
	NewHTTPHandler(svc, zap.NewNop()).Register(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestReserveEndpoint(t *testing.T) {
	srv := newTestServer(domain.Inventory{SKU: "book-1", AvailableQuantity: 10})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/inventory/reserve", ReserveRequest{
		OrderID: "order-1",
		Items:   map[string]int{"book-1": 3},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome domain.ReservationOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, domain.OutcomeReserved, outcome.Status)
	assert.NotEmpty(t, outcome.ReservationID)
}

func TestReserveEndpoint_BusinessOutcomesAre200(t *testing.T) {
	srv := newTestServer(domain.Inventory{SKU: "book-1", AvailableQuantity: 2})
	defer srv.Close()

	// Insufficient stock is a result, not an HTTP error.
	resp := postJSON(t, srv.URL+"/api/v1/inventory/reserve", ReserveRequest{
		OrderID: "order-1",
		Items:   map[string]int{"book-1": 5},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome domain.ReservationOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, domain.OutcomeInsufficientStock, outcome.Status)
	assert.Equal(t, map[string]int{"book-1": 5}, outcome.Shortfalls)
}

func TestConfirmEndpoint(t *testing.T) {
	srv := newTestServer(domain.Inventory{SKU: "book-1", AvailableQuantity: 10})
	defer srv.Close()

	postJSON(t, srv.URL+"/api/v1/inventory/reserve", ReserveRequest{
		OrderID: "order-1", Items: map[string]int{"book-1": 3},
	}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/v1/inventory/confirm", OrderRequest{OrderID: "order-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Double confirm maps to 409.
	resp = postJSON(t, srv.URL+"/api/v1/inventory/confirm", OrderRequest{OrderID: "order-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConfirmEndpoint_UnknownOrder(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/inventory/confirm", OrderRequest{OrderID: "ghost"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelEndpoint_NoopOnTerminal(t *testing.T) {
	srv := newTestServer(domain.Inventory{SKU: "book-1", AvailableQuantity: 10})
	defer srv.Close()

	postJSON(t, srv.URL+"/api/v1/inventory/reserve", ReserveRequest{
		OrderID: "order-1", Items: map[string]int{"book-1": 3},
	}).Body.Close()
	postJSON(t, srv.URL+"/api/v1/inventory/confirm", OrderRequest{OrderID: "order-1"}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/v1/inventory/cancel", OrderRequest{OrderID: "order-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv := newTestServer(domain.Inventory{SKU: "book-1", AvailableQuantity: 10, ReservedQuantity: 4})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/inventory/book-1/availability")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body AvailabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 6, body.Available)

	resp, err = http.Get(srv.URL + "/api/v1/inventory/ghost/availability")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/inventory/admin", CreateInventoryRequest{
		SKU: "book-1", AvailableQuantity: 20, MinimumStockLevel: 5,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate provisioning is rejected.
	resp = postJSON(t, srv.URL+"/api/v1/inventory/admin", CreateInventoryRequest{
		SKU: "book-1", AvailableQuantity: 20,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/inventory/admin/book-1/add-stock?quantity=5", nil)
	require.NoError(t, err)
	addResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer addResp.Body.Close()
	require.Equal(t, http.StatusOK, addResp.StatusCode)

	var inv InventoryResponse
	require.NoError(t, json.NewDecoder(addResp.Body).Decode(&inv))
	assert.Equal(t, 25, inv.AvailableQuantity)
}
