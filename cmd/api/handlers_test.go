package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"

	"truckflow/pkg/auth"
	"truckflow/pkg/conn"
	"truckflow/pkg/geo"
	geomem "truckflow/pkg/geo/memory"
	"truckflow/pkg/logger"
	"truckflow/pkg/order"
)

func TestMain(m *testing.M) {
	log = logger.New(io.Discard, logger.LevelError, "test", nil)
	os.Exit(m.Run())
}

func TestNearbyHandlerClampsNegativeLimit(t *testing.T) {
	ctx := context.Background()
	cache := geomem.New()
	for i := 0; i < 25; i++ {
		cache.Upsert(ctx, geo.Presence{
			VendorID: fmt.Sprintf("v%d", i),
			Lat:      40.0,
			Lon:      -73.0,
			Active:   true,
		})
	}
	geoCache = cache

	req := httptest.NewRequest("GET", "/vendors/nearby?lat=40.0&lon=-73.0&radius=500&limit=-1", nil)
	rec := httptest.NewRecorder()
	nearbyHandler(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var results []geo.Result
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// A negative limit falls back to the default instead of unbounding
	// the response.
	if len(results) != 20 {
		t.Fatalf("expected default limit of 20 results, got %d", len(results))
	}

	req = httptest.NewRequest("GET", "/vendors/nearby?lat=40.0&lon=-73.0&radius=500&limit=5", nil)
	rec = httptest.NewRecorder()
	nearbyHandler(rec, req)
	results = nil
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode limited: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
}

// stubRepo fails Get with a fixed error; the embedded interface panics on
// anything else, which no path under test reaches.
type stubRepo struct {
	order.Repository
	getErr error
}

func (s stubRepo) Get(ctx context.Context, id string) (order.Order, error) {
	return order.Order{}, s.getErr
}

func authedRequest(method, target, participantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req = mux.SetURLVars(req, map[string]string{"id": "ord-1"})
	ctx := context.WithValue(req.Context(), identityKey, auth.Identity{
		ParticipantID: participantID,
		Role:          conn.RoleCustomer,
	})
	rec := httptest.NewRecorder()
	getOrderHandler(rec, req.WithContext(ctx))
	return rec
}

func TestGetOrderHandlerMapsDriverErrorTo503(t *testing.T) {
	repo = stubRepo{getErr: errors.New("dial tcp 127.0.0.1:5432: connection refused")}

	rec := authedRequest("GET", "/orders/ord-1", "c1")
	if rec.Code != 503 {
		t.Fatalf("expected 503 for store failure, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetOrderHandlerKeepsNotFoundAs404(t *testing.T) {
	repo = stubRepo{getErr: order.ErrNotFound}

	rec := authedRequest("GET", "/orders/ord-1", "c1")
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStoreErr(t *testing.T) {
	raw := errors.New("connection reset")
	if err := storeErr(raw); !errors.Is(err, order.ErrPersistence) {
		t.Fatalf("expected persistence wrap, got %v", err)
	}
	if err := storeErr(order.ErrNotFound); !errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrPersistence) {
		t.Fatalf("sentinel should pass through, got %v", err)
	}
	if err := storeErr(fmt.Errorf("%w: timeout", order.ErrPersistence)); !errors.Is(err, order.ErrPersistence) {
		t.Fatalf("expected persistence error unchanged, got %v", err)
	}
}
