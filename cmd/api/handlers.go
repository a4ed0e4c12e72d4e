package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"truckflow/pkg/auth"
	"truckflow/pkg/conn"
	"truckflow/pkg/geo"
	"truckflow/pkg/order"
	"truckflow/pkg/otel"
)

type ctxKey int

const identityKey ctxKey = 1

// loginRequest represents login credentials.
type loginRequest struct {
	ParticipantID string    `json:"participant_id"`
	Role          conn.Role `json:"role"`
	Password      string    `json:"password"`
}

// loginResponse carries the session token.
type loginResponse struct {
	Token string `json:"token"`
}

// orderRequest is the order placement payload.
type orderRequest struct {
	VendorID string          `json:"vendor_id"`
	Items    json.RawMessage `json:"items"`
}

// statusRequest is the order status update payload.
type statusRequest struct {
	Status order.Status `json:"status"`
}

// loginHandler authenticates a participant and issues a session token.
// Credential checking itself belongs to the identity collaborator; this
// boundary only mints the session.
// @Summary Login
// @Description Authenticates a participant and returns a session token
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Router /login [post]
func loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	if req.Role != conn.RoleVendor && req.Role != conn.RoleCustomer {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}
	token, err := verifier.CreateSession(ctx, auth.Identity{
		ParticipantID: req.ParticipantID,
		Role:          req.Role,
	})
	if err != nil {
		log.Error(ctx, "create session", "error", err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token})
}

// nearbyHandler serves proximity searches over the geo cache. No database
// round trip is involved.
// @Summary Find nearby vendors
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Param radius query number true "Radius in meters"
// @Param limit query int false "Maximum results"
// @Success 200 {array} geo.Result
// @Router /vendors/nearby [get]
func nearbyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "nearbyHandler")
	defer span.End()

	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	radius, err3 := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		http.Error(w, "lat, lon and radius are required numbers", http.StatusBadRequest)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		// Negative means unlimited to the cache; clients do not get that.
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}

	results, err := geoCache.Nearby(ctx, lat, lon, radius, limit)
	if err != nil {
		respondError(ctx, w, "nearby", err)
		return
	}
	nearbyQueriesTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	if results == nil {
		results = []geo.Result{}
	}
	json.NewEncoder(w).Encode(results)
}

// createOrderHandler places a new order for the authenticated customer and
// notifies the vendor.
// @Summary Place order
// @Accept json
// @Produce json
// @Param order body orderRequest true "Order"
// @Success 201 {object} order.Order
// @Security ApiKeyAuth
// @Router /orders [post]
func createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createOrderHandler")
	defer span.End()

	id := identityFrom(ctx)
	if id.Role != conn.RoleCustomer {
		http.Error(w, "only customers place orders", http.StatusForbidden)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VendorID == "" {
		http.Error(w, "vendor_id is required", http.StatusBadRequest)
		return
	}

	o, err := controller.Place(ctx, order.Order{
		VendorID:   req.VendorID,
		CustomerID: id.ParticipantID,
		Items:      req.Items,
	})
	if err != nil {
		respondError(ctx, w, "place order", err)
		return
	}
	orderEventsTotal.WithLabelValues(string(o.Status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(o)
}

// listOrdersHandler lists the authenticated participant's orders.
// @Summary List orders
// @Produce json
// @Success 200 {array} order.Order
// @Security ApiKeyAuth
// @Router /orders [get]
func listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listOrdersHandler")
	defer span.End()

	id := identityFrom(ctx)
	orders, err := repo.ListByParticipant(ctx, id.ParticipantID)
	if err != nil {
		respondError(ctx, w, "list orders", storeErr(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if orders == nil {
		orders = []order.Order{}
	}
	json.NewEncoder(w).Encode(orders)
}

// getOrderHandler retrieves one order the participant is a party to.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	id := identityFrom(ctx)
	o, err := repo.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, "get order", storeErr(err))
		return
	}
	if o.VendorID != id.ParticipantID && o.CustomerID != id.ParticipantID {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

// updateOrderStatusHandler advances the order state machine; the vendor on
// the order accepts, rejects, or completes it and the customer is notified.
// @Summary Update order status
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param status body statusRequest true "New status"
// @Success 200 {object} order.Order
// @Security ApiKeyAuth
// @Router /orders/{id}/status [put]
func updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateOrderStatusHandler")
	defer span.End()

	id := identityFrom(ctx)
	orderID := mux.Vars(r)["id"]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid status payload", http.StatusBadRequest)
		return
	}

	existing, err := repo.Get(ctx, orderID)
	if err != nil {
		respondError(ctx, w, "get order", storeErr(err))
		return
	}
	if id.Role != conn.RoleVendor || existing.VendorID != id.ParticipantID {
		http.Error(w, "order belongs to another vendor", http.StatusForbidden)
		return
	}

	o, err := controller.Transition(ctx, orderID, req.Status)
	if err != nil {
		respondError(ctx, w, "transition order", err)
		return
	}
	orderEventsTotal.WithLabelValues(string(o.Status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

// authMiddleware resolves the session token and stores the identity.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := verifier.VerifyToken(r.Context(), tokenFromRequest(r))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			log.Error(r.Context(), "verify token", "error", err)
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenFromRequest pulls the session token from the Authorization header,
// falling back to the query string for websocket clients that cannot set
// headers.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey).(auth.Identity)
	return id
}

// storeErr marks a raw repository failure as a persistence error so
// respondError maps it to 503 like controller failures. Sentinels pass
// through untouched.
func storeErr(err error) error {
	if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", order.ErrPersistence, err)
}

// respondError translates core errors into HTTP responses.
func respondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate), errors.Is(err, geo.ErrInvalidRadius):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrPersistence):
		log.Error(ctx, op, "error", err)
		http.Error(w, "store unavailable, retry later", http.StatusServiceUnavailable)
	default:
		log.Error(ctx, op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
