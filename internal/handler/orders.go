package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/status"
)

// ManualOrderCreator creates staff-entered orders.
// Satisfied by *service.OrderService.
type ManualOrderCreator interface {
	CreateManualOrder(ctx context.Context, req service.CreateManualOrderRequest) (*service.CreateOrderResult, error)
}

// OrderLister builds filtered order projections.
// Satisfied by *service.Projector.
type OrderLister interface {
	List(ctx context.Context, tenantID uuid.UUID, f service.Filter) ([]service.OrderView, error)
}

// OrderStatusStore defines the DB methods needed for status transitions.
type OrderStatusStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// OrderHandler handles tenant-scoped order endpoints.
type OrderHandler struct {
	creator ManualOrderCreator
	lister  OrderLister
	store   OrderStatusStore
}

func NewOrderHandler(creator ManualOrderCreator, lister OrderLister, store OrderStatusStore) *OrderHandler {
	return &OrderHandler{creator: creator, lister: lister, store: store}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request types ---

type createOrderRequest struct {
	CustomerName  string                   `json:"customer_name"`
	CustomerPhone string                   `json:"customer_phone"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type updateOrderStatusRequest struct {
	CurrentStatus string `json:"current_status"`
}

// --- Handlers ---

// Create handles POST /tenants/{tid}/orders (manual order entry).
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.ManualOrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.ManualOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Notes:     it.Notes,
		}
	}

	result, err := h.creator.CreateManualOrder(r.Context(), service.CreateManualOrderRequest{
		TenantID:      tenantID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCustomer),
			errors.Is(err, service.ErrEmptyItems),
			errors.Is(err, service.ErrInvalidQuantity):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, orderResultResponse(result))
}

// List handles GET /tenants/{tid}/orders.
//
// ?status=preparing,ready selects exact statuses (kitchen view, oldest-first);
// without it the dashboard projection is returned, with ?history=true adding
// the most recent closed orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	f, err := filterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	views, err := h.lister.List(r.Context(), tenantID, f)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// UpdateStatus handles PATCH /tenants/{tid}/orders/{id}/status.
//
// The client sends the status it is looking at; the server computes the sole
// legal successor and applies it with a compare-and-set. A stale view gets a
// 409 instead of silently re-advancing the order.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current := status.Status(req.CurrentStatus)
	if !status.IsValid(current) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid current_status"})
		return
	}

	next, ok := status.Next(current)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order status cannot advance from " + req.CurrentStatus})
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.Role == enum.UserRoleKitchen {
		// Kitchen only moves food out of preparation.
		if current != status.Preparing {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			return
		}
	}

	order, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:         orderID,
		TenantID:   tenantID,
		Status:     next,
		PrevStatus: current,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.respondStatusConflict(w, r, orderID, tenantID)
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderResponse(order))
}

// respondStatusConflict tells a CAS loser whether the order is gone or just
// moved on without them.
func (h *OrderHandler) respondStatusConflict(w http.ResponseWriter, r *http.Request, orderID, tenantID uuid.UUID) {
	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusConflict, map[string]string{
		"error":  "order status has changed",
		"status": string(order.Status),
	})
}

// Cancel handles DELETE /tenants/{tid}/orders/{id}. Terminal orders stay
// terminal; the precondition is enforced in the update itself.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.CancelOrder(r.Context(), database.CancelOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.respondCancelConflict(w, r, orderID, tenantID)
			return
		}
		log.Printf("ERROR: cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) respondCancelConflict(w http.ResponseWriter, r *http.Request, orderID, tenantID uuid.UUID) {
	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusConflict, map[string]string{
		"error":  "order is already " + string(order.Status),
		"status": string(order.Status),
	})
}

// --- Helpers ---

// tenantIDFromRequest reads the {tid} path segment. RequireTenant has already
// validated it against the caller's claims.
func tenantIDFromRequest(r *http.Request) uuid.UUID {
	tid, _ := uuid.Parse(chi.URLParam(r, "tid"))
	return tid
}

// filterFromQuery parses ?status=a,b and ?history=true.
func filterFromQuery(r *http.Request) (service.Filter, error) {
	q := r.URL.Query()
	return service.ParseFilter(q.Get("status"), q.Get("history"))
}

// --- Response shaping ---

type orderJSON struct {
	ID            uuid.UUID     `json:"id"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone *string       `json:"customer_phone"`
	Status        status.Status `json:"status"`
	TotalAmount   string        `json:"total_amount"`
	PaymentID     *string       `json:"payment_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

type orderItemJSON struct {
	ID          uuid.UUID `json:"id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	Price       string    `json:"price"`
	Notes       *string   `json:"notes"`
}

func orderResponse(o database.Order) orderJSON {
	out := orderJSON{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Status:       o.Status,
		TotalAmount:  service.NumericString(o.TotalAmount),
		CreatedAt:    o.CreatedAt,
	}
	if o.CustomerPhone.Valid {
		out.CustomerPhone = &o.CustomerPhone.String
	}
	if o.PaymentID.Valid {
		out.PaymentID = &o.PaymentID.String
	}
	return out
}

func orderResultResponse(result *service.CreateOrderResult) map[string]any {
	items := make([]orderItemJSON, len(result.Items))
	for i, it := range result.Items {
		items[i] = orderItemJSON{
			ID:          it.ID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       service.NumericString(it.Price),
		}
		if it.Notes.Valid {
			items[i].Notes = &it.Notes.String
		}
	}
	return map[string]any{
		"order": orderResponse(result.Order),
		"items": items,
	}
}
