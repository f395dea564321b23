package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/status"
)

// mockProjectionStore implements ProjectionStore over in-memory fixtures.
type mockProjectionStore struct {
	byStatusFn func(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error)
	activeFn   func(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error)
	closedFn   func(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error)
	itemsFn    func(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error)
}

func (m *mockProjectionStore) ListOrdersByStatus(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error) {
	return m.byStatusFn(ctx, arg)
}
func (m *mockProjectionStore) ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error) {
	return m.activeFn(ctx, tenantID)
}
func (m *mockProjectionStore) ListClosedOrders(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error) {
	return m.closedFn(ctx, arg)
}
func (m *mockProjectionStore) ListOrderItems(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error) {
	return m.itemsFn(ctx, arg)
}

func makeOrder(tenantID uuid.UUID, s status.Status, createdAt time.Time) database.Order {
	return database.Order{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CustomerName: "Cliente",
		Status:       s,
		TotalAmount:  makeNumeric("10.00"),
		CreatedAt:    createdAt,
	}
}

func noItems(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error) {
	return nil, nil
}

func TestListStatusFilteredMode(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	preparing := []database.Order{
		makeOrder(tenantID, status.Preparing, now.Add(-20*time.Minute)),
		makeOrder(tenantID, status.Preparing, now.Add(-5*time.Minute)),
	}

	var gotParams database.ListOrdersByStatusParams
	store := &mockProjectionStore{
		byStatusFn: func(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error) {
			gotParams = arg
			return preparing, nil
		},
		itemsFn: noItems,
	}

	views, err := NewProjector(store).List(context.Background(), tenantID, Filter{
		Statuses: []status.Status{status.Preparing},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if gotParams.TenantID != tenantID {
		t.Error("query not scoped to requested tenant")
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if !views[0].CreatedAt.Before(views[1].CreatedAt) {
		t.Error("kitchen view must be oldest-first")
	}
}

func TestListDashboardModeWithHistoryDedup(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	active := []database.Order{
		makeOrder(tenantID, status.PendingPayment, now.Add(-time.Hour)),
		makeOrder(tenantID, status.Ready, now.Add(-30*time.Minute)),
	}
	// The first active order also appears in the history leg, as if it was
	// completed between the two queries.
	racing := active[0]
	racing.Status = status.Completed
	closed := []database.Order{
		racing,
		makeOrder(tenantID, status.Completed, now.Add(-2*time.Hour)),
	}

	var closedLimit int32
	store := &mockProjectionStore{
		activeFn: func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
			return active, nil
		},
		closedFn: func(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error) {
			closedLimit = arg.Limit
			return closed, nil
		},
		itemsFn: noItems,
	}

	views, err := NewProjector(store).List(context.Background(), tenantID, Filter{IncludeHistory: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if closedLimit != 30 {
		t.Errorf("history limit = %d, want 30", closedLimit)
	}
	if len(views) != 3 {
		t.Fatalf("views = %d, want 3 (duplicate id removed)", len(views))
	}
	seen := map[uuid.UUID]bool{}
	for _, v := range views {
		if seen[v.ID] {
			t.Fatalf("order %s appears twice", v.ID)
		}
		seen[v.ID] = true
	}
}

func TestListDashboardModeWithoutHistory(t *testing.T) {
	tenantID := uuid.New()
	store := &mockProjectionStore{
		activeFn: func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
			return []database.Order{makeOrder(tenantID, status.Paid, time.Now())}, nil
		},
		closedFn: func(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error) {
			t.Fatal("history leg must not run without IncludeHistory")
			return nil, nil
		},
		itemsFn: noItems,
	}

	views, err := NewProjector(store).List(context.Background(), tenantID, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
}

func TestListAttachesItemsToOwningOrder(t *testing.T) {
	tenantID := uuid.New()
	o1 := makeOrder(tenantID, status.Preparing, time.Now().Add(-time.Minute))
	o2 := makeOrder(tenantID, status.Preparing, time.Now())

	store := &mockProjectionStore{
		byStatusFn: func(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error) {
			return []database.Order{o1, o2}, nil
		},
		itemsFn: func(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error) {
			if arg.TenantID != tenantID {
				t.Error("item query not tenant-scoped")
			}
			return []database.OrderItem{
				{ID: uuid.New(), OrderID: o2.ID, TenantID: tenantID, ProductName: "X-Burger", Quantity: 2, Price: makeNumeric("25.00")},
				{ID: uuid.New(), OrderID: o1.ID, TenantID: tenantID, ProductName: "Guaraná", Quantity: 1, Price: makeNumeric("8.50")},
			}, nil
		},
	}

	views, err := NewProjector(store).List(context.Background(), tenantID, Filter{
		Statuses: []status.Status{status.Preparing},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(views[0].Items) != 1 || views[0].Items[0].ProductName != "Guaraná" {
		t.Errorf("order 1 items = %+v", views[0].Items)
	}
	if len(views[1].Items) != 1 || views[1].Items[0].ProductName != "X-Burger" {
		t.Errorf("order 2 items = %+v", views[1].Items)
	}
	if views[1].Items[0].Price != "25.00" {
		t.Errorf("price = %s, want 25.00", views[1].Items[0].Price)
	}
}

func TestListEmptyProjection(t *testing.T) {
	store := &mockProjectionStore{
		activeFn: func(ctx context.Context, tid uuid.UUID) ([]database.Order, error) {
			return nil, nil
		},
		itemsFn: func(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error) {
			t.Fatal("item query must be skipped for an empty order set")
			return nil, nil
		},
	}

	views, err := NewProjector(store).List(context.Background(), uuid.New(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("views = %d, want 0", len(views))
	}
}
