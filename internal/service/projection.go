package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/status"
	"github.com/shopspring/decimal"
)

// historyWindow is how many completed/cancelled orders the dashboard history
// leg returns.
const historyWindow = 30

// Filter selects which orders a projection covers. An empty Statuses set
// means dashboard mode: all active orders, plus recent history when
// IncludeHistory is set.
type Filter struct {
	Statuses       []status.Status `json:"statuses,omitempty"`
	IncludeHistory bool            `json:"include_history,omitempty"`
}

// ParseFilter builds a Filter from the request parameters both the REST and
// the WebSocket endpoints accept: a comma-separated status list and a
// history flag.
func ParseFilter(statusParam, historyParam string) (Filter, error) {
	var f Filter
	if statusParam != "" {
		for _, s := range strings.Split(statusParam, ",") {
			st := status.Status(strings.TrimSpace(s))
			if !status.IsValid(st) {
				return Filter{}, fmt.Errorf("invalid status filter: %q", s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	f.IncludeHistory = historyParam == "true"
	return f, nil
}

// ProjectionStore defines the DB methods needed to build projections.
type ProjectionStore interface {
	ListOrdersByStatus(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error)
	ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error)
	ListClosedOrders(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error)
	ListOrderItems(ctx context.Context, arg database.ListOrderItemsParams) ([]database.OrderItem, error)
}

// OrderView is the stable external shape of an order with its items.
type OrderView struct {
	ID            uuid.UUID     `json:"id"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone *string       `json:"customer_phone"`
	Status        status.Status `json:"status"`
	TotalAmount   string        `json:"total_amount"`
	PaymentID     *string       `json:"payment_id"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []OrderItemView `json:"items"`
}

type OrderItemView struct {
	ID          uuid.UUID `json:"id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	Price       string    `json:"price"`
	Notes       *string   `json:"notes"`
}

// Projector builds tenant-scoped order projections.
type Projector struct {
	store ProjectionStore
}

func NewProjector(store ProjectionStore) *Projector {
	return &Projector{store: store}
}

// List returns the tenant's orders for the given filter, joined with items.
//
// Status-filtered mode returns exactly the requested statuses oldest-first.
// Dashboard mode returns active orders oldest-first, optionally unioned with
// the most recent closed orders (newest-first), deduplicated by order id in
// case a status change lands between the two queries.
func (p *Projector) List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]OrderView, error) {
	var orders []database.Order

	if len(f.Statuses) > 0 {
		var err error
		orders, err = p.store.ListOrdersByStatus(ctx, database.ListOrdersByStatusParams{
			TenantID: tenantID,
			Statuses: f.Statuses,
		})
		if err != nil {
			return nil, fmt.Errorf("list orders by status: %w", err)
		}
	} else {
		active, err := p.store.ListActiveOrders(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("list active orders: %w", err)
		}
		orders = active

		if f.IncludeHistory {
			closed, err := p.store.ListClosedOrders(ctx, database.ListClosedOrdersParams{
				TenantID: tenantID,
				Limit:    historyWindow,
			})
			if err != nil {
				return nil, fmt.Errorf("list closed orders: %w", err)
			}
			orders = append(orders, closed...)
		}

		orders = dedupByID(orders)
	}

	views := make([]OrderView, len(orders))
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		views[i] = toOrderView(o)
		ids[i] = o.ID
		index[o.ID] = i
	}

	if len(ids) > 0 {
		items, err := p.store.ListOrderItems(ctx, database.ListOrderItemsParams{
			TenantID: tenantID,
			OrderIDs: ids,
		})
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		for _, it := range items {
			i, ok := index[it.OrderID]
			if !ok {
				continue
			}
			views[i].Items = append(views[i].Items, toOrderItemView(it))
		}
	}

	return views, nil
}

// dedupByID keeps the first occurrence of each order id, preserving order.
func dedupByID(orders []database.Order) []database.Order {
	seen := make(map[uuid.UUID]bool, len(orders))
	out := orders[:0]
	for _, o := range orders {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}

func toOrderView(o database.Order) OrderView {
	v := OrderView{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Status:       o.Status,
		TotalAmount:  numericToString(o.TotalAmount),
		CreatedAt:    o.CreatedAt,
		Items:        []OrderItemView{},
	}
	if o.CustomerPhone.Valid {
		v.CustomerPhone = &o.CustomerPhone.String
	}
	if o.PaymentID.Valid {
		v.PaymentID = &o.PaymentID.String
	}
	return v
}

func toOrderItemView(it database.OrderItem) OrderItemView {
	v := OrderItemView{
		ID:          it.ID,
		ProductName: it.ProductName,
		Quantity:    it.Quantity,
		Price:       numericToString(it.Price),
	}
	if it.Notes.Valid {
		v.Notes = &it.Notes.String
	}
	return v
}

// NumericString renders a money column with two decimal places; invalid or
// NULL values come out as "0.00".
func NumericString(n pgtype.Numeric) string {
	return numericToString(n)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
