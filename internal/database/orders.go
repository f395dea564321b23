package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/status"
)

const orderColumns = `id, tenant_id, customer_name, customer_phone, status, total_amount, payment_id, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.TenantID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.Status,
		&o.TotalAmount,
		&o.PaymentID,
		&o.CreatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	TenantID      uuid.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	Status        status.Status
	TotalAmount   pgtype.Numeric
}

const createOrder = `
INSERT INTO orders (tenant_id, customer_name, customer_phone, status, total_amount)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns + `
`

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.TenantID, arg.CustomerName, arg.CustomerPhone, string(arg.Status), arg.TotalAmount))
}

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND tenant_id = $2
`

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.TenantID))
}

const getOrderByID = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

// GetOrderByID looks an order up without a tenant filter. Only the payment
// webhook uses it: the gateway's external_reference carries the order id and
// nothing else.
func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

type CountOpenOrdersParams struct {
	TenantID      uuid.UUID
	CustomerPhone string
}

const countOpenOrders = `
SELECT COUNT(*)
FROM orders
WHERE tenant_id = $1
  AND customer_phone = $2
  AND status IN ('pending_payment', 'preparing')
`

// CountOpenOrders backs the at-most-one-open-order-per-customer check. The
// partial unique index one_open_order_per_customer enforces the same rule at
// write time.
func (q *Queries) CountOpenOrders(ctx context.Context, arg CountOpenOrdersParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOpenOrders, arg.TenantID, arg.CustomerPhone).Scan(&n)
	return n, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type ListOrdersByStatusParams struct {
	TenantID uuid.UUID
	Statuses []status.Status
}

const listOrdersByStatus = `
SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND status = ANY($2)
ORDER BY created_at ASC
`

// ListOrdersByStatus returns the tenant's orders in the given statuses,
// oldest first (FIFO for operational queues).
func (q *Queries) ListOrdersByStatus(ctx context.Context, arg ListOrdersByStatusParams) ([]Order, error) {
	statuses := make([]string, len(arg.Statuses))
	for i, s := range arg.Statuses {
		statuses[i] = string(s)
	}
	return q.queryOrders(ctx, listOrdersByStatus, arg.TenantID, statuses)
}

const listActiveOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND status NOT IN ('completed', 'cancelled')
ORDER BY created_at ASC
`

func (q *Queries) ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, listActiveOrders, tenantID)
}

type ListClosedOrdersParams struct {
	TenantID uuid.UUID
	Limit    int32
}

const listClosedOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND status IN ('completed', 'cancelled')
ORDER BY created_at DESC
LIMIT $2
`

// ListClosedOrders returns the most recent completed/cancelled orders,
// newest first.
func (q *Queries) ListClosedOrders(ctx context.Context, arg ListClosedOrdersParams) ([]Order, error) {
	return q.queryOrders(ctx, listClosedOrders, arg.TenantID, arg.Limit)
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Status     status.Status
	PrevStatus status.Status
}

const updateOrderStatus = `
UPDATE orders
SET status = $3
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + orderColumns + `
`

// UpdateOrderStatus applies a transition only if the order is still in
// PrevStatus. pgx.ErrNoRows means the order moved (or never existed) between
// the caller's read and this write.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID, arg.TenantID, string(arg.Status), string(arg.PrevStatus)))
}

type MarkOrderPaidParams struct {
	ID        uuid.UUID
	PaymentID string
}

const markOrderPaid = `
UPDATE orders
SET status = 'paid', payment_id = $2
WHERE id = $1 AND status = 'pending_payment'
RETURNING ` + orderColumns + `
`

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.PaymentID))
}

type CancelOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

const cancelOrder = `
UPDATE orders
SET status = 'cancelled'
WHERE id = $1 AND tenant_id = $2 AND status NOT IN ('completed', 'cancelled')
RETURNING ` + orderColumns + `
`

// CancelOrder enforces the not-yet-terminal precondition atomically.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.TenantID))
}

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	TenantID    uuid.UUID
	ProductName string
	Quantity    int32
	Price       pgtype.Numeric
	Notes       pgtype.Text
}

const createOrderItem = `
INSERT INTO order_items (order_id, tenant_id, product_name, quantity, price, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, tenant_id, product_name, quantity, price, notes
`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.TenantID, arg.ProductName, arg.Quantity, arg.Price, arg.Notes)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.TenantID, &it.ProductName, &it.Quantity, &it.Price, &it.Notes)
	return it, err
}

type ListOrderItemsParams struct {
	TenantID uuid.UUID
	OrderIDs []uuid.UUID
}

const listOrderItems = `
SELECT id, order_id, tenant_id, product_name, quantity, price, notes
FROM order_items
WHERE tenant_id = $1 AND order_id = ANY($2)
ORDER BY id
`

// ListOrderItems fetches the items of several orders in one round trip.
func (q *Queries) ListOrderItems(ctx context.Context, arg ListOrderItemsParams) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, arg.TenantID, arg.OrderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TenantID, &it.ProductName, &it.Quantity, &it.Price, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
