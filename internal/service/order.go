package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/status"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrEmptyCustomer   = errors.New("customer_name is required")
	ErrOpenOrderExists = errors.New("customer already has an open order")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CountOpenOrders(ctx context.Context, arg database.CountOpenOrdersParams) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateManualOrderRequest is staff-entered order input. Item lines are
// resolved against the tenant's catalog; name and price are snapshotted.
type CreateManualOrderRequest struct {
	TenantID      uuid.UUID
	CustomerName  string
	CustomerPhone string
	Items         []ManualOrderItem
}

type ManualOrderItem struct {
	ProductID string
	Quantity  int32
	Notes     string
}

// CreateWhatsAppOrderRequest is the distilled inbound-message input after the
// webhook handler has resolved the tenant and extracted the text.
type CreateWhatsAppOrderRequest struct {
	TenantID      uuid.UUID
	CustomerPhone string
	CustomerName  string
	MessageText   string
}

// CreateOrderResult is the created order with its items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order creation.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// resolvedItem is a catalog line after snapshot pricing.
type resolvedItem struct {
	name     string
	quantity int32
	price    decimal.Decimal
	notes    string
}

// CreateManualOrder resolves catalog lines, computes the total and creates
// the order with its item snapshots in one transaction. Lines whose product
// cannot be resolved (unknown id, wrong tenant, unavailable) are dropped; an
// order with no surviving lines is rejected.
func (s *OrderService) CreateManualOrder(ctx context.Context, req CreateManualOrderRequest) (*CreateOrderResult, error) {
	if req.CustomerName == "" {
		return nil, ErrEmptyCustomer
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	total := decimal.Zero
	var resolved []resolvedItem
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			log.Printf("WARN: manual order: invalid product id %q, dropping line", item.ProductID)
			continue
		}

		product, err := store.GetProduct(ctx, database.GetProductParams{
			ID:       productID,
			TenantID: req.TenantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Printf("WARN: manual order: product %s not in tenant catalog, dropping line", productID)
				continue
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		if !product.IsAvailable {
			log.Printf("WARN: manual order: product %s unavailable, dropping line", productID)
			continue
		}

		price := numericToDecimal(product.Price)
		total = total.Add(price.Mul(decimal.NewFromInt32(item.Quantity)))
		resolved = append(resolved, resolvedItem{
			name:     product.Name,
			quantity: item.Quantity,
			price:    price,
			notes:    item.Notes,
		})
	}

	if len(resolved) == 0 {
		return nil, ErrEmptyItems
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:      req.TenantID,
		CustomerName:  req.CustomerName,
		CustomerPhone: textOrNull(req.CustomerPhone),
		Status:        status.PendingPayment,
		TotalAmount:   decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(resolved))
	for _, ri := range resolved {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			TenantID:    req.TenantID,
			ProductName: ri.name,
			Quantity:    ri.quantity,
			Price:       decimalToNumeric(ri.price),
			Notes:       textOrNull(ri.notes),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// CreateWhatsAppOrder creates an unpriced order from an inbound order-intent
// message. The open-order check is read-then-write; the partial unique index
// one_open_order_per_customer closes the race, and its 23505 is reported the
// same way as the friendly check.
func (s *OrderService) CreateWhatsAppOrder(ctx context.Context, req CreateWhatsAppOrderRequest) (*CreateOrderResult, error) {
	customerName := req.CustomerName
	if customerName == "" {
		customerName = "Cliente WhatsApp"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	open, err := store.CountOpenOrders(ctx, database.CountOpenOrdersParams{
		TenantID:      req.TenantID,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("count open orders: %w", err)
	}
	if open > 0 {
		return nil, ErrOpenOrderExists
	}

	// Total starts at zero; message-driven orders are unpriced until staff
	// attach real items.
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:      req.TenantID,
		CustomerName:  customerName,
		CustomerPhone: textOrNull(req.CustomerPhone),
		Status:        status.PendingPayment,
		TotalAmount:   decimalToNumeric(decimal.Zero),
	})
	if err != nil {
		if isOpenOrderConflict(err) {
			return nil, ErrOpenOrderExists
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:     order.ID,
		TenantID:    req.TenantID,
		ProductName: "Pedido via WhatsApp",
		Quantity:    1,
		Price:       decimalToNumeric(decimal.Zero),
		Notes:       textOrNull(req.MessageText),
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isOpenOrderConflict(err) {
			return nil, ErrOpenOrderExists
		}
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: []database.OrderItem{item}}, nil
}

// isOpenOrderConflict checks for a unique violation on the open-order index
// (two inbound messages racing through the read-side check).
func isOpenOrderConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "one_open_order_per_customer"
	}
	return false
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
