package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/status"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getProductFn      func(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	countOpenOrdersFn func(ctx context.Context, arg database.CountOpenOrdersParams) (int64, error)
	createOrderFn     func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

func (m *mockOrderStore) GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	return m.getProductFn(ctx, arg)
}
func (m *mockOrderStore) CountOpenOrders(ctx context.Context, arg database.CountOpenOrdersParams) (int64, error) {
	return m.countOpenOrdersFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

// catalogStore returns a store whose catalog contains the given products and
// which records created orders/items.
func catalogStore(tenantID uuid.UUID, products map[uuid.UUID]database.Product) *mockOrderStore {
	return &mockOrderStore{
		getProductFn: func(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
			if arg.TenantID != tenantID {
				return database.Product{}, pgx.ErrNoRows
			}
			p, ok := products[arg.ID]
			if !ok {
				return database.Product{}, pgx.ErrNoRows
			}
			return p, nil
		},
		countOpenOrdersFn: func(ctx context.Context, arg database.CountOpenOrdersParams) (int64, error) {
			return 0, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:            uuid.New(),
				TenantID:      arg.TenantID,
				CustomerName:  arg.CustomerName,
				CustomerPhone: arg.CustomerPhone,
				Status:        arg.Status,
				TotalAmount:   arg.TotalAmount,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:          uuid.New(),
				OrderID:     arg.OrderID,
				TenantID:    arg.TenantID,
				ProductName: arg.ProductName,
				Quantity:    arg.Quantity,
				Price:       arg.Price,
				Notes:       arg.Notes,
			}, nil
		},
	}
}

// --- CreateManualOrder ---

func TestCreateManualOrderComputesTotal(t *testing.T) {
	tenantID := uuid.New()
	burgerID := uuid.New()
	sodaID := uuid.New()
	store := catalogStore(tenantID, map[uuid.UUID]database.Product{
		burgerID: {ID: burgerID, TenantID: tenantID, Name: "X-Burger", Price: makeNumeric("25.00"), IsAvailable: true},
		sodaID:   {ID: sodaID, TenantID: tenantID, Name: "Guaraná", Price: makeNumeric("8.50"), IsAvailable: true},
	})
	svc, tx := newTestService(store)

	result, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID:     tenantID,
		CustomerName: "João",
		Items: []ManualOrderItem{
			{ProductID: burgerID.String(), Quantity: 2},
			{ProductID: sodaID.String(), Quantity: 1, Notes: "sem gelo"},
		},
	})
	if err != nil {
		t.Fatalf("CreateManualOrder: %v", err)
	}

	if !numericEquals(result.Order.TotalAmount, "58.50") {
		t.Errorf("total = %s, want 58.50", numericToDecimal(result.Order.TotalAmount))
	}
	if result.Order.Status != status.PendingPayment {
		t.Errorf("status = %s, want pending_payment", result.Order.Status)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	if result.Items[0].ProductName != "X-Burger" {
		t.Errorf("item name = %s, want snapshot X-Burger", result.Items[0].ProductName)
	}
	if !numericEquals(result.Items[1].Price, "8.50") {
		t.Errorf("item price = %s, want snapshot 8.50", numericToDecimal(result.Items[1].Price))
	}
	if !result.Items[1].Notes.Valid || result.Items[1].Notes.String != "sem gelo" {
		t.Errorf("item notes = %+v, want sem gelo", result.Items[1].Notes)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateManualOrderEmptyItems(t *testing.T) {
	svc, _ := newTestService(catalogStore(uuid.New(), nil))

	_, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID:     uuid.New(),
		CustomerName: "João",
	})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("err = %v, want ErrEmptyItems", err)
	}
}

func TestCreateManualOrderAllItemsUnresolvable(t *testing.T) {
	tenantID := uuid.New()
	svc, tx := newTestService(catalogStore(tenantID, nil))

	_, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID:     tenantID,
		CustomerName: "João",
		Items: []ManualOrderItem{
			{ProductID: uuid.NewString(), Quantity: 1},
			{ProductID: "not-a-uuid", Quantity: 1},
		},
	})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("err = %v, want ErrEmptyItems when no line resolves", err)
	}
	if tx.committed {
		t.Error("transaction must not commit on validation failure")
	}
}

func TestCreateManualOrderSkipsUnavailableProduct(t *testing.T) {
	tenantID := uuid.New()
	burgerID := uuid.New()
	offID := uuid.New()
	store := catalogStore(tenantID, map[uuid.UUID]database.Product{
		burgerID: {ID: burgerID, TenantID: tenantID, Name: "X-Burger", Price: makeNumeric("25.00"), IsAvailable: true},
		offID:    {ID: offID, TenantID: tenantID, Name: "Esgotado", Price: makeNumeric("99.00"), IsAvailable: false},
	})
	svc, _ := newTestService(store)

	result, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID:     tenantID,
		CustomerName: "Maria",
		Items: []ManualOrderItem{
			{ProductID: burgerID.String(), Quantity: 1},
			{ProductID: offID.String(), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateManualOrder: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1 (unavailable line dropped)", len(result.Items))
	}
	if !numericEquals(result.Order.TotalAmount, "25.00") {
		t.Errorf("total = %s, want 25.00", numericToDecimal(result.Order.TotalAmount))
	}
}

func TestCreateManualOrderInvalidQuantity(t *testing.T) {
	svc, _ := newTestService(catalogStore(uuid.New(), nil))

	_, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID:     uuid.New(),
		CustomerName: "João",
		Items:        []ManualOrderItem{{ProductID: uuid.NewString(), Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestCreateManualOrderMissingCustomer(t *testing.T) {
	svc, _ := newTestService(catalogStore(uuid.New(), nil))

	_, err := svc.CreateManualOrder(context.Background(), CreateManualOrderRequest{
		TenantID: uuid.New(),
		Items:    []ManualOrderItem{{ProductID: uuid.NewString(), Quantity: 1}},
	})
	if !errors.Is(err, ErrEmptyCustomer) {
		t.Fatalf("err = %v, want ErrEmptyCustomer", err)
	}
}

// --- CreateWhatsAppOrder ---

func TestCreateWhatsAppOrderCreatesUnpricedOrder(t *testing.T) {
	tenantID := uuid.New()
	store := catalogStore(tenantID, nil)
	svc, tx := newTestService(store)

	result, err := svc.CreateWhatsAppOrder(context.Background(), CreateWhatsAppOrderRequest{
		TenantID:      tenantID,
		CustomerPhone: "5511999990000",
		CustomerName:  "Ana",
		MessageText:   "quero um pedido",
	})
	if err != nil {
		t.Fatalf("CreateWhatsAppOrder: %v", err)
	}

	if result.Order.CustomerName != "Ana" {
		t.Errorf("customer = %s, want Ana", result.Order.CustomerName)
	}
	if result.Order.Status != status.PendingPayment {
		t.Errorf("status = %s, want pending_payment", result.Order.Status)
	}
	if !numericEquals(result.Order.TotalAmount, "0.00") {
		t.Errorf("total = %s, want 0.00 (unpriced)", numericToDecimal(result.Order.TotalAmount))
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}
	item := result.Items[0]
	if item.ProductName != "Pedido via WhatsApp" {
		t.Errorf("item name = %s", item.ProductName)
	}
	if !item.Notes.Valid || item.Notes.String != "quero um pedido" {
		t.Errorf("item notes = %+v, want raw message text", item.Notes)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateWhatsAppOrderDefaultsCustomerName(t *testing.T) {
	tenantID := uuid.New()
	svc, _ := newTestService(catalogStore(tenantID, nil))

	result, err := svc.CreateWhatsAppOrder(context.Background(), CreateWhatsAppOrderRequest{
		TenantID:      tenantID,
		CustomerPhone: "5511999990000",
		MessageText:   "pedido",
	})
	if err != nil {
		t.Fatalf("CreateWhatsAppOrder: %v", err)
	}
	if result.Order.CustomerName != "Cliente WhatsApp" {
		t.Errorf("customer = %s, want Cliente WhatsApp", result.Order.CustomerName)
	}
}

func TestCreateWhatsAppOrderOpenOrderExists(t *testing.T) {
	tenantID := uuid.New()
	store := catalogStore(tenantID, nil)
	store.countOpenOrdersFn = func(ctx context.Context, arg database.CountOpenOrdersParams) (int64, error) {
		return 1, nil
	}
	svc, tx := newTestService(store)

	_, err := svc.CreateWhatsAppOrder(context.Background(), CreateWhatsAppOrderRequest{
		TenantID:      tenantID,
		CustomerPhone: "5511999990000",
		MessageText:   "pedido",
	})
	if !errors.Is(err, ErrOpenOrderExists) {
		t.Fatalf("err = %v, want ErrOpenOrderExists", err)
	}
	if tx.committed {
		t.Error("transaction must not commit when an open order exists")
	}
}

func TestCreateWhatsAppOrderUniqueIndexRace(t *testing.T) {
	// Two messages race past the read-side check; the second insert trips the
	// partial unique index and must surface as the same open-order signal.
	tenantID := uuid.New()
	store := catalogStore(tenantID, nil)
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "one_open_order_per_customer"}
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateWhatsAppOrder(context.Background(), CreateWhatsAppOrderRequest{
		TenantID:      tenantID,
		CustomerPhone: "5511999990000",
		MessageText:   "pedido",
	})
	if !errors.Is(err, ErrOpenOrderExists) {
		t.Fatalf("err = %v, want ErrOpenOrderExists on unique violation", err)
	}
}

func TestCreateWhatsAppOrderStoreFailure(t *testing.T) {
	tenantID := uuid.New()
	store := catalogStore(tenantID, nil)
	boom := errors.New("connection reset")
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, boom
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateWhatsAppOrder(context.Background(), CreateWhatsAppOrderRequest{
		TenantID:      tenantID,
		CustomerPhone: "5511999990000",
		MessageText:   "pedido",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
