package database

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ordersChannel is the NOTIFY channel fired by the orders/order_items
// triggers. The payload is the owning tenant's id.
const ordersChannel = "orders_changed"

// Listener forwards Postgres change notifications to a handler. Consumers
// treat each notification as "something changed for this tenant" and refetch;
// payload contents beyond the tenant id are never trusted.
type Listener struct {
	pool   *pgxpool.Pool
	notify func(tenantID uuid.UUID)
}

// NewListener creates a Listener that invokes notify for every change
// notification. notify must not block.
func NewListener(pool *pgxpool.Pool, notify func(tenantID uuid.UUID)) *Listener {
	return &Listener{pool: pool, notify: notify}
}

// Run blocks listening for notifications until ctx is cancelled. The
// dedicated connection is re-acquired after errors, so a dropped connection
// costs at most a missed signal burst; clients recover on the next mutation.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ERROR: orders listener: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ordersChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		tenantID, err := uuid.Parse(n.Payload)
		if err != nil {
			log.Printf("WARN: orders listener: bad payload %q", n.Payload)
			continue
		}
		l.notify(tenantID)
	}
}
