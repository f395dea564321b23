package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/status"
)

// Tenant is one isolated store account. Messaging fields stay NULL until the
// WhatsApp instance is provisioned.
type Tenant struct {
	ID                    uuid.UUID
	Name                  string
	EvolutionInstanceName pgtype.Text
	EvolutionAPIKey       pgtype.Text
	PixKey                pgtype.Text
	PixKeyType            pgtype.Text
	AdminPin              pgtype.Text
	CreatedAt             time.Time
}

// Profile is a staff login bound to exactly one tenant.
type Profile struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

type Order struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	Status        status.Status
	TotalAmount   pgtype.Numeric
	PaymentID     pgtype.Text
	CreatedAt     time.Time
}

// OrderItem snapshots product name and price at creation time; it never
// references the catalog row. TenantID is denormalized for row scoping.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	TenantID    uuid.UUID
	ProductName string
	Quantity    int32
	Price       pgtype.Numeric
	Notes       pgtype.Text
}

type Product struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    pgtype.Text
	IsAvailable bool
	CreatedAt   time.Time
}
