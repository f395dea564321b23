package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tenantColumns = `id, name, evolution_instance_name, evolution_api_key, pix_key, pix_key_type, admin_pin, created_at`

func scanTenant(row interface{ Scan(dest ...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.EvolutionInstanceName,
		&t.EvolutionAPIKey,
		&t.PixKey,
		&t.PixKeyType,
		&t.AdminPin,
		&t.CreatedAt,
	)
	return t, err
}

const getTenant = `
SELECT ` + tenantColumns + `
FROM tenants
WHERE id = $1
`

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, getTenant, id))
}

const getTenantByInstanceName = `
SELECT ` + tenantColumns + `
FROM tenants
WHERE evolution_instance_name = $1
`

// GetTenantByInstanceName resolves an Evolution instance identifier to its
// tenant. Returns pgx.ErrNoRows for unknown instances.
func (q *Queries) GetTenantByInstanceName(ctx context.Context, instanceName string) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, getTenantByInstanceName, instanceName))
}

type CreateTenantParams struct {
	Name string
}

const createTenant = `
INSERT INTO tenants (name)
VALUES ($1)
RETURNING ` + tenantColumns + `
`

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, createTenant, arg.Name))
}

type UpdateTenantSettingsParams struct {
	ID         uuid.UUID
	Name       string
	PixKey     pgtype.Text
	PixKeyType pgtype.Text
}

const updateTenantSettings = `
UPDATE tenants
SET name = $2, pix_key = $3, pix_key_type = $4
WHERE id = $1
RETURNING ` + tenantColumns + `
`

func (q *Queries) UpdateTenantSettings(ctx context.Context, arg UpdateTenantSettingsParams) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, updateTenantSettings, arg.ID, arg.Name, arg.PixKey, arg.PixKeyType))
}

type UpdateTenantInstanceParams struct {
	ID                    uuid.UUID
	EvolutionInstanceName string
	EvolutionAPIKey       string
}

const updateTenantInstance = `
UPDATE tenants
SET evolution_instance_name = $2, evolution_api_key = $3
WHERE id = $1
RETURNING ` + tenantColumns + `
`

func (q *Queries) UpdateTenantInstance(ctx context.Context, arg UpdateTenantInstanceParams) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, updateTenantInstance, arg.ID, arg.EvolutionInstanceName, arg.EvolutionAPIKey))
}

type UpdateTenantPinParams struct {
	ID       uuid.UUID
	AdminPin string
}

const updateTenantPin = `
UPDATE tenants
SET admin_pin = $2
WHERE id = $1
RETURNING ` + tenantColumns + `
`

func (q *Queries) UpdateTenantPin(ctx context.Context, arg UpdateTenantPinParams) (Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, updateTenantPin, arg.ID, arg.AdminPin))
}

const profileColumns = `id, tenant_id, email, hashed_password, full_name, role, created_at`

func scanProfile(row interface{ Scan(dest ...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Email,
		&p.HashedPassword,
		&p.FullName,
		&p.Role,
		&p.CreatedAt,
	)
	return p, err
}

const getProfileByEmail = `
SELECT ` + profileColumns + `
FROM profiles
WHERE email = $1
`

func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfileByEmail, email))
}

const getProfile = `
SELECT ` + profileColumns + `
FROM profiles
WHERE id = $1
`

func (q *Queries) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, getProfile, id))
}

type CreateProfileParams struct {
	TenantID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

const createProfile = `
INSERT INTO profiles (tenant_id, email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + profileColumns + `
`

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	return scanProfile(q.db.QueryRow(ctx, createProfile,
		arg.TenantID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role))
}
