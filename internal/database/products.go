package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, tenant_id, name, price, category, is_available, created_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Price,
		&p.Category,
		&p.IsAvailable,
		&p.CreatedAt,
	)
	return p, err
}

type GetProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND tenant_id = $2
`

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, arg.ID, arg.TenantID))
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE tenant_id = $1
ORDER BY category, name
`

func (q *Queries) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type CreateProductParams struct {
	TenantID    uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    pgtype.Text
	IsAvailable bool
}

const createProduct = `
INSERT INTO products (tenant_id, name, price, category, is_available)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + productColumns + `
`

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.TenantID, arg.Name, arg.Price, arg.Category, arg.IsAvailable))
}

type UpdateProductParams struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    pgtype.Text
	IsAvailable bool
}

const updateProduct = `
UPDATE products
SET name = $3, price = $4, category = $5, is_available = $6
WHERE id = $1 AND tenant_id = $2
RETURNING ` + productColumns + `
`

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.TenantID, arg.Name, arg.Price, arg.Category, arg.IsAvailable))
}

type DeleteProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

const deleteProduct = `
DELETE FROM products
WHERE id = $1 AND tenant_id = $2
`

func (q *Queries) DeleteProduct(ctx context.Context, arg DeleteProductParams) error {
	tag, err := q.db.Exec(ctx, deleteProduct, arg.ID, arg.TenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
