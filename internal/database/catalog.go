package database

import (
	"context"

	"github.com/google/uuid"
)

const getTenant = `
SELECT id, name, receipt_prefix, default_vat_bps, created_at
FROM tenants
WHERE id = $1
`

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, getTenant, id)
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.ReceiptPrefix, &t.DefaultVatBps, &t.CreatedAt)
	return t, err
}

const getProduct = `
SELECT id, tenant_id, title, price_cents, vat_bps, active, created_at
FROM products
WHERE id = $1 AND tenant_id = $2 AND active
`

type GetProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, arg.ID, arg.TenantID)
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Title, &p.PriceCents, &p.VatBps, &p.Active, &p.CreatedAt)
	return p, err
}

const getVariant = `
SELECT id, product_id, name, delta_cents, position
FROM variants
WHERE id = $1
`

func (q *Queries) GetVariant(ctx context.Context, id uuid.UUID) (Variant, error) {
	row := q.db.QueryRow(ctx, getVariant, id)
	var v Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.DeltaCents, &v.Position)
	return v, err
}

const getMenuItem = `
SELECT id, tenant_id, product_id, vat_bps, price_cents
FROM menu_items
WHERE id = $1 AND tenant_id = $2
`

type GetMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.TenantID)
	var m MenuItem
	err := row.Scan(&m.ID, &m.TenantID, &m.ProductID, &m.VatBps, &m.PriceCents)
	return m, err
}

const listModifierGroupsByProduct = `
SELECT id, tenant_id, product_id, menu_item_id, name, min_select, max_select, position
FROM modifier_groups
WHERE product_id = $1
ORDER BY position, name
`

func (q *Queries) ListModifierGroupsByProduct(ctx context.Context, productID uuid.UUID) ([]ModifierGroup, error) {
	rows, err := q.db.Query(ctx, listModifierGroupsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModifierGroups(rows)
}

const listModifierGroupsByMenuItem = `
SELECT id, tenant_id, product_id, menu_item_id, name, min_select, max_select, position
FROM modifier_groups
WHERE menu_item_id = $1
ORDER BY position, name
`

func (q *Queries) ListModifierGroupsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]ModifierGroup, error) {
	rows, err := q.db.Query(ctx, listModifierGroupsByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModifierGroups(rows)
}

const listModifierOptionsByGroup = `
SELECT id, group_id, name, delta_cents, position
FROM modifier_options
WHERE group_id = $1
ORDER BY position, name
`

func (q *Queries) ListModifierOptionsByGroup(ctx context.Context, groupID uuid.UUID) ([]ModifierOption, error) {
	rows, err := q.db.Query(ctx, listModifierOptionsByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []ModifierOption
	for rows.Next() {
		var o ModifierOption
		if err := rows.Scan(&o.ID, &o.GroupID, &o.Name, &o.DeltaCents, &o.Position); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanModifierGroups(rows rowScanner) ([]ModifierGroup, error) {
	var groups []ModifierGroup
	for rows.Next() {
		var g ModifierGroup
		if err := rows.Scan(&g.ID, &g.TenantID, &g.ProductID, &g.MenuItemID,
			&g.Name, &g.MinSelect, &g.MaxSelect, &g.Position); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
