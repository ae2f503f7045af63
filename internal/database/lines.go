package database

import (
	"context"

	"github.com/google/uuid"
)

const lineColumns = `id, order_id, title, qty, price_cents, vat_rate_bps, vat_source,
	signature, modifiers, position, created_at`

func scanOrderLine(row orderScanner) (OrderLine, error) {
	var l OrderLine
	err := row.Scan(
		&l.ID, &l.OrderID, &l.Title, &l.Qty, &l.PriceCents, &l.VatRateBps, &l.VatSource,
		&l.Signature, &l.Modifiers, &l.Position, &l.CreatedAt,
	)
	return l, err
}

const createOrderLine = `
INSERT INTO order_lines (order_id, title, qty, price_cents, vat_rate_bps, vat_source, signature, modifiers, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + lineColumns

type CreateOrderLineParams struct {
	OrderID    uuid.UUID
	Title      string
	Qty        int32
	PriceCents int64
	VatRateBps int32
	VatSource  string
	Signature  string
	Modifiers  []byte
	Position   int32
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID, arg.Title, arg.Qty, arg.PriceCents, arg.VatRateBps, arg.VatSource,
		arg.Signature, arg.Modifiers, arg.Position)
	return scanOrderLine(row)
}

const incrementOrderLineQty = `
UPDATE order_lines SET qty = qty + $2
WHERE id = $1
RETURNING ` + lineColumns

type IncrementOrderLineQtyParams struct {
	ID  uuid.UUID
	Qty int32
}

func (q *Queries) IncrementOrderLineQty(ctx context.Context, arg IncrementOrderLineQtyParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, incrementOrderLineQty, arg.ID, arg.Qty)
	return scanOrderLine(row)
}

const listOrderLinesByOrder = `
SELECT ` + lineColumns + `
FROM order_lines
WHERE order_id = $1
ORDER BY position, created_at
`

func (q *Queries) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLinesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		l, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const countOrderLines = `
SELECT count(*) FROM order_lines WHERE order_id = $1
`

func (q *Queries) CountOrderLines(ctx context.Context, orderID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countOrderLines, orderID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
