package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, kind, status, table_id,
	draft_no, draft_label, draft_issued_at,
	receipt_no, receipt_label, receipt_issued_at,
	subtotal_excl_vat_cents, total_incl_vat_cents, vat_breakdown,
	payment_method, payment_ref, cash_received_cents, change_cents, paid_at,
	sent_at, in_prep_at, ready_at, completed_at, cancelled_at,
	cancel_reason, void_reason, parked_label,
	created_by, created_at, updated_at`

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.Kind, &o.Status, &o.TableID,
		&o.DraftNo, &o.DraftLabel, &o.DraftIssuedAt,
		&o.ReceiptNo, &o.ReceiptLabel, &o.ReceiptIssuedAt,
		&o.SubtotalExclVatCents, &o.TotalInclVatCents, &o.VatBreakdown,
		&o.PaymentMethod, &o.PaymentRef, &o.CashReceivedCents, &o.ChangeCents, &o.PaidAt,
		&o.SentAt, &o.InPrepAt, &o.ReadyAt, &o.CompletedAt, &o.CancelledAt,
		&o.CancelReason, &o.VoidReason, &o.ParkedLabel,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (tenant_id, kind, table_id, created_by)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TenantID  uuid.UUID
	Kind      string
	TableID   pgtype.Text
	CreatedBy uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.TenantID, arg.Kind, arg.TableID, arg.CreatedBy)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND tenant_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.TenantID)
	return scanOrder(row)
}

const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND tenant_id = $2
FOR NO KEY UPDATE
`

type GetOrderForUpdateParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// GetOrderForUpdate locks the order row for the rest of the transaction,
// serializing concurrent mutations of the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.TenantID)
	return scanOrder(row)
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR kind = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	TenantID uuid.UUID
	Status   pgtype.Text
	Kind     pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.TenantID, arg.Status, arg.Kind, arg.Limit, arg.Offset)
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

const getLastCompletedOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE tenant_id = $1 AND status = 'COMPLETED'
ORDER BY completed_at DESC
LIMIT 1
`

func (q *Queries) GetLastCompletedOrder(ctx context.Context, tenantID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getLastCompletedOrder, tenantID)
	return scanOrder(row)
}

const setOrderStatus = `
UPDATE orders SET
	status = $3,
	updated_at = $5,
	sent_at = CASE WHEN $3 = 'SENT' THEN $5 ELSE sent_at END,
	in_prep_at = CASE WHEN $3 = 'IN_PREP' THEN $5 ELSE in_prep_at END,
	ready_at = CASE WHEN $3 = 'READY' THEN $5 ELSE ready_at END,
	paid_at = CASE WHEN $3 = 'PAID' THEN $5 ELSE paid_at END,
	completed_at = CASE WHEN $3 = 'COMPLETED' THEN $5 ELSE completed_at END,
	cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN $5 ELSE cancelled_at END
WHERE id = $1 AND tenant_id = $2 AND status = $4
RETURNING ` + orderColumns

type SetOrderStatusParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Status         string
	ExpectedStatus string
	Now            time.Time
}

// SetOrderStatus writes the new status and stamps the matching
// transition timestamp. The expected-status predicate makes the write an
// optimistic compare-and-swap: zero rows means a concurrent transition won.
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, setOrderStatus, arg.ID, arg.TenantID, arg.Status, arg.ExpectedStatus, arg.Now)
	return scanOrder(row)
}

const markOrderPaid = `
UPDATE orders SET
	status = 'PAID',
	payment_method = $4,
	payment_ref = $5,
	cash_received_cents = $6,
	change_cents = $7,
	paid_at = $8,
	updated_at = $8
WHERE id = $1 AND tenant_id = $2 AND status = $3
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ExpectedStatus    string
	PaymentMethod     string
	PaymentRef        pgtype.Text
	CashReceivedCents pgtype.Int8
	ChangeCents       pgtype.Int8
	Now               time.Time
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderPaid,
		arg.ID, arg.TenantID, arg.ExpectedStatus,
		arg.PaymentMethod, arg.PaymentRef, arg.CashReceivedCents, arg.ChangeCents, arg.Now)
	return scanOrder(row)
}

const parkOrder = `
UPDATE orders SET status = 'PARKED', parked_label = $4, updated_at = $5
WHERE id = $1 AND tenant_id = $2 AND status = $3
RETURNING ` + orderColumns

type ParkOrderParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ExpectedStatus string
	Label          pgtype.Text
	Now            time.Time
}

func (q *Queries) ParkOrder(ctx context.Context, arg ParkOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, parkOrder, arg.ID, arg.TenantID, arg.ExpectedStatus, arg.Label, arg.Now)
	return scanOrder(row)
}

const voidOrder = `
UPDATE orders SET status = 'VOIDED', void_reason = $4, updated_at = $5
WHERE id = $1 AND tenant_id = $2 AND status = $3
RETURNING ` + orderColumns

type VoidOrderParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ExpectedStatus string
	Reason         pgtype.Text
	Now            time.Time
}

func (q *Queries) VoidOrder(ctx context.Context, arg VoidOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, voidOrder, arg.ID, arg.TenantID, arg.ExpectedStatus, arg.Reason, arg.Now)
	return scanOrder(row)
}

const cancelOrder = `
UPDATE orders SET status = 'CANCELLED', cancel_reason = $4, cancelled_at = $5, updated_at = $5
WHERE id = $1 AND tenant_id = $2 AND status = $3
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ExpectedStatus string
	Reason         string
	Now            time.Time
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.TenantID, arg.ExpectedStatus, arg.Reason, arg.Now)
	return scanOrder(row)
}

const setDraftNumber = `
UPDATE orders SET draft_no = $3, draft_label = $4, draft_issued_at = $5, updated_at = $5
WHERE id = $1 AND tenant_id = $2 AND draft_no IS NULL
RETURNING ` + orderColumns

type SetDraftNumberParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Number   int64
	Label    string
	Now      time.Time
}

func (q *Queries) SetDraftNumber(ctx context.Context, arg SetDraftNumberParams) (Order, error) {
	row := q.db.QueryRow(ctx, setDraftNumber, arg.ID, arg.TenantID, arg.Number, arg.Label, arg.Now)
	return scanOrder(row)
}

const setReceiptNumber = `
UPDATE orders SET receipt_no = $3, receipt_label = $4, receipt_issued_at = $5, updated_at = $5
WHERE id = $1 AND tenant_id = $2 AND receipt_no IS NULL
RETURNING ` + orderColumns

type SetReceiptNumberParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Number   int64
	Label    string
	Now      time.Time
}

func (q *Queries) SetReceiptNumber(ctx context.Context, arg SetReceiptNumberParams) (Order, error) {
	row := q.db.QueryRow(ctx, setReceiptNumber, arg.ID, arg.TenantID, arg.Number, arg.Label, arg.Now)
	return scanOrder(row)
}

const updateOrderTotals = `
UPDATE orders SET
	subtotal_excl_vat_cents = $3,
	total_incl_vat_cents = $4,
	vat_breakdown = $5,
	updated_at = $6
WHERE id = $1 AND tenant_id = $2
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	SubtotalExclVatCents int64
	TotalInclVatCents    int64
	VatBreakdown         []byte
	Now                  time.Time
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID, arg.TenantID, arg.SubtotalExclVatCents, arg.TotalInclVatCents, arg.VatBreakdown, arg.Now)
	return scanOrder(row)
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1 AND tenant_id = $2
`

type DeleteOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) error {
	_, err := q.db.Exec(ctx, deleteOrder, arg.ID, arg.TenantID)
	return err
}
