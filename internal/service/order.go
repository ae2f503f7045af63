package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/enum"
	"github.com/tillpoint/api/internal/events"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore defines the DB methods needed by ledger operations.
// Satisfied by *database.Queries (and its WithTx variant).
type LedgerStore interface {
	CatalogStore
	SequenceStore

	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	ParkOrder(ctx context.Context, arg database.ParkOrderParams) (database.Order, error)
	VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) error
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)

	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	IncrementOrderLineQty(ctx context.Context, arg database.IncrementOrderLineQtyParams) (database.OrderLine, error)
	CountOrderLines(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// NewLedgerStore creates a LedgerStore from a DBTX (pool or tx).
type NewLedgerStore func(db database.DBTX) LedgerStore

// LedgerService orchestrates the order lifecycle. Every mutating
// operation runs in one transaction: guards, writes and sequence
// allocation either all land or none do. Events go out after commit.
type LedgerService struct {
	pool      TxBeginner
	newStore  NewLedgerStore
	alloc     *SequenceAllocator
	publisher events.Publisher
	now       func() time.Time
}

func NewLedgerService(pool TxBeginner, newStore NewLedgerStore, alloc *SequenceAllocator, publisher events.Publisher) *LedgerService {
	return &LedgerService{
		pool:      pool,
		newStore:  newStore,
		alloc:     alloc,
		publisher: publisher,
		now:       time.Now,
	}
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	Order database.Order
	Lines []database.OrderLine
}

// --- Requests ---

type CreateOrderRequest struct {
	TenantID  uuid.UUID
	CreatedBy uuid.UUID
	Kind      string
	TableID   string
}

type AddLineRequest struct {
	TenantID          uuid.UUID
	OrderID           uuid.UUID
	ProductID         string
	VariantID         string
	MenuItemID        string
	Qty               int32
	SelectedOptionIDs []string
}

type PayRequest struct {
	TenantID          uuid.UUID
	OrderID           uuid.UUID
	Method            string
	PaymentRef        string
	CashReceivedCents *int64
}

// --- Operations ---

// Create opens a new order and issues its draft number atomically.
func (s *LedgerService) Create(ctx context.Context, req CreateOrderRequest) (*OrderDetail, error) {
	kind := req.Kind
	if kind == "" {
		kind = enum.OrderKindQuick
	}
	if kind != enum.OrderKindQuick && kind != enum.OrderKindTracked {
		return nil, ErrInvalidKind
	}
	if kind == enum.OrderKindTracked && req.TableID == "" {
		return nil, ErrTableRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()

	tableID := pgtype.Text{}
	if req.TableID != "" {
		tableID = pgtype.Text{String: req.TableID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:  req.TenantID,
		Kind:      kind,
		TableID:   tableID,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	order, err = s.alloc.EnsureDraftNumber(ctx, store, order, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderUpdated, order)
	return &OrderDetail{Order: order}, nil
}

// AddLine prices a requested line against the catalog and merges it
// into the order, then recomputes the order's VAT totals. Lines can
// only be added while the order is OPEN or PARKED.
func (s *LedgerService) AddLine(ctx context.Context, req AddLineRequest) (*OrderDetail, error) {
	if req.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	selectedIDs := make([]uuid.UUID, len(req.SelectedOptionIDs))
	for i, raw := range req.SelectedOptionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("selected_option_ids[%d]: %w", i, ErrInvalidOptionID)
		}
		selectedIDs[i] = id
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:       req.OrderID,
		TenantID: req.TenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !isOpenOrParked(order.Status) {
		return nil, &GuardError{Code: CodeOrderNotOpen, Status: order.Status, Reason: "lines can only be added to OPEN or PARKED orders"}
	}

	tenant, err := store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	product, err := store.GetProduct(ctx, database.GetProductParams{
		ID:       productID,
		TenantID: req.TenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	var variant *database.Variant
	if req.VariantID != "" {
		vid, err := uuid.Parse(req.VariantID)
		if err != nil {
			return nil, ErrInvalidVariantID
		}
		v, err := store.GetVariant(ctx, vid)
		if err != nil {
			if isNoRows(err) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if v.ProductID != product.ID {
			return nil, ErrVariantMismatch
		}
		variant = &v
	}

	var menuItem *database.MenuItem
	var menuItemID *uuid.UUID
	if req.MenuItemID != "" {
		mid, err := uuid.Parse(req.MenuItemID)
		if err != nil {
			return nil, ErrInvalidMenuItemID
		}
		m, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:       mid,
			TenantID: req.TenantID,
		})
		if err != nil {
			if isNoRows(err) {
				return nil, ErrMenuItemNotFound
			}
			return nil, fmt.Errorf("get menu item: %w", err)
		}
		if m.ProductID != product.ID {
			return nil, ErrMenuItemMismatch
		}
		menuItem = &m
		menuItemID = &mid
	}

	groups, err := resolveModifierGroups(ctx, store, product.ID, menuItemID)
	if err != nil {
		return nil, err
	}

	line, err := buildLine(product, variant, menuItem, tenant, groups, selectedIDs)
	if err != nil {
		return nil, err
	}

	lines, err := store.ListOrderLinesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	if existing := findMergeableLine(lines, line.Title, line.Signature); existing != nil {
		if _, err := store.IncrementOrderLineQty(ctx, database.IncrementOrderLineQtyParams{
			ID:  existing.ID,
			Qty: req.Qty,
		}); err != nil {
			return nil, fmt.Errorf("merge order line: %w", err)
		}
	} else {
		if _, err := store.CreateOrderLine(ctx, database.CreateOrderLineParams{
			OrderID:    order.ID,
			Title:      line.Title,
			Qty:        req.Qty,
			PriceCents: line.UnitPriceCents,
			VatRateBps: line.VatRateBps,
			VatSource:  line.VatSource,
			Signature:  line.Signature,
			Modifiers:  line.Modifiers,
			Position:   int32(len(lines) + 1),
		}); err != nil {
			return nil, fmt.Errorf("create order line: %w", err)
		}
	}

	order, lines, err = s.recalculate(ctx, store, order, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderUpdated, order)
	return &OrderDetail{Order: order, Lines: lines}, nil
}

// recalculate reloads the order's lines, recomputes the VAT breakdown
// and persists the totals. Must run inside the mutating transaction.
func (s *LedgerService) recalculate(ctx context.Context, store LedgerStore, order database.Order, now time.Time) (database.Order, []database.OrderLine, error) {
	lines, err := store.ListOrderLinesByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("list order lines: %w", err)
	}

	totals := ComputeTotals(lines)
	breakdown, err := json.Marshal(totals.Breakdown)
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("marshal vat breakdown: %w", err)
	}

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:                   order.ID,
		TenantID:             order.TenantID,
		SubtotalExclVatCents: totals.SubtotalExclVatCents,
		TotalInclVatCents:    totals.TotalInclVatCents,
		VatBreakdown:         breakdown,
		Now:                  now,
	})
	if err != nil {
		return database.Order{}, nil, fmt.Errorf("update order totals: %w", err)
	}
	return updated, lines, nil
}

// Transition applies a generic lifecycle transition and stamps the
// matching timestamp. Rejected transitions carry the from/to pair.
func (s *LedgerService) Transition(ctx context.Context, tenantID, orderID uuid.UUID, to string) (database.Order, error) {
	if !isValidStatus(to) {
		return database.Order{}, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:       orderID,
		TenantID: tenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateTransition(order.Status, to); err != nil {
		return database.Order{}, err
	}

	updated, err := store.SetOrderStatus(ctx, database.SetOrderStatusParams{
		ID:             order.ID,
		TenantID:       tenantID,
		Status:         to,
		ExpectedStatus: order.Status,
		Now:            s.now(),
	})
	if err != nil {
		if isNoRows(err) {
			// Row lock makes this unreachable in practice, but the CAS
			// predicate keeps a concurrent writer from being silently lost.
			return database.Order{}, &GuardError{Code: CodeOrderConflict, Status: order.Status, Reason: "order changed concurrently, retry"}
		}
		return database.Order{}, fmt.Errorf("set order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderUpdated, updated)
	return updated, nil
}

// Pay records a payment and moves the order to PAID. The receipt number
// is issued in the same transaction on the first successful payment;
// replays return the number issued then.
func (s *LedgerService) Pay(ctx context.Context, req PayRequest) (database.Order, error) {
	if req.Method != enum.PaymentMethodPin && req.Method != enum.PaymentMethodCash {
		return database.Order{}, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:       req.OrderID,
		TenantID: req.TenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if guard := canPay(order); guard != nil {
		return database.Order{}, guard
	}

	cashReceived := pgtype.Int8{}
	change := pgtype.Int8{}
	if req.Method == enum.PaymentMethodCash {
		if req.CashReceivedCents == nil {
			return database.Order{}, ErrCashRequired
		}
		if *req.CashReceivedCents < order.TotalInclVatCents {
			return database.Order{}, ErrCashInsufficient
		}
		cashReceived = pgtype.Int8{Int64: *req.CashReceivedCents, Valid: true}
		change = pgtype.Int8{Int64: *req.CashReceivedCents - order.TotalInclVatCents, Valid: true}
	}

	paymentRef := pgtype.Text{}
	if req.PaymentRef != "" {
		paymentRef = pgtype.Text{String: req.PaymentRef, Valid: true}
	}

	updated, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		ID:                order.ID,
		TenantID:          req.TenantID,
		ExpectedStatus:    order.Status,
		PaymentMethod:     req.Method,
		PaymentRef:        paymentRef,
		CashReceivedCents: cashReceived,
		ChangeCents:       change,
		Now:               now,
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, &GuardError{Code: CodeOrderConflict, Status: order.Status, Reason: "order changed concurrently, retry"}
		}
		return database.Order{}, fmt.Errorf("mark order paid: %w", err)
	}

	tenant, err := store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return database.Order{}, fmt.Errorf("get tenant: %w", err)
	}
	prefix := ""
	if tenant.ReceiptPrefix.Valid {
		prefix = tenant.ReceiptPrefix.String
	}

	updated, err = s.alloc.EnsureReceiptNumber(ctx, store, updated, prefix, now)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderUpdated, updated)
	return updated, nil
}

// Void writes off a QUICK order that was never paid.
func (s *LedgerService) Void(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (database.Order, error) {
	return s.guardedWrite(ctx, tenantID, orderID, func(store LedgerStore, order database.Order, now time.Time) (database.Order, error) {
		if guard := canVoid(order); guard != nil {
			return database.Order{}, guard
		}
		r := pgtype.Text{}
		if reason != "" {
			r = pgtype.Text{String: reason, Valid: true}
		}
		return store.VoidOrder(ctx, database.VoidOrderParams{
			ID:             order.ID,
			TenantID:       tenantID,
			ExpectedStatus: order.Status,
			Reason:         r,
			Now:            now,
		})
	})
}

// Park sets a QUICK order aside under an optional label.
func (s *LedgerService) Park(ctx context.Context, tenantID, orderID uuid.UUID, label string) (database.Order, error) {
	return s.guardedWrite(ctx, tenantID, orderID, func(store LedgerStore, order database.Order, now time.Time) (database.Order, error) {
		if guard := canPark(order); guard != nil {
			return database.Order{}, guard
		}
		l := pgtype.Text{}
		if label != "" {
			l = pgtype.Text{String: label, Valid: true}
		}
		return store.ParkOrder(ctx, database.ParkOrderParams{
			ID:             order.ID,
			TenantID:       tenantID,
			ExpectedStatus: order.Status,
			Label:          l,
			Now:            now,
		})
	})
}

// Cancel cancels a TRACKED order. The reason is mandatory.
func (s *LedgerService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (database.Order, error) {
	if reason == "" {
		return database.Order{}, ErrReasonRequired
	}
	if utf8.RuneCountInString(reason) > 200 {
		return database.Order{}, ErrReasonTooLong
	}
	return s.guardedWrite(ctx, tenantID, orderID, func(store LedgerStore, order database.Order, now time.Time) (database.Order, error) {
		if guard := canCancel(order); guard != nil {
			return database.Order{}, guard
		}
		return store.CancelOrder(ctx, database.CancelOrderParams{
			ID:             order.ID,
			TenantID:       tenantID,
			ExpectedStatus: order.Status,
			Reason:         reason,
			Now:            now,
		})
	})
}

// guardedWrite is the shared lock-guard-write-commit-publish shape of
// the dedicated operations.
func (s *LedgerService) guardedWrite(ctx context.Context, tenantID, orderID uuid.UUID,
	write func(store LedgerStore, order database.Order, now time.Time) (database.Order, error)) (database.Order, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:       orderID,
		TenantID: tenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	updated, err := write(store, order, s.now())
	if err != nil {
		if isNoRows(err) {
			return database.Order{}, &GuardError{Code: CodeOrderConflict, Status: order.Status, Reason: "order changed concurrently, retry"}
		}
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderUpdated, updated)
	return updated, nil
}

// Delete hard-removes an empty, unpaid QUICK order. The draft number
// stays burned; counters never rewind.
func (s *LedgerService) Delete(ctx context.Context, tenantID, orderID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{
		ID:       orderID,
		TenantID: tenantID,
	})
	if err != nil {
		if isNoRows(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}

	lineCount, err := store.CountOrderLines(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("count order lines: %w", err)
	}
	if guard := canDelete(order, lineCount); guard != nil {
		return guard
	}

	if err := store.DeleteOrder(ctx, database.DeleteOrderParams{ID: order.ID, TenantID: tenantID}); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, events.EventOrderDeleted, order)
	return nil
}

// publish notifies subscribers of a state change. Best-effort: the
// transaction already committed, so failures are logged and swallowed.
func (s *LedgerService) publish(ctx context.Context, eventType string, order database.Order) {
	if s.publisher == nil {
		return
	}
	evt := events.OrderEvent{
		EventType:  eventType,
		OccurredAt: s.now(),
		TenantID:   order.TenantID,
		OrderID:    order.ID,
		Status:     order.Status,
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("publish order event")
	}
}
