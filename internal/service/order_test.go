package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/enum"
	"github.com/tillpoint/api/internal/events"
)

// fakeTx embeds the interface so only Commit and Rollback need bodies;
// nothing else is called on a transaction in these tests.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{}
	return p.tx, nil
}

type mockLedgerStore struct {
	getTenantFunc          func(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	getProductFunc         func(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	getVariantFunc         func(ctx context.Context, id uuid.UUID) (database.Variant, error)
	getMenuItemFunc        func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	listGroupsByProduct    func(ctx context.Context, productID uuid.UUID) ([]database.ModifierGroup, error)
	listGroupsByMenuItem   func(ctx context.Context, menuItemID uuid.UUID) ([]database.ModifierGroup, error)
	listOptionsByGroup     func(ctx context.Context, groupID uuid.UUID) ([]database.ModifierOption, error)
	issueSequenceFunc      func(ctx context.Context, arg database.IssueSequenceNumberParams) (int64, error)
	setDraftNumberFunc     func(ctx context.Context, arg database.SetDraftNumberParams) (database.Order, error)
	setReceiptNumberFunc   func(ctx context.Context, arg database.SetReceiptNumberParams) (database.Order, error)
	createOrderFunc        func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	getOrderForUpdateFunc  func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	setOrderStatusFunc     func(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	markOrderPaidFunc      func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	parkOrderFunc          func(ctx context.Context, arg database.ParkOrderParams) (database.Order, error)
	voidOrderFunc          func(ctx context.Context, arg database.VoidOrderParams) (database.Order, error)
	cancelOrderFunc        func(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	deleteOrderFunc        func(ctx context.Context, arg database.DeleteOrderParams) error
	updateOrderTotalsFunc  func(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	listOrderLinesFunc     func(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	createOrderLineFunc    func(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	incrementLineQtyFunc   func(ctx context.Context, arg database.IncrementOrderLineQtyParams) (database.OrderLine, error)
	countOrderLinesFunc    func(ctx context.Context, orderID uuid.UUID) (int64, error)
}

func (m *mockLedgerStore) GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error) {
	return m.getTenantFunc(ctx, id)
}
func (m *mockLedgerStore) GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	return m.getProductFunc(ctx, arg)
}
func (m *mockLedgerStore) GetVariant(ctx context.Context, id uuid.UUID) (database.Variant, error) {
	return m.getVariantFunc(ctx, id)
}
func (m *mockLedgerStore) GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	return m.getMenuItemFunc(ctx, arg)
}
func (m *mockLedgerStore) ListModifierGroupsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ModifierGroup, error) {
	return m.listGroupsByProduct(ctx, productID)
}
func (m *mockLedgerStore) ListModifierGroupsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.ModifierGroup, error) {
	return m.listGroupsByMenuItem(ctx, menuItemID)
}
func (m *mockLedgerStore) ListModifierOptionsByGroup(ctx context.Context, groupID uuid.UUID) ([]database.ModifierOption, error) {
	return m.listOptionsByGroup(ctx, groupID)
}
func (m *mockLedgerStore) IssueSequenceNumber(ctx context.Context, arg database.IssueSequenceNumberParams) (int64, error) {
	return m.issueSequenceFunc(ctx, arg)
}
func (m *mockLedgerStore) SetDraftNumber(ctx context.Context, arg database.SetDraftNumberParams) (database.Order, error) {
	return m.setDraftNumberFunc(ctx, arg)
}
func (m *mockLedgerStore) SetReceiptNumber(ctx context.Context, arg database.SetReceiptNumberParams) (database.Order, error) {
	return m.setReceiptNumberFunc(ctx, arg)
}
func (m *mockLedgerStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFunc(ctx, arg)
}
func (m *mockLedgerStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	return m.getOrderForUpdateFunc(ctx, arg)
}
func (m *mockLedgerStore) SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
	return m.setOrderStatusFunc(ctx, arg)
}
func (m *mockLedgerStore) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	return m.markOrderPaidFunc(ctx, arg)
}
func (m *mockLedgerStore) ParkOrder(ctx context.Context, arg database.ParkOrderParams) (database.Order, error) {
	return m.parkOrderFunc(ctx, arg)
}
func (m *mockLedgerStore) VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error) {
	return m.voidOrderFunc(ctx, arg)
}
func (m *mockLedgerStore) CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error) {
	return m.cancelOrderFunc(ctx, arg)
}
func (m *mockLedgerStore) DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) error {
	return m.deleteOrderFunc(ctx, arg)
}
func (m *mockLedgerStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	return m.updateOrderTotalsFunc(ctx, arg)
}
func (m *mockLedgerStore) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error) {
	return m.listOrderLinesFunc(ctx, orderID)
}
func (m *mockLedgerStore) CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error) {
	return m.createOrderLineFunc(ctx, arg)
}
func (m *mockLedgerStore) IncrementOrderLineQty(ctx context.Context, arg database.IncrementOrderLineQtyParams) (database.OrderLine, error) {
	return m.incrementLineQtyFunc(ctx, arg)
}
func (m *mockLedgerStore) CountOrderLines(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return m.countOrderLinesFunc(ctx, orderID)
}

type capturingPublisher struct {
	events []events.OrderEvent
}

func (p *capturingPublisher) Publish(_ context.Context, evt events.OrderEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func newTestService(store *mockLedgerStore, pub *capturingPublisher) (*LedgerService, *fakePool) {
	pool := &fakePool{}
	var publisher events.Publisher
	if pub != nil {
		publisher = pub
	}
	svc := NewLedgerService(pool, func(database.DBTX) LedgerStore { return store }, NewSequenceAllocator(time.UTC), publisher)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc, pool
}

func TestCreateIssuesDraftNumber(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	orderID := uuid.New()

	var issued database.IssueSequenceNumberParams
	store := &mockLedgerStore{
		createOrderFunc: func(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
			if arg.Kind != enum.OrderKindQuick {
				t.Errorf("kind = %s, want default QUICK", arg.Kind)
			}
			return database.Order{ID: orderID, TenantID: arg.TenantID, Kind: arg.Kind, Status: enum.OrderStatusOpen}, nil
		},
		issueSequenceFunc: func(_ context.Context, arg database.IssueSequenceNumberParams) (int64, error) {
			issued = arg
			return 1, nil
		},
		setDraftNumberFunc: func(_ context.Context, arg database.SetDraftNumberParams) (database.Order, error) {
			return database.Order{
				ID: orderID, TenantID: tenantID, Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
				DraftNo:    pgtype.Int8{Int64: arg.Number, Valid: true},
				DraftLabel: pgtype.Text{String: arg.Label, Valid: true},
			}, nil
		},
	}

	pub := &capturingPublisher{}
	svc, pool := newTestService(store, pub)

	detail, err := svc.Create(context.Background(), CreateOrderRequest{TenantID: tenantID, CreatedBy: userID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if issued.Series != enum.SeriesDraft || issued.DateCode != "20260314" {
		t.Errorf("issued %s/%s, want DRAFT/20260314", issued.Series, issued.DateCode)
	}
	if !detail.Order.DraftNo.Valid || detail.Order.DraftNo.Int64 != 1 {
		t.Errorf("draft no = %+v, want 1", detail.Order.DraftNo)
	}
	if detail.Order.DraftLabel.String != "1" {
		t.Errorf("draft label = %q, want \"1\"", detail.Order.DraftLabel.String)
	}
	if !pool.tx.committed {
		t.Error("transaction was not committed")
	}
	if len(pub.events) != 1 || pub.events[0].EventType != events.EventOrderUpdated {
		t.Errorf("published events = %+v, want one order.updated", pub.events)
	}
}

func TestCreateTrackedRequiresTable(t *testing.T) {
	svc, _ := newTestService(&mockLedgerStore{}, nil)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		TenantID: uuid.New(),
		Kind:     enum.OrderKindTracked,
	})
	if !errors.Is(err, ErrTableRequired) {
		t.Errorf("err = %v, want ErrTableRequired", err)
	}
}

func TestTransition(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()

	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(_ context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TenantID: arg.TenantID, Status: enum.OrderStatusOpen}, nil
		},
		setOrderStatusFunc: func(_ context.Context, arg database.SetOrderStatusParams) (database.Order, error) {
			if arg.ExpectedStatus != enum.OrderStatusOpen {
				t.Errorf("expected status = %s, want OPEN", arg.ExpectedStatus)
			}
			return database.Order{ID: arg.ID, TenantID: arg.TenantID, Status: arg.Status}, nil
		},
	}

	svc, pool := newTestService(store, nil)

	updated, err := svc.Transition(context.Background(), tenantID, orderID, enum.OrderStatusSent)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != enum.OrderStatusSent {
		t.Errorf("status = %s, want SENT", updated.Status)
	}
	if !pool.tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestTransitionRejectsSkips(t *testing.T) {
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(_ context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TenantID: arg.TenantID, Status: enum.OrderStatusOpen}, nil
		},
	}
	svc, pool := newTestService(store, nil)

	_, err := svc.Transition(context.Background(), uuid.New(), uuid.New(), enum.OrderStatusReady)

	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("err = %v, want *TransitionError", err)
	}
	if transitionErr.From != enum.OrderStatusOpen || transitionErr.To != enum.OrderStatusReady {
		t.Errorf("error carries %s->%s, want OPEN->READY", transitionErr.From, transitionErr.To)
	}
	if pool.tx.committed {
		t.Error("rejected transition must not commit")
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, _ := newTestService(&mockLedgerStore{}, nil)
	if _, err := svc.Transition(context.Background(), uuid.New(), uuid.New(), "SHIPPED"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestPayIssuesReceiptInSameTx(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()

	order := database.Order{
		ID: orderID, TenantID: tenantID,
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
		TotalInclVatCents: 1500,
	}

	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		markOrderPaidFunc: func(_ context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
			paid := order
			paid.Status = enum.OrderStatusPaid
			paid.PaymentMethod = pgtype.Text{String: arg.PaymentMethod, Valid: true}
			paid.PaidAt = pgtype.Timestamptz{Time: arg.Now, Valid: true}
			return paid, nil
		},
		getTenantFunc: func(context.Context, uuid.UUID) (database.Tenant, error) {
			return database.Tenant{ID: tenantID, ReceiptPrefix: pgtype.Text{String: "AMS", Valid: true}}, nil
		},
		issueSequenceFunc: func(_ context.Context, arg database.IssueSequenceNumberParams) (int64, error) {
			if arg.Series != enum.SeriesReceipt {
				t.Errorf("series = %s, want RECEIPT", arg.Series)
			}
			return 4, nil
		},
		setReceiptNumberFunc: func(_ context.Context, arg database.SetReceiptNumberParams) (database.Order, error) {
			paid := order
			paid.Status = enum.OrderStatusPaid
			paid.ReceiptNo = pgtype.Int8{Int64: arg.Number, Valid: true}
			paid.ReceiptLabel = pgtype.Text{String: arg.Label, Valid: true}
			return paid, nil
		},
	}

	svc, pool := newTestService(store, nil)

	updated, err := svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, OrderID: orderID, Method: enum.PaymentMethodPin,
	})
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if updated.ReceiptLabel.String != "AMS-260314-004" {
		t.Errorf("receipt label = %q, want AMS-260314-004", updated.ReceiptLabel.String)
	}
	if !pool.tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestPayAlreadyFinalized(t *testing.T) {
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(_ context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TenantID: arg.TenantID, Status: enum.OrderStatusPaid}, nil
		},
		markOrderPaidFunc: func(context.Context, database.MarkOrderPaidParams) (database.Order, error) {
			t.Fatal("MarkOrderPaid must not be called for a finalized order")
			return database.Order{}, nil
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID: uuid.New(), OrderID: uuid.New(), Method: enum.PaymentMethodPin,
	})

	var guard *GuardError
	if !errors.As(err, &guard) || guard.Code != CodeAlreadyFinalized {
		t.Errorf("err = %v, want guard %s", err, CodeAlreadyFinalized)
	}
}

func TestPayCash(t *testing.T) {
	tenantID := uuid.New()
	order := database.Order{
		ID: uuid.New(), TenantID: tenantID,
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
		TotalInclVatCents: 1380,
	}

	var paidArgs database.MarkOrderPaidParams
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		markOrderPaidFunc: func(_ context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
			paidArgs = arg
			paid := order
			paid.Status = enum.OrderStatusPaid
			return paid, nil
		},
		getTenantFunc: func(context.Context, uuid.UUID) (database.Tenant, error) {
			return database.Tenant{ID: tenantID}, nil
		},
		issueSequenceFunc: func(context.Context, database.IssueSequenceNumberParams) (int64, error) {
			return 1, nil
		},
		setReceiptNumberFunc: func(_ context.Context, arg database.SetReceiptNumberParams) (database.Order, error) {
			paid := order
			paid.Status = enum.OrderStatusPaid
			return paid, nil
		},
	}
	svc, _ := newTestService(store, nil)

	received := int64(2000)
	if _, err := svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, OrderID: order.ID,
		Method: enum.PaymentMethodCash, CashReceivedCents: &received,
	}); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	if !paidArgs.CashReceivedCents.Valid || paidArgs.CashReceivedCents.Int64 != 2000 {
		t.Errorf("cash received = %+v, want 2000", paidArgs.CashReceivedCents)
	}
	if !paidArgs.ChangeCents.Valid || paidArgs.ChangeCents.Int64 != 620 {
		t.Errorf("change = %+v, want 620", paidArgs.ChangeCents)
	}
}

func TestPayCashValidation(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
		TotalInclVatCents: 1380,
	}
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID: order.TenantID, OrderID: order.ID, Method: enum.PaymentMethodCash,
	})
	if !errors.Is(err, ErrCashRequired) {
		t.Errorf("missing cash amount err = %v, want ErrCashRequired", err)
	}

	short := int64(1000)
	_, err = svc.Pay(context.Background(), PayRequest{
		TenantID: order.TenantID, OrderID: order.ID,
		Method: enum.PaymentMethodCash, CashReceivedCents: &short,
	})
	if !errors.Is(err, ErrCashInsufficient) {
		t.Errorf("short cash err = %v, want ErrCashInsufficient", err)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _ := newTestService(&mockLedgerStore{}, nil)

	if _, err := svc.Cancel(context.Background(), uuid.New(), uuid.New(), ""); !errors.Is(err, ErrReasonRequired) {
		t.Errorf("err = %v, want ErrReasonRequired", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := svc.Cancel(context.Background(), uuid.New(), uuid.New(), string(long)); !errors.Is(err, ErrReasonTooLong) {
		t.Errorf("err = %v, want ErrReasonTooLong", err)
	}
}

func TestCancelReasonCountsCharactersNotBytes(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindTracked, Status: enum.OrderStatusOpen,
	}
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		cancelOrderFunc: func(_ context.Context, arg database.CancelOrderParams) (database.Order, error) {
			cancelled := order
			cancelled.Status = enum.OrderStatusCancelled
			return cancelled, nil
		},
	}
	svc, _ := newTestService(store, nil)

	// 200 two-byte characters: 400 bytes, exactly at the limit.
	reason := strings.Repeat("é", 200)
	if _, err := svc.Cancel(context.Background(), order.TenantID, order.ID, reason); err != nil {
		t.Fatalf("Cancel with 200-character reason: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), order.TenantID, order.ID, reason+"é"); !errors.Is(err, ErrReasonTooLong) {
		t.Errorf("err = %v, want ErrReasonTooLong past 200 characters", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
	}

	deleted := false
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		countOrderLinesFunc: func(context.Context, uuid.UUID) (int64, error) {
			return 2, nil
		},
		deleteOrderFunc: func(context.Context, database.DeleteOrderParams) error {
			deleted = true
			return nil
		},
	}
	svc, _ := newTestService(store, nil)

	err := svc.Delete(context.Background(), order.TenantID, order.ID)
	var guard *GuardError
	if !errors.As(err, &guard) || guard.Code != CodeCannotDeleteOrder {
		t.Fatalf("err = %v, want guard %s", err, CodeCannotDeleteOrder)
	}
	if deleted {
		t.Error("DeleteOrder must not run when lines exist")
	}

	store.countOrderLinesFunc = func(context.Context, uuid.UUID) (int64, error) { return 0, nil }
	if err := svc.Delete(context.Background(), order.TenantID, order.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("DeleteOrder was not called for an empty order")
	}
}

func TestDeletePublishesDeletedEvent(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
	}
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		countOrderLinesFunc: func(context.Context, uuid.UUID) (int64, error) { return 0, nil },
		deleteOrderFunc:     func(context.Context, database.DeleteOrderParams) error { return nil },
	}
	pub := &capturingPublisher{}
	svc, _ := newTestService(store, pub)

	if err := svc.Delete(context.Background(), order.TenantID, order.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != events.EventOrderDeleted {
		t.Errorf("events = %+v, want one order.deleted", pub.events)
	}
}

func TestAddLineMerges(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	productID := uuid.New()

	order := database.Order{ID: orderID, TenantID: tenantID, Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen}
	product := database.Product{ID: productID, TenantID: tenantID, Title: "Burger", PriceCents: 1250}
	existing := database.OrderLine{
		ID: uuid.New(), OrderID: orderID,
		Title: "Burger", Qty: 1, PriceCents: 1250, VatRateBps: 2100,
		Signature: "",
	}

	incremented := false
	created := false
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		getTenantFunc: func(context.Context, uuid.UUID) (database.Tenant, error) {
			return database.Tenant{ID: tenantID, DefaultVatBps: pgtype.Int4{Int32: 2100, Valid: true}}, nil
		},
		getProductFunc: func(context.Context, database.GetProductParams) (database.Product, error) {
			return product, nil
		},
		listGroupsByProduct: func(context.Context, uuid.UUID) ([]database.ModifierGroup, error) {
			return nil, nil
		},
		listOrderLinesFunc: func(context.Context, uuid.UUID) ([]database.OrderLine, error) {
			return []database.OrderLine{existing}, nil
		},
		incrementLineQtyFunc: func(_ context.Context, arg database.IncrementOrderLineQtyParams) (database.OrderLine, error) {
			incremented = true
			if arg.ID != existing.ID || arg.Qty != 2 {
				t.Errorf("increment args = %+v, want line %s by 2", arg, existing.ID)
			}
			merged := existing
			merged.Qty += arg.Qty
			return merged, nil
		},
		createOrderLineFunc: func(context.Context, database.CreateOrderLineParams) (database.OrderLine, error) {
			created = true
			return database.OrderLine{}, nil
		},
		updateOrderTotalsFunc: func(_ context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
			updated := order
			updated.SubtotalExclVatCents = arg.SubtotalExclVatCents
			updated.TotalInclVatCents = arg.TotalInclVatCents
			updated.VatBreakdown = arg.VatBreakdown
			return updated, nil
		},
	}

	svc, pool := newTestService(store, nil)

	_, err := svc.AddLine(context.Background(), AddLineRequest{
		TenantID: tenantID, OrderID: orderID,
		ProductID: productID.String(), Qty: 2,
	})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if !incremented {
		t.Error("identical line must merge via qty increment")
	}
	if created {
		t.Error("merge must not create a second line")
	}
	if !pool.tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestAddLineRejectsNonOpenOrder(t *testing.T) {
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(_ context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TenantID: arg.TenantID, Status: enum.OrderStatusSent}, nil
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.AddLine(context.Background(), AddLineRequest{
		TenantID: uuid.New(), OrderID: uuid.New(),
		ProductID: uuid.New().String(), Qty: 1,
	})

	var guard *GuardError
	if !errors.As(err, &guard) || guard.Code != CodeOrderNotOpen {
		t.Errorf("err = %v, want guard %s", err, CodeOrderNotOpen)
	}
}

func TestAddLineOrderNotFound(t *testing.T) {
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.AddLine(context.Background(), AddLineRequest{
		TenantID: uuid.New(), OrderID: uuid.New(),
		ProductID: uuid.New().String(), Qty: 1,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestVoidGuard(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindTracked, Status: enum.OrderStatusOpen,
	}
	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.Void(context.Background(), order.TenantID, order.ID, "mistake")
	var guard *GuardError
	if !errors.As(err, &guard) || guard.Code != CodeCannotVoidOrder {
		t.Errorf("err = %v, want guard %s", err, CodeCannotVoidOrder)
	}
}

func TestParkThenVoid(t *testing.T) {
	order := database.Order{
		ID: uuid.New(), TenantID: uuid.New(),
		Kind: enum.OrderKindQuick, Status: enum.OrderStatusOpen,
	}

	store := &mockLedgerStore{
		getOrderForUpdateFunc: func(context.Context, database.GetOrderForUpdateParams) (database.Order, error) {
			return order, nil
		},
		parkOrderFunc: func(_ context.Context, arg database.ParkOrderParams) (database.Order, error) {
			if !arg.Label.Valid || arg.Label.String != "table by the window" {
				t.Errorf("park label = %+v, want the given label", arg.Label)
			}
			parked := order
			parked.Status = enum.OrderStatusParked
			parked.ParkedLabel = arg.Label
			return parked, nil
		},
		voidOrderFunc: func(_ context.Context, arg database.VoidOrderParams) (database.Order, error) {
			if arg.ExpectedStatus != enum.OrderStatusParked {
				t.Errorf("void expected status = %s, want PARKED", arg.ExpectedStatus)
			}
			voided := order
			voided.Status = enum.OrderStatusVoided
			return voided, nil
		},
	}
	svc, _ := newTestService(store, nil)

	parked, err := svc.Park(context.Background(), order.TenantID, order.ID, "table by the window")
	if err != nil {
		t.Fatalf("Park: %v", err)
	}
	if parked.Status != enum.OrderStatusParked {
		t.Fatalf("status = %s, want PARKED", parked.Status)
	}

	// A parked QUICK order can still be voided.
	order = parked
	voided, err := svc.Void(context.Background(), order.TenantID, order.ID, "walked out")
	if err != nil {
		t.Fatalf("Void: %v", err)
	}
	if voided.Status != enum.OrderStatusVoided {
		t.Errorf("status = %s, want VOIDED", voided.Status)
	}
}
