package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/middleware"
	"github.com/tillpoint/api/internal/service"
)

// OrderLedger is the slice of the ledger service the handler needs.
type OrderLedger interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	AddLine(ctx context.Context, req service.AddLineRequest) (*service.OrderDetail, error)
	Transition(ctx context.Context, tenantID, orderID uuid.UUID, to string) (database.Order, error)
	Pay(ctx context.Context, req service.PayRequest) (database.Order, error)
	Void(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (database.Order, error)
	Park(ctx context.Context, tenantID, orderID uuid.UUID, label string) (database.Order, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (database.Order, error)
	Delete(ctx context.Context, tenantID, orderID uuid.UUID) error
}

// OrderReader serves the read endpoints straight from the store.
type OrderReader interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	GetLastCompletedOrder(ctx context.Context, tenantID uuid.UUID) (database.Order, error)
	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
}

type OrderHandler struct {
	ledger OrderLedger
	store  OrderReader
}

func NewOrderHandler(ledger OrderLedger, store OrderReader) *OrderHandler {
	return &OrderHandler{ledger: ledger, store: store}
}

// --- request bodies ---

type createOrderBody struct {
	Kind    string `json:"kind"`
	TableID string `json:"table_id"`
}

type addLineBody struct {
	ProductID         string   `json:"product_id"`
	VariantID         string   `json:"variant_id"`
	MenuItemID        string   `json:"menu_item_id"`
	Qty               int32    `json:"qty"`
	SelectedOptionIDs []string `json:"selected_option_ids"`
}

type transitionBody struct {
	To string `json:"to"`
}

type payBody struct {
	Method            string `json:"method"`
	PaymentRef        string `json:"payment_ref"`
	CashReceivedCents *int64 `json:"cash_received_cents"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type parkBody struct {
	Label string `json:"label"`
}

// --- responses ---

type lineResponse struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	Qty        int32           `json:"qty"`
	PriceCents int64           `json:"price_cents"`
	VatRateBps int32           `json:"vat_rate_bps"`
	VatSource  string          `json:"vat_source"`
	Modifiers  json.RawMessage `json:"modifiers,omitempty"`
	Position   int32           `json:"position"`
}

type orderResponse struct {
	ID                   uuid.UUID       `json:"id"`
	Kind                 string          `json:"kind"`
	Status               string          `json:"status"`
	TableID              *string         `json:"table_id,omitempty"`
	DraftNo              *int64          `json:"draft_no,omitempty"`
	DraftLabel           *string         `json:"draft_label,omitempty"`
	ReceiptNo            *int64          `json:"receipt_no,omitempty"`
	ReceiptLabel         *string         `json:"receipt_label,omitempty"`
	SubtotalExclVatCents int64           `json:"subtotal_excl_vat_cents"`
	TotalInclVatCents    int64           `json:"total_incl_vat_cents"`
	VatBreakdown         json.RawMessage `json:"vat_breakdown,omitempty"`
	PaymentMethod        *string         `json:"payment_method,omitempty"`
	PaymentRef           *string         `json:"payment_ref,omitempty"`
	CashReceivedCents    *int64          `json:"cash_received_cents,omitempty"`
	ChangeCents          *int64          `json:"change_cents,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	SentAt               *time.Time      `json:"sent_at,omitempty"`
	InPrepAt             *time.Time      `json:"in_prep_at,omitempty"`
	ReadyAt              *time.Time      `json:"ready_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason         *string         `json:"cancel_reason,omitempty"`
	VoidReason           *string         `json:"void_reason,omitempty"`
	ParkedLabel          *string         `json:"parked_label,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Lines                []lineResponse  `json:"lines,omitempty"`
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func int8Ptr(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func toOrderResponse(o database.Order, lines []database.OrderLine) orderResponse {
	resp := orderResponse{
		ID:                   o.ID,
		Kind:                 o.Kind,
		Status:               o.Status,
		TableID:              textPtr(o.TableID),
		DraftNo:              int8Ptr(o.DraftNo),
		DraftLabel:           textPtr(o.DraftLabel),
		ReceiptNo:            int8Ptr(o.ReceiptNo),
		ReceiptLabel:         textPtr(o.ReceiptLabel),
		SubtotalExclVatCents: o.SubtotalExclVatCents,
		TotalInclVatCents:    o.TotalInclVatCents,
		VatBreakdown:         json.RawMessage(o.VatBreakdown),
		PaymentMethod:        textPtr(o.PaymentMethod),
		PaymentRef:           textPtr(o.PaymentRef),
		CashReceivedCents:    int8Ptr(o.CashReceivedCents),
		ChangeCents:          int8Ptr(o.ChangeCents),
		PaidAt:               timePtr(o.PaidAt),
		SentAt:               timePtr(o.SentAt),
		InPrepAt:             timePtr(o.InPrepAt),
		ReadyAt:              timePtr(o.ReadyAt),
		CompletedAt:          timePtr(o.CompletedAt),
		CancelledAt:          timePtr(o.CancelledAt),
		CancelReason:         textPtr(o.CancelReason),
		VoidReason:           textPtr(o.VoidReason),
		ParkedLabel:          textPtr(o.ParkedLabel),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:         l.ID,
			Title:      l.Title,
			Qty:        l.Qty,
			PriceCents: l.PriceCents,
			VatRateBps: l.VatRateBps,
			VatSource:  l.VatSource,
			Modifiers:  json.RawMessage(l.Modifiers),
			Position:   l.Position,
		})
	}
	return resp
}

// requestScope pulls the tenant and the path order id out of the request.
func requestScope(w http.ResponseWriter, r *http.Request) (tenantID, orderID uuid.UUID, ok bool) {
	tenantID, found := middleware.TenantFromContext(r.Context())
	if !found {
		writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant not resolved")
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "order id must be a UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, orderID, true
}

// --- endpoints ---

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant not resolved")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())

	var body createOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	detail, err := h.ledger.Create(r.Context(), service.CreateOrderRequest{
		TenantID:  tenantID,
		CreatedBy: claims.UserID,
		Kind:      body.Kind,
		TableID:   body.TableID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(detail.Order, detail.Lines))
}

func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var body addLineBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if body.Qty == 0 {
		body.Qty = 1
	}

	detail, err := h.ledger.AddLine(r.Context(), service.AddLineRequest{
		TenantID:          tenantID,
		OrderID:           orderID,
		ProductID:         body.ProductID,
		VariantID:         body.VariantID,
		MenuItemID:        body.MenuItemID,
		Qty:               body.Qty,
		SelectedOptionIDs: body.SelectedOptionIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(detail.Order, detail.Lines))
}

func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	order, err := h.ledger.Transition(r.Context(), tenantID, orderID, body.To)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var body payBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	order, err := h.ledger.Pay(r.Context(), service.PayRequest{
		TenantID:          tenantID,
		OrderID:           orderID,
		Method:            body.Method,
		PaymentRef:        body.PaymentRef,
		CashReceivedCents: body.CashReceivedCents,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	// The body is optional for void.
	var body reasonBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	order, err := h.ledger.Void(r.Context(), tenantID, orderID, body.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) Park(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var body parkBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	order, err := h.ledger.Park(r.Context(), tenantID, orderID, body.Label)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	var body reasonBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	order, err := h.ledger.Cancel(r.Context(), tenantID, orderID, body.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	if err := h.ledger.Delete(r.Context(), tenantID, orderID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := requestScope(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if err == pgx.ErrNoRows {
			writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
			return
		}
		handleServiceError(w, err)
		return
	}
	lines, err := h.store.ListOrderLinesByOrder(r.Context(), order.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, lines))
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant not resolved")
		return
	}

	q := r.URL.Query()
	status := pgtype.Text{}
	if s := q.Get("status"); s != "" {
		status = pgtype.Text{String: s, Valid: true}
	}
	kind := pgtype.Text{}
	if s := q.Get("kind"); s != "" {
		kind = pgtype.Text{String: s, Valid: true}
	}
	limit := int32(50)
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = int32(n)
		}
	}
	offset := int32(0)
	if s := q.Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = int32(n)
		}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		TenantID: tenantID,
		Status:   status,
		Kind:     kind,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// LastCompleted returns the most recently completed order, used by the
// register to reprint the last receipt.
func (h *OrderHandler) LastCompleted(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant not resolved")
		return
	}

	order, err := h.store.GetLastCompletedOrder(r.Context(), tenantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "no completed orders")
			return
		}
		handleServiceError(w, err)
		return
	}
	lines, err := h.store.ListOrderLinesByOrder(r.Context(), order.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, lines))
}
