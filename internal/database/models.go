package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Tenant struct {
	ID            uuid.UUID
	Name          string
	ReceiptPrefix pgtype.Text
	DefaultVatBps pgtype.Int4
	CreatedAt     time.Time
}

type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
}

type Product struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Title      string
	PriceCents int64
	VatBps     pgtype.Int4
	Active     bool
	CreatedAt  time.Time
}

type Variant struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Name       string
	DeltaCents int64
	Position   int32
}

type MenuItem struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ProductID  uuid.UUID
	VatBps     pgtype.Int4
	PriceCents pgtype.Int8
}

type ModifierGroup struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ProductID  pgtype.UUID
	MenuItemID pgtype.UUID
	Name       string
	MinSelect  int32
	MaxSelect  pgtype.Int4
	Position   int32
}

type ModifierOption struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	Name       string
	DeltaCents int64
	Position   int32
}

type Order struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	Kind                 string
	Status               string
	TableID              pgtype.Text
	DraftNo              pgtype.Int8
	DraftLabel           pgtype.Text
	DraftIssuedAt        pgtype.Timestamptz
	ReceiptNo            pgtype.Int8
	ReceiptLabel         pgtype.Text
	ReceiptIssuedAt      pgtype.Timestamptz
	SubtotalExclVatCents int64
	TotalInclVatCents    int64
	VatBreakdown         []byte
	PaymentMethod        pgtype.Text
	PaymentRef           pgtype.Text
	CashReceivedCents    pgtype.Int8
	ChangeCents          pgtype.Int8
	PaidAt               pgtype.Timestamptz
	SentAt               pgtype.Timestamptz
	InPrepAt             pgtype.Timestamptz
	ReadyAt              pgtype.Timestamptz
	CompletedAt          pgtype.Timestamptz
	CancelledAt          pgtype.Timestamptz
	CancelReason         pgtype.Text
	VoidReason           pgtype.Text
	ParkedLabel          pgtype.Text
	CreatedBy            uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type OrderLine struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Title      string
	Qty        int32
	PriceCents int64
	VatRateBps int32
	VatSource  string
	Signature  string
	Modifiers  []byte
	Position   int32
	CreatedAt  time.Time
}

type SequenceCounter struct {
	TenantID uuid.UUID
	Series   string
	DateCode string
	NextSeq  int64
}
