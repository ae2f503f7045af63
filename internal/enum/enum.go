package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusOpen      = "OPEN"
	OrderStatusSent      = "SENT"
	OrderStatusInPrep    = "IN_PREP"
	OrderStatusReady     = "READY"
	OrderStatusPaid      = "PAID"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusVoided    = "VOIDED"
	OrderStatusParked    = "PARKED"
)

const (
	OrderKindQuick   = "QUICK"
	OrderKindTracked = "TRACKED"
)

// ── Numbering series ──

const (
	SeriesDraft   = "DRAFT"
	SeriesReceipt = "RECEIPT"
)

// ── Payments ──

const (
	PaymentMethodPin  = "PIN"
	PaymentMethodCash = "CASH"
)

// ── VAT rate provenance on a line ──

const (
	VatSourceMenuItem = "MENUITEM"
	VatSourceProduct  = "PRODUCT"
	VatSourceTenant   = "TENANT"
)

// ── Users ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)
