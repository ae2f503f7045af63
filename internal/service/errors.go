package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the ledger service.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrVariantMismatch      = errors.New("variant does not belong to product")
	ErrMenuItemNotFound     = errors.New("menu item not found")
	ErrMenuItemMismatch     = errors.New("menu item does not reference product")
	ErrUnknownOption        = errors.New("selected option does not belong to any modifier group")
	ErrInvalidQuantity      = errors.New("qty must be > 0")
	ErrInvalidKind          = errors.New("invalid kind")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidVariantID     = errors.New("invalid variant_id")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrInvalidOptionID      = errors.New("invalid option id")
	ErrTableRequired        = errors.New("table_id is required for TRACKED orders")
	ErrReasonRequired       = errors.New("reason is required")
	ErrReasonTooLong        = errors.New("reason must be at most 200 characters")
	ErrCashInsufficient     = errors.New("cash_received_cents is less than the order total")
	ErrCashRequired         = errors.New("cash_received_cents is required for CASH payments")

	// ErrTenantVatMissing means the tenant has no default VAT rate and
	// neither the menu item nor the product carries one. Configuration
	// error, surfaced as 500 and never retried.
	ErrTenantVatMissing = errors.New("tenant default VAT rate is not configured")
)

// Guard conflict codes carried by GuardError.
const (
	CodeAlreadyFinalized  = "ALREADY_FINALIZED"
	CodeCannotVoidOrder   = "CANNOT_VOID_ORDER"
	CodeCannotParkOrder   = "CANNOT_PARK_ORDER"
	CodeCannotCancelOrder = "CANNOT_CANCEL_ORDER"
	CodeCannotDeleteOrder = "CANNOT_DELETE_ORDER"
	CodeOrderNotOpen      = "ORDER_NOT_OPEN"
	CodeOrderConflict     = "ORDER_CONFLICT"
)

// TransitionError rejects a lifecycle transition absent from the graph.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// GuardError rejects an operation whose business guard failed: wrong
// kind, payment already recorded, non-empty lines on delete, and so on.
type GuardError struct {
	Code   string
	Status string
	Reason string
}

func (e *GuardError) Error() string {
	return e.Reason
}

// ModifierSelectionError reports which group and which bound failed.
type ModifierSelectionError struct {
	GroupID uuid.UUID
	Group   string
	Chosen  int
	Min     int
	Max     int // -1 when the group has no maximum
	Bound   string
}

func (e *ModifierSelectionError) Error() string {
	if e.Bound == "min" {
		return fmt.Sprintf("group %q requires at least %d selections, got %d", e.Group, e.Min, e.Chosen)
	}
	return fmt.Sprintf("group %q allows at most %d selections, got %d", e.Group, e.Max, e.Chosen)
}
