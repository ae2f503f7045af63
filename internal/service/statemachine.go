package service

import (
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/enum"
)

// allowedTransitions is the lifecycle graph for the generic transition
// operation. PARKED and VOIDED are reachable only through the dedicated
// park/void operations; COMPLETED and CANCELLED are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusOpen:   {enum.OrderStatusSent, enum.OrderStatusCancelled},
	enum.OrderStatusSent:   {enum.OrderStatusInPrep, enum.OrderStatusCancelled},
	enum.OrderStatusInPrep: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:  {enum.OrderStatusPaid, enum.OrderStatusCompleted, enum.OrderStatusCancelled},
	enum.OrderStatusPaid:   {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

// ValidateTransition checks the lifecycle graph. The returned
// *TransitionError carries the offending from/to pair.
func ValidateTransition(from, to string) error {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

func isValidStatus(s string) bool {
	switch s {
	case enum.OrderStatusOpen, enum.OrderStatusSent, enum.OrderStatusInPrep,
		enum.OrderStatusReady, enum.OrderStatusPaid, enum.OrderStatusCompleted,
		enum.OrderStatusCancelled, enum.OrderStatusVoided, enum.OrderStatusParked:
		return true
	}
	return false
}

// isFinalized reports whether payment is no longer possible. VOIDED is
// terminal per the lifecycle even though it never holds a payment.
func isFinalized(status string) bool {
	switch status {
	case enum.OrderStatusPaid, enum.OrderStatusCompleted,
		enum.OrderStatusCancelled, enum.OrderStatusVoided:
		return true
	}
	return false
}

func hasPayment(o database.Order) bool {
	return o.PaidAt.Valid || o.PaymentMethod.Valid
}

func isOpenOrParked(status string) bool {
	return status == enum.OrderStatusOpen || status == enum.OrderStatusParked
}

// Guard checks for the dedicated operations. Each returns nil or a
// *GuardError; they never mutate anything.

func canPay(o database.Order) *GuardError {
	if isFinalized(o.Status) {
		return &GuardError{Code: CodeAlreadyFinalized, Status: o.Status, Reason: "order is already finalized"}
	}
	return nil
}

func canPark(o database.Order) *GuardError {
	if o.Kind != enum.OrderKindQuick {
		return &GuardError{Code: CodeCannotParkOrder, Status: o.Status, Reason: "only QUICK orders can be parked"}
	}
	if o.Status != enum.OrderStatusOpen {
		return &GuardError{Code: CodeCannotParkOrder, Status: o.Status, Reason: "only OPEN orders can be parked"}
	}
	if hasPayment(o) {
		return &GuardError{Code: CodeCannotParkOrder, Status: o.Status, Reason: "order already has a payment"}
	}
	return nil
}

func canVoid(o database.Order) *GuardError {
	if o.Kind != enum.OrderKindQuick {
		return &GuardError{Code: CodeCannotVoidOrder, Status: o.Status, Reason: "only QUICK orders can be voided"}
	}
	if !isOpenOrParked(o.Status) {
		return &GuardError{Code: CodeCannotVoidOrder, Status: o.Status, Reason: "only OPEN or PARKED orders can be voided"}
	}
	if hasPayment(o) {
		return &GuardError{Code: CodeCannotVoidOrder, Status: o.Status, Reason: "order already has a payment"}
	}
	return nil
}

func canCancel(o database.Order) *GuardError {
	if o.Kind != enum.OrderKindTracked {
		return &GuardError{Code: CodeCannotCancelOrder, Status: o.Status, Reason: "only TRACKED orders can be cancelled"}
	}
	if !isOpenOrParked(o.Status) {
		return &GuardError{Code: CodeCannotCancelOrder, Status: o.Status, Reason: "only OPEN or PARKED orders can be cancelled"}
	}
	if hasPayment(o) {
		return &GuardError{Code: CodeCannotCancelOrder, Status: o.Status, Reason: "order already has a payment"}
	}
	return nil
}

func canDelete(o database.Order, lineCount int64) *GuardError {
	if o.Kind != enum.OrderKindQuick {
		return &GuardError{Code: CodeCannotDeleteOrder, Status: o.Status, Reason: "only QUICK orders can be deleted"}
	}
	if !isOpenOrParked(o.Status) {
		return &GuardError{Code: CodeCannotDeleteOrder, Status: o.Status, Reason: "only OPEN or PARKED orders can be deleted"}
	}
	if hasPayment(o) {
		return &GuardError{Code: CodeCannotDeleteOrder, Status: o.Status, Reason: "order already has a payment"}
	}
	if lineCount > 0 {
		return &GuardError{Code: CodeCannotDeleteOrder, Status: o.Status, Reason: "order still has lines"}
	}
	return nil
}
