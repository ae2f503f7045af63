package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tillpoint/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message, Details: details}})
}

// badRequestCodes maps validation sentinels to their client-facing code.
var badRequestCodes = map[error]string{
	service.ErrInvalidQuantity:      "INVALID_QTY",
	service.ErrInvalidKind:          "INVALID_KIND",
	service.ErrInvalidStatus:        "INVALID_STATUS",
	service.ErrInvalidPaymentMethod: "INVALID_PAYMENT_METHOD",
	service.ErrInvalidProductID:     "INVALID_PRODUCT_ID",
	service.ErrInvalidVariantID:     "INVALID_VARIANT_ID",
	service.ErrInvalidMenuItemID:    "INVALID_MENU_ITEM_ID",
	service.ErrInvalidOptionID:      "INVALID_OPTION_ID",
	service.ErrTableRequired:        "TABLE_REQUIRED",
	service.ErrReasonRequired:       "REASON_REQUIRED",
	service.ErrReasonTooLong:        "REASON_TOO_LONG",
	service.ErrCashRequired:         "CASH_REQUIRED",
	service.ErrCashInsufficient:     "CASH_INSUFFICIENT",
	service.ErrVariantMismatch:      "VARIANT_MISMATCH",
	service.ErrMenuItemMismatch:     "MENU_ITEM_MISMATCH",
	service.ErrUnknownOption:        "UNKNOWN_OPTION",
}

var notFoundCodes = map[error]string{
	service.ErrOrderNotFound:    "ORDER_NOT_FOUND",
	service.ErrProductNotFound:  "PRODUCT_NOT_FOUND",
	service.ErrVariantNotFound:  "VARIANT_NOT_FOUND",
	service.ErrMenuItemNotFound: "MENU_ITEM_NOT_FOUND",
}

// handleServiceError translates ledger errors into HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	var transitionErr *service.TransitionError
	if errors.As(err, &transitionErr) {
		writeErrorDetails(w, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error(), map[string]any{
			"from": transitionErr.From,
			"to":   transitionErr.To,
		})
		return
	}

	var guardErr *service.GuardError
	if errors.As(err, &guardErr) {
		writeErrorDetails(w, http.StatusConflict, guardErr.Code, guardErr.Reason, map[string]any{
			"status": guardErr.Status,
		})
		return
	}

	var selErr *service.ModifierSelectionError
	if errors.As(err, &selErr) {
		writeErrorDetails(w, http.StatusBadRequest, "MODIFIER_SELECTION", selErr.Error(), map[string]any{
			"group_id": selErr.GroupID.String(),
			"group":    selErr.Group,
			"chosen":   selErr.Chosen,
			"min":      selErr.Min,
			"max":      selErr.Max,
		})
		return
	}

	for sentinel, code := range notFoundCodes {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusNotFound, code, sentinel.Error())
			return
		}
	}
	for sentinel, code := range badRequestCodes {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusBadRequest, code, sentinel.Error())
			return
		}
	}

	log.Error().Err(err).Msg("order operation failed")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
