// Package handler holds the HTTP layer: thin request decoding and response
// encoding around the ledger, progression, and billing components.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/credit"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps ledger sentinels onto HTTP statuses. Unknown errors
// become a 500 with no detail leaked.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credit.ErrInsufficientCredit):
		writeError(w, http.StatusPaymentRequired, "insufficient credit")
	case errors.Is(err, credit.ErrContentNotAllowed):
		writeError(w, http.StatusForbidden, "content not available on this plan")
	case errors.Is(err, credit.ErrInvalidSessionState):
		writeError(w, http.StatusConflict, "session is not in a valid state for this operation")
	case errors.Is(err, credit.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, credit.ErrContentNotFound):
		writeError(w, http.StatusNotFound, "content not found")
	case errors.Is(err, credit.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
