package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)


// Ledger failure taxonomy. Handlers map these onto HTTP statuses.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrBadgeNotFound  = errors.New("badge not found")
	ErrAlreadyOwned   = errors.New("you already own this badge")
	ErrPurchaseFailed = errors.New("failed to purchase badge")
)

// InsufficientPointsError reports the current balance alongside the amount
// that was required, for error-message quality.
type InsufficientPointsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: user has %d, needs %d", e.Balance, e.Required)
}

// APIError is the JSON error body: every API failure carries an "error" string.
type APIError struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{Error: message})
}
