package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type pointsRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

// HandleGetPoints returns the point balance for a user. Unknown users read as
// zero; this endpoint is for display, not enforcement.
func (a *App) HandleGetPoints(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	points, err := a.DB.GetPoints(userID)
	if err != nil {
		slog.Error("get points failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"points": points,
	})
}

// HandleAddPoints credits points to a user.
func (a *App) HandleAddPoints(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	var in pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Points <= 0 {
		writeError(w, http.StatusBadRequest, "Valid positive number of points is required")
		return
	}
	reason := in.Reason
	if reason == "" {
		reason = "manual_add"
	}

	newTotal, err := a.DB.AddPoints(userID, in.Points, reason)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User "+userID+" not found")
			return
		}
		slog.Error("add points failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to add points")
		return
	}

	slog.Info("added points", "user", userID, "points", in.Points, "total", newTotal)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"pointsAdded": in.Points,
		"newTotal":    newTotal,
		"reason":      reason,
	})
}

// HandleDeductPoints debits points from a user. The balance check and the
// decrement happen atomically in the store.
func (a *App) HandleDeductPoints(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	var in pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Points <= 0 {
		writeError(w, http.StatusBadRequest, "Valid positive number of points is required")
		return
	}
	reason := in.Reason
	if reason == "" {
		reason = "manual_deduct"
	}

	newTotal, err := a.DB.DeductPoints(userID, in.Points, reason)
	if err != nil {
		var insufficient *InsufficientPointsError
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User "+userID+" not found")
		case errors.As(err, &insufficient):
			writeError(w, http.StatusBadRequest, insufficient.Error())
		default:
			slog.Error("deduct points failed", "user", userID, "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to deduct points")
		}
		return
	}

	slog.Info("deducted points", "user", userID, "points", in.Points, "total", newTotal)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"pointsDeducted": in.Points,
		"newTotal":       newTotal,
		"reason":         reason,
	})
}
