package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleListBadges returns every active catalog badge.
func (a *App) HandleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := a.DB.ListActiveBadges()
	if err != nil {
		slog.Error("list badges failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if badges == nil {
		badges = []*Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

// HandleGetPurchasedBadges returns the badge ids a user owns.
func (a *App) HandleGetPurchasedBadges(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	ids, err := a.DB.PurchasedBadgeIDs(userID)
	if err != nil {
		slog.Error("get purchased badges failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":          userID,
		"purchasedBadges": ids,
	})
}

type purchaseRequest struct {
	BadgeID string `json:"badgeId"`
}

// HandlePurchaseBadge buys a badge for a user. The catalog price is
// authoritative; any price in the request body is ignored. The balance check,
// ownership check, and deduction are one atomic conditional update.
func (a *App) HandlePurchaseBadge(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	var in purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.BadgeID == "" {
		writeError(w, http.StatusBadRequest, "badgeId is required")
		return
	}

	badge, err := a.DB.GetActiveBadge(in.BadgeID)
	if err != nil {
		slog.Error("badge lookup failed", "badge", in.BadgeID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to purchase badge")
		return
	}
	if badge == nil {
		writeError(w, http.StatusNotFound, "Badge "+in.BadgeID+" not found")
		return
	}

	result, err := a.DB.PurchaseBadge(userID, badge.BadgeID, badge.Price)
	if err != nil {
		var insufficient *InsufficientPointsError
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User "+userID+" not found")
		case errors.Is(err, ErrAlreadyOwned):
			writeError(w, http.StatusBadRequest, ErrAlreadyOwned.Error())
		case errors.As(err, &insufficient):
			writeError(w, http.StatusBadRequest, insufficient.Error())
		default:
			slog.Error("purchase failed", "user", userID, "badge", in.BadgeID, "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to purchase badge")
		}
		return
	}

	slog.Info("badge purchased", "user", userID, "badge", result.BadgeID, "price", result.Price, "total", result.NewTotal)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"badgeId":         result.BadgeID,
		"price":           result.Price,
		"newTotal":        result.NewTotal,
		"purchasedBadges": result.PurchasedBadges,
	})
}
