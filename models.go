package main

import "time"

// User is the persisted account record, keyed by the Spotify user id.
type User struct {
	ID                int64              `json:"-"`
	SpotifyID         string             `json:"spotify_id"`
	DisplayName       string             `json:"display_name,omitempty"`
	Email             string             `json:"email,omitempty"`
	Points            int64              `json:"points"`
	PurchasedBadges   []PurchasedBadge   `json:"purchased_badges"`
	PointTransactions []PointTransaction `json:"point_transactions"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PurchasedBadge records one badge purchase; price is the catalog price at purchase time.
type PurchasedBadge struct {
	BadgeID     string    `json:"badge_id"`
	Price       int64     `json:"price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// PointTransaction is one entry in the append-only audit trail.
// Amount is signed: positive for credits, negative for debits.
type PointTransaction struct {
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Badge is a purchasable catalog entry. Price is authoritative; client-supplied
// prices are never trusted.
type Badge struct {
	BadgeID     string `json:"badge_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Icon        string `json:"icon"`
	Rarity      string `json:"rarity"`
	Gradient    string `json:"gradient"`
	IsActive    bool   `json:"is_active"`
}

// PurchaseResult is the outcome of a successful badge purchase.
type PurchaseResult struct {
	BadgeID         string
	Price           int64
	NewTotal        int64
	PurchasedBadges []string
}

// TokenResult is the upstream token endpoint response.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// SpotifyProfile is the subset of the upstream /me response we persist.
type SpotifyProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
