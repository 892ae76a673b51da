package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// HandleAuthLogin starts a login attempt: a fresh state/verifier pair is
// recorded and the browser is redirected to the upstream authorize URL.
func (a *App) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	state, err := GenerateOpaqueToken(stateLength)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	verifier, err := GenerateOpaqueToken(verifierLength)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.Auth.PutVerifier(state, verifier)
	challenge := DeriveCodeChallenge(verifier)

	slog.Info("redirecting to authorize endpoint", "state", state)
	http.Redirect(w, r, a.Spotify.AuthorizeURL(state, challenge), http.StatusFound)
}

// errorRedirect sends the browser back to the frontend with a short
// machine-readable error code. Auth failures never surface as HTTP errors.
func (a *App) errorRedirect(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, a.FrontendURL+"/?error="+url.QueryEscape(code), http.StatusFound)
}

// HandleAuthCallback completes the PKCE flow: validate state, exchange the
// code, best-effort persist the user, and hand tokens back to the browser in
// the URL fragment so they stay out of server logs and referrers.
func (a *App) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")

	if upstreamErr := q.Get("error"); upstreamErr != "" {
		slog.Warn("authorize error from upstream", "error", upstreamErr)
		a.errorRedirect(w, r, upstreamErr)
		return
	}

	// the state is single-use: it is deleted before the exchange begins so a
	// replayed callback cannot retry with the same state
	verifier, ok := a.Auth.ConsumeVerifier(state)
	if state == "" || !ok {
		slog.Warn("state mismatch or missing verifier", "state", state)
		a.errorRedirect(w, r, "state_mismatch")
		return
	}

	tokens, err := a.Spotify.ExchangeCode(r.Context(), code, verifier)
	if err != nil {
		slog.Error("token exchange failed", "err", err)
		a.errorRedirect(w, r, "token_exchange_failed")
		return
	}

	// profile fetch and persistence are best-effort; the login still
	// completes if the upstream profile endpoint is down
	profile, err := a.Spotify.FetchProfile(r.Context(), tokens.AccessToken)
	if err != nil {
		slog.Warn("could not fetch user profile", "err", err)
	} else if profile.ID == "" {
		slog.Warn("user id missing from profile response")
	} else {
		if tokens.RefreshToken != "" {
			a.Auth.SetRefreshToken(profile.ID, tokens.RefreshToken)
		}
		if err := a.DB.UpsertUser(profile.ID, profile.DisplayName, profile.Email); err != nil {
			slog.Error("user upsert failed", "user", profile.ID, "err", err)
		} else {
			slog.Info("upserted user", "user", profile.ID)
		}
	}

	expiresIn := tokens.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	fragment := url.Values{
		"access_token":  {tokens.AccessToken},
		"refresh_token": {tokens.RefreshToken},
		"expires_in":    {strconv.Itoa(expiresIn)},
	}
	http.Redirect(w, r, a.FrontendURL+"/callback#"+fragment.Encode(), http.StatusFound)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// HandleAuthRefresh exchanges a refresh token for a new access token. The
// token comes from the request body or the in-memory map keyed by user id.
func (a *App) HandleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.RefreshToken == "" && in.UserID == "" {
		writeError(w, http.StatusBadRequest, "Refresh token or user ID required")
		return
	}

	tokenToRefresh := in.RefreshToken
	if tokenToRefresh == "" {
		if t, ok := a.Auth.RefreshToken(in.UserID); ok {
			tokenToRefresh = t
		}
	}
	if tokenToRefresh == "" {
		writeError(w, http.StatusNotFound, "Refresh token not found")
		return
	}

	newTokens := a.Spotify.ExchangeRefreshToken(r.Context(), tokenToRefresh)
	if newTokens == nil {
		writeError(w, http.StatusUnauthorized, "Failed to refresh token")
		return
	}

	// upstream may not rotate the refresh token; echo the original back
	refreshToken := newTokens.RefreshToken
	if refreshToken == "" {
		refreshToken = tokenToRefresh
	} else if in.UserID != "" {
		a.Auth.SetRefreshToken(in.UserID, refreshToken)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  newTokens.AccessToken,
		"expires_in":    newTokens.ExpiresIn,
		"refresh_token": refreshToken,
	})
}
