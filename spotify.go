package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// spotifyScopes is the fixed scope list requested on login.
var spotifyScopes = []string{
	"user-read-email",
	"user-read-private",
	"user-top-read",
	"user-follow-read",
	"user-read-playback-state",
	"user-read-recently-played",
	"playlist-modify-public",
	"playlist-modify-private",
	"streaming",
	"user-modify-playback-state",
}

// SpotifyClient talks to the upstream authorize/token/profile endpoints.
// Uses PKCE (S256) for all authorization requests.
type SpotifyClient struct {
	config *oauth2.Config
	APIURL string
	http   *http.Client
}

func NewSpotifyClient(clientID, clientSecret, redirectURI, authURL, tokenURL, apiURL string) *SpotifyClient {
	return &SpotifyClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
			Scopes:       spotifyScopes,
		},
		APIURL: apiURL,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// withHTTPClient makes oauth2 use the bounded-timeout client for outbound calls.
func (c *SpotifyClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// AuthorizeURL builds the upstream consent page URL with state and PKCE S256
// challenge embedded.
func (c *SpotifyClient) AuthorizeURL(state, codeChallenge string) string {
	return c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades an authorization code plus its PKCE verifier for tokens.
// Authorization codes are single-use, so failures are never retried.
func (c *SpotifyClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	tok, err := c.config.Exchange(c.withHTTPClient(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	return tokenResult(tok), nil
}

// ExchangeRefreshToken trades a refresh token for a new access token.
// Returns nil on any failure; callers treat nil as "could not refresh"
// without distinguishing causes.
func (c *SpotifyClient) ExchangeRefreshToken(ctx context.Context, refreshToken string) *TokenResult {
	src := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		slog.Warn("token refresh failed", "err", err)
		return nil
	}
	return tokenResult(tok)
}

// FetchProfile loads the upstream user profile with a bearer access token.
func (c *SpotifyClient) FetchProfile(ctx context.Context, accessToken string) (*SpotifyProfile, error) {
	client := oauth2.NewClient(c.withHTTPClient(ctx),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile endpoint returned %d", resp.StatusCode)
	}

	var p SpotifyProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// tokenResult flattens an oauth2 token into the shape handlers hand back to
// the frontend. expires_in comes from the raw response body; the upstream
// always sends it but 3600 is the documented lifetime if it ever does not.
func tokenResult(tok *oauth2.Token) *TokenResult {
	tr := &TokenResult{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if v, ok := tok.Extra("expires_in").(float64); ok && v > 0 {
		tr.ExpiresIn = int(v)
	}
	if s, ok := tok.Extra("scope").(string); ok {
		tr.Scope = s
	}
	return tr
}
