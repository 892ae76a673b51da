package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeUpstream stands in for the Spotify accounts and API hosts.
type fakeUpstream struct {
	srv          *httptest.Server
	tokenStatus  int // 0 means 200
	profStatus   int
	refreshToken string
	lastForm     url.Values
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{refreshToken: "rt-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastForm = r.PostForm
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		resp := map[string]interface{}{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if r.PostForm.Get("grant_type") == "authorization_code" {
			resp["refresh_token"] = f.refreshToken
		} else if f.refreshToken != "" {
			resp["refresh_token"] = f.refreshToken
		}
		writeJSON(w, 200, resp)
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if f.profStatus != 0 {
			w.WriteHeader(f.profStatus)
			return
		}
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]string{
			"id":           "user-1",
			"display_name": "Ada",
			"email":        "ada@example.com",
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestApp(t *testing.T, upstream *fakeUpstream) (*App, http.Handler) {
	t.Helper()
	db := NewMemoryDB()
	_, err := db.SeedBadges(catalogBadges)
	require.NoError(t, err)

	base := "http://example.invalid"
	if upstream != nil {
		base = upstream.srv.URL
	}
	app := &App{
		DB:          db,
		Auth:        NewAuthState(),
		FrontendURL: "http://127.0.0.1:5173",
		Spotify: NewSpotifyClient("client-id", "client-secret",
			"http://127.0.0.1:4000/auth/callback",
			base+"/authorize", base+"/api/token", base+"/v1"),
	}
	return app, newRouter(app)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestLoginRedirect(t *testing.T) {
	app, h := newTestApp(t, nil)

	w, _ := doJSON(t, h, "GET", "/auth/login", nil)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Contains(t, q.Get("scope"), "user-read-email")
	require.Len(t, q.Get("state"), stateLength)

	// the challenge in the URL matches the stored verifier
	verifier, ok := app.Auth.ConsumeVerifier(q.Get("state"))
	require.True(t, ok)
	require.Equal(t, DeriveCodeChallenge(verifier), q.Get("code_challenge"))
}

func TestCallbackSuccess(t *testing.T) {
	upstream := newFakeUpstream(t)
	app, h := newTestApp(t, upstream)
	app.Auth.PutVerifier("s1", "v1")

	w, _ := doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
	require.Equal(t, http.StatusFound, w.Code)

	loc := w.Header().Get("Location")
	require.Contains(t, loc, app.FrontendURL+"/callback#")
	frag, err := url.ParseQuery(loc[len(app.FrontendURL+"/callback#"):])
	require.NoError(t, err)
	require.Equal(t, "at-1", frag.Get("access_token"))
	require.Equal(t, "rt-1", frag.Get("refresh_token"))
	require.Equal(t, "3600", frag.Get("expires_in"))

	// exchange used the PKCE verifier and the authorization code
	require.Equal(t, "authorization_code", upstream.lastForm.Get("grant_type"))
	require.Equal(t, "abc", upstream.lastForm.Get("code"))
	require.Equal(t, "v1", upstream.lastForm.Get("code_verifier"))

	// user upserted with zero points, refresh token remembered
	u, err := app.DB.GetUser("user-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "Ada", u.DisplayName)
	require.Equal(t, int64(0), u.Points)
	tok, ok := app.Auth.RefreshToken("user-1")
	require.True(t, ok)
	require.Equal(t, "rt-1", tok)
}

func TestCallbackStateSingleUse(t *testing.T) {
	upstream := newFakeUpstream(t)
	app, h := newTestApp(t, upstream)
	app.Auth.PutVerifier("s1", "v1")

	w, _ := doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "/callback#")

	// replaying the same state must fail
	w, _ = doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, app.FrontendURL+"/?error=state_mismatch", w.Header().Get("Location"))
}

func TestCallbackErrors(t *testing.T) {
	t.Run("upstream error param", func(t *testing.T) {
		app, h := newTestApp(t, nil)
		w, _ := doJSON(t, h, "GET", "/auth/callback?error=access_denied", nil)
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, app.FrontendURL+"/?error=access_denied", w.Header().Get("Location"))
	})

	t.Run("missing state", func(t *testing.T) {
		app, h := newTestApp(t, nil)
		w, _ := doJSON(t, h, "GET", "/auth/callback?code=abc", nil)
		require.Equal(t, app.FrontendURL+"/?error=state_mismatch", w.Header().Get("Location"))
	})

	t.Run("exchange failure", func(t *testing.T) {
		upstream := newFakeUpstream(t)
		upstream.tokenStatus = http.StatusBadRequest
		app, h := newTestApp(t, upstream)
		app.Auth.PutVerifier("s1", "v1")
		w, _ := doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
		require.Equal(t, app.FrontendURL+"/?error=token_exchange_failed", w.Header().Get("Location"))

		// the state was consumed before the exchange: no second chance
		app.Auth.PutVerifier("s2", "v2")
		upstream.tokenStatus = 0
		w, _ = doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
		require.Equal(t, app.FrontendURL+"/?error=state_mismatch", w.Header().Get("Location"))
	})

	t.Run("profile failure is non-fatal", func(t *testing.T) {
		upstream := newFakeUpstream(t)
		upstream.profStatus = http.StatusInternalServerError
		app, h := newTestApp(t, upstream)
		app.Auth.PutVerifier("s1", "v1")

		w, _ := doJSON(t, h, "GET", "/auth/callback?code=abc&state=s1", nil)
		require.Contains(t, w.Header().Get("Location"), "/callback#")

		// no user was persisted
		u, err := app.DB.GetUser("user-1")
		require.NoError(t, err)
		require.Nil(t, u)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("missing inputs", func(t *testing.T) {
		_, h := newTestApp(t, nil)
		w, body := doJSON(t, h, "POST", "/auth/refresh", map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.NotEmpty(t, body["error"])
	})

	t.Run("unknown user id", func(t *testing.T) {
		_, h := newTestApp(t, nil)
		w, _ := doJSON(t, h, "POST", "/auth/refresh", map[string]string{"user_id": "nobody"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("upstream rejects", func(t *testing.T) {
		upstream := newFakeUpstream(t)
		upstream.tokenStatus = http.StatusBadRequest
		_, h := newTestApp(t, upstream)
		w, _ := doJSON(t, h, "POST", "/auth/refresh", map[string]string{"refresh_token": "rt-old"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("success with rotation", func(t *testing.T) {
		upstream := newFakeUpstream(t)
		upstream.refreshToken = "rt-2"
		app, h := newTestApp(t, upstream)
		app.Auth.SetRefreshToken("user-1", "rt-1")

		w, body := doJSON(t, h, "POST", "/auth/refresh", map[string]string{"user_id": "user-1"})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "at-1", body["access_token"])
		require.Equal(t, "rt-2", body["refresh_token"])
		require.Equal(t, float64(3600), body["expires_in"])
		require.Equal(t, "refresh_token", upstream.lastForm.Get("grant_type"))
		require.Equal(t, "rt-1", upstream.lastForm.Get("refresh_token"))

		// rotated token replaces the stored one
		tok, _ := app.Auth.RefreshToken("user-1")
		require.Equal(t, "rt-2", tok)
	})

	t.Run("success without rotation echoes the original", func(t *testing.T) {
		upstream := newFakeUpstream(t)
		upstream.refreshToken = ""
		_, h := newTestApp(t, upstream)
		w, body := doJSON(t, h, "POST", "/auth/refresh", map[string]string{"refresh_token": "rt-orig"})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "rt-orig", body["refresh_token"])
	})
}

func TestPointsEndpoints(t *testing.T) {
	app, h := newTestApp(t, nil)

	// unknown users read as zero
	w, body := doJSON(t, h, "GET", "/user/u1/points", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), body["points"])
	require.Equal(t, "u1", body["userId"])

	// but cannot be credited
	w, _ = doJSON(t, h, "POST", "/user/u1/addPoints", map[string]interface{}{"points": 100})
	require.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, app.DB.UpsertUser("u1", "Ada", ""))

	w, body = doJSON(t, h, "POST", "/user/u1/addPoints", map[string]interface{}{"points": 100, "reason": "bonus"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(100), body["pointsAdded"])
	require.Equal(t, float64(100), body["newTotal"])
	require.Equal(t, "bonus", body["reason"])

	// invalid amounts
	for _, bad := range []interface{}{0, -5, "ten", nil} {
		w, _ = doJSON(t, h, "POST", "/user/u1/addPoints", map[string]interface{}{"points": bad})
		require.Equal(t, http.StatusBadRequest, w.Code)
		w, _ = doJSON(t, h, "POST", "/user/u1/deductPoints", map[string]interface{}{"points": bad})
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	// overdraft rejected, balance untouched
	w, body = doJSON(t, h, "POST", "/user/u1/deductPoints", map[string]interface{}{"points": 150})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, body["error"], "insufficient points")

	w, body = doJSON(t, h, "POST", "/user/u1/deductPoints", map[string]interface{}{"points": 30})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(30), body["pointsDeducted"])
	require.Equal(t, float64(70), body["newTotal"])
	require.Equal(t, "manual_deduct", body["reason"])
}

func TestBadgesEndpoints(t *testing.T) {
	app, h := newTestApp(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/user/badges", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var badges []Badge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &badges))
	require.Len(t, badges, len(catalogBadges))

	require.NoError(t, app.DB.UpsertUser("u1", "Ada", ""))
	_, err := app.DB.AddPoints("u1", 100, "seed")
	require.NoError(t, err)

	// catalog price wins over anything the client claims
	res, body := doJSON(t, h, "POST", "/user/u1/badges/purchase",
		map[string]interface{}{"badgeId": "midnight-aura", "price": 1})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(75), body["price"])
	require.Equal(t, float64(25), body["newTotal"])

	// double purchase
	res, body = doJSON(t, h, "POST", "/user/u1/badges/purchase", map[string]interface{}{"badgeId": "midnight-aura"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, body["error"], "already own")

	// unknown badge
	res, _ = doJSON(t, h, "POST", "/user/u1/badges/purchase", map[string]interface{}{"badgeId": "no-such"})
	require.Equal(t, http.StatusNotFound, res.Code)

	// missing badge id
	res, _ = doJSON(t, h, "POST", "/user/u1/badges/purchase", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, res.Code)

	// purchased list
	res, body = doJSON(t, h, "GET", "/user/u1/badges", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, []interface{}{"midnight-aura"}, body["purchasedBadges"])
}

func TestRateLimit(t *testing.T) {
	// newRouter installs the limiter before any request is served
	app, _ := newTestApp(t, nil)
	require.NotNil(t, app.rateLimiter)

	// a one-request budget rejects the second call from the same client
	tight := &App{
		DB:          NewMemoryDB(),
		Auth:        NewAuthState(),
		FrontendURL: "http://127.0.0.1:5173",
		Spotify: NewSpotifyClient("client-id", "client-secret",
			"http://127.0.0.1:4000/auth/callback",
			"http://example.invalid/authorize", "http://example.invalid/api/token", "http://example.invalid/v1"),
		rateLimiter: NewRateLimiter(1),
	}
	h := newRouter(tight)

	w, _ := doJSON(t, h, "GET", "/user/u1/points", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := doJSON(t, h, "GET", "/user/u1/points", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "Rate limit exceeded", body["error"])

	// health endpoints are exempt
	w, _ = doJSON(t, h, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	_, h := newTestApp(t, nil)
	w, _ := doJSON(t, h, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, h, "GET", "/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
