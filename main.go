package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/resonate/internal/config"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

type App struct {
	DB          DB
	Spotify     *SpotifyClient
	Auth        *AuthState
	FrontendURL string
	rateLimiter *RateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "err", err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func newRouter(app *App) *mux.Router {
	r := mux.NewRouter()

	// The limiter is created here, before any request runs, so the RateLimit
	// middleware never writes the App field concurrently
	if app.rateLimiter == nil {
		app.rateLimiter = NewRateLimiter(120)
	}

	// Apply global middleware
	r.Use(SecurityHeaders)
	r.Use(app.Logging)
	r.Use(app.CORS)
	r.Use(app.RateLimit)

	// Health check endpoints
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := app.DB.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	// OAuth PKCE flow
	r.HandleFunc("/auth/login", app.HandleAuthLogin).Methods("GET")
	r.HandleFunc("/auth/callback", app.HandleAuthCallback).Methods("GET")
	r.HandleFunc("/auth/refresh", app.HandleAuthRefresh).Methods("POST")

	// Points and badges; the literal /user/badges route must register before
	// the {userId} routes so mux does not capture "badges" as a user id
	u := r.PathPrefix("/user").Subrouter()
	u.HandleFunc("/badges", app.HandleListBadges).Methods("GET")
	u.HandleFunc("/{userId}/badges", app.HandleGetPurchasedBadges).Methods("GET")
	u.HandleFunc("/{userId}/badges/purchase", app.HandlePurchaseBadge).Methods("POST")
	u.HandleFunc("/{userId}/points", app.HandleGetPoints).Methods("GET")
	u.HandleFunc("/{userId}/addPoints", app.HandleAddPoints).Methods("POST")
	u.HandleFunc("/{userId}/deductPoints", app.HandleDeductPoints).Methods("POST")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	setupLogger(c.LogLevel)

	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		log.Fatal("SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET is not set. OAuth will fail.")
	}

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}

		slog.Info("applying database migrations")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			slog.Warn("migrations", "err", err)
		}

		p, err := NewPostgresDB(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		slog.Info("connected to PostgreSQL")
	case "memory":
		slog.Warn("using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	inserted, err := db.SeedBadges(catalogBadges)
	if err != nil {
		log.Fatalf("badge seeding: %v", err)
	}
	if inserted > 0 {
		slog.Info("seeded missing badges", "inserted", inserted)
	} else {
		slog.Info("badge catalog already present")
	}

	app := &App{
		DB:          db,
		Spotify:     NewSpotifyClient(c.SpotifyClientID, c.SpotifyClientSecret, c.RedirectURI, c.SpotifyAuthURL, c.SpotifyTokenURL, c.SpotifyAPIURL),
		Auth:        NewAuthState(),
		FrontendURL: c.FrontendURL,
	}
	srv := &http.Server{Handler: newRouter(app), Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 15 * time.Second}

	go func() {
		slog.Info("starting server", "port", c.Port, "frontend", c.FrontendURL, "redirect_uri", c.RedirectURI)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	slog.Info("server exited")
}
