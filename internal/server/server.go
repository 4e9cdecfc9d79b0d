// Package server wires the stores, ledgers, and handlers into one HTTP
// surface.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtarnawa/hanashi/internal/billing"
	billingstripe "github.com/mtarnawa/hanashi/internal/billing/stripe"
	"github.com/mtarnawa/hanashi/internal/credit"
	"github.com/mtarnawa/hanashi/internal/handler"
	"github.com/mtarnawa/hanashi/internal/leaderboard"
	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/progression"
	"github.com/mtarnawa/hanashi/internal/push"
	"github.com/mtarnawa/hanashi/internal/ratelimit"
	"github.com/mtarnawa/hanashi/internal/store"
	"github.com/mtarnawa/hanashi/internal/websocket"
)

type Config struct {
	Stripe          billingstripe.Config
	BaseURL         string
	TokenSecret     string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	RateLimit       int
	RateWindow      time.Duration
}

type Server struct {
	db          *sql.DB
	accounts    *store.AccountStore
	ledger      *credit.Ledger
	hub         *websocket.Hub
	scheduler   *push.Scheduler
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger

	sessionH     *handler.SessionHandler
	accountH     *handler.AccountHandler
	leaderboardH *handler.LeaderboardHandler
	contentH     *handler.ContentHandler
	checkoutH    *handler.CheckoutHandler
	webhookH     *handler.WebhookHandler
	pushH        *handler.PushHandler
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	accounts := store.NewAccountStore(db)
	sessions := store.NewSessionStore(db)
	contents := store.NewContentStore(db)
	badges := store.NewBadgeStore(db)
	events := store.NewEventStore(db)
	pushStore := store.NewPushStore(db)

	engine := progression.NewEngine(accounts, sessions, badges, logger.With("component", "progression"))
	tokens := credit.NewTokenIssuer(cfg.TokenSecret)
	ledger := credit.NewLedger(accounts, sessions, contents, engine, tokens, logger.With("component", "ledger"))
	board := leaderboard.NewBoard(db)
	hub := websocket.NewHub(logger.With("component", "websocket"))

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg.RateLimit, cfg.RateWindow)

	var stripeClient *billingstripe.Client
	if cfg.Stripe.SecretKey != "" {
		stripeClient = billingstripe.NewClient(cfg.Stripe)
	}

	var checkoutH *handler.CheckoutHandler
	var webhookH *handler.WebhookHandler
	if stripeClient != nil {
		processor := billing.NewProcessor(events, accounts, logger.With("component", "billing"))
		checkoutH = handler.NewCheckoutHandler(stripeClient, accounts, cfg.BaseURL, logger.With("component", "checkout"))
		webhookH = handler.NewWebhookHandler(stripeClient, processor, logger.With("component", "webhook"))
	}

	var pushService *push.Service
	var scheduler *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushService = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		scheduler = push.NewScheduler(pushService, pushStore, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushService, pushStore, logger.With("component", "push"))
	}

	return &Server{
		db:           db,
		accounts:     accounts,
		ledger:       ledger,
		hub:          hub,
		scheduler:    scheduler,
		rateLimiter:  limiter,
		logger:       logger,
		sessionH:     handler.NewSessionHandler(ledger, sessions, hub, logger.With("component", "sessions")),
		accountH:     handler.NewAccountHandler(badges, logger.With("component", "accounts")),
		leaderboardH: handler.NewLeaderboardHandler(board, logger.With("component", "leaderboard")),
		contentH:     handler.NewContentHandler(contents, logger.With("component", "contents")),
		checkoutH:    checkoutH,
		webhookH:     webhookH,
		pushH:        pushH,
	}
}

// Ledger exposes the credit ledger for cleanup tasks.
func (s *Server) Ledger() *credit.Ledger {
	return s.ledger
}

// RateLimiter exposes the limiter for cleanup tasks.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.rateLimiter
}

// PushScheduler returns the streak reminder scheduler, nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Webhooks authenticate by signature, not identity.
	if s.webhookH != nil {
		mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	}

	identity := middleware.RequireIdentity(s.accounts)
	limited := middleware.RateLimit(s.rateLimiter, middleware.AccountKey)
	api := func(h http.HandlerFunc) http.Handler {
		return identity(limited(h))
	}

	mux.Handle("POST /api/sessions", api(s.sessionH.Create))
	mux.Handle("GET /api/sessions/{id}", api(s.sessionH.Get))
	mux.Handle("POST /api/sessions/{id}/token", api(s.sessionH.Token))
	mux.Handle("POST /api/sessions/{id}/complete", api(s.sessionH.Complete))
	mux.Handle("POST /api/sessions/{id}/abandon", api(s.sessionH.Abandon))

	mux.Handle("GET /api/entitlement", api(s.accountH.Entitlement))
	mux.Handle("GET /api/progression", api(s.accountH.Progression))
	mux.Handle("GET /api/progression/tiers", api(s.accountH.Tiers))
	mux.Handle("GET /api/progression/badges", api(s.accountH.Badges))

	mux.Handle("GET /api/leaderboard", api(s.leaderboardH.Top))
	mux.Handle("GET /api/leaderboard/me", api(s.leaderboardH.Me))

	mux.Handle("GET /api/content", api(s.contentH.List))

	if s.checkoutH != nil {
		mux.Handle("POST /api/checkout", api(s.checkoutH.Create))
		mux.Handle("POST /api/billing/portal", api(s.checkoutH.Portal))
	}

	if s.pushH != nil {
		mux.Handle("GET /api/push/vapid-key", api(s.pushH.VAPIDKey))
		mux.Handle("POST /api/push/subscribe", api(s.pushH.Subscribe))
		mux.Handle("POST /api/push/unsubscribe", api(s.pushH.Unsubscribe))
	}

	// Live progression updates. Not rate-limited: one long-lived connection.
	mux.Handle("GET /ws", identity(websocket.Handle(s.hub, s.logger)))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
