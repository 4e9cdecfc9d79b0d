package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mtarnawa/hanashi/internal/backup"
	billingstripe "github.com/mtarnawa/hanashi/internal/billing/stripe"
	"github.com/mtarnawa/hanashi/internal/database"
	"github.com/mtarnawa/hanashi/internal/logging"
	"github.com/mtarnawa/hanashi/internal/server"
)

// staleSessionAge is how long a pending or active session may sit without a
// finalize or abandon before the sweeper closes it.
const staleSessionAge = 2 * time.Hour

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := logging.Setup(os.Getenv("HANASHI_LOG_LEVEL"), os.Getenv("HANASHI_LOG_FORMAT"))

	port := envOr("HANASHI_PORT", "8080")
	dbPath := envOr("HANASHI_DB_PATH", "hanashi.db")
	baseURL := envOr("HANASHI_BASE_URL", fmt.Sprintf("http://localhost:%s", port))

	tokenSecret := os.Getenv("HANASHI_TOKEN_SECRET")
	if tokenSecret == "" {
		logger.Error("HANASHI_TOKEN_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		Stripe: billingstripe.Config{
			SecretKey:           os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SubscriptionPriceID: os.Getenv("STRIPE_SUBSCRIPTION_PRICE_ID"),
			TrialPackagePriceID: os.Getenv("STRIPE_TRIAL_PACKAGE_PRICE_ID"),
			SuccessURL:          baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:           baseURL + "/billing/cancel",
		},
		BaseURL:         baseURL,
		TokenSecret:     tokenSecret,
		VAPIDPublicKey:  os.Getenv("HANASHI_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HANASHI_VAPID_PRIVATE_KEY"),
		RateLimit:       envInt("HANASHI_RATE_LIMIT", 60),
		RateWindow:      time.Minute,
	}

	srv := server.New(db, cfg, logger)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("HANASHI_S3_ENDPOINT"),
			Bucket:    os.Getenv("HANASHI_S3_BUCKET"),
			Region:    envOr("HANASHI_S3_REGION", "auto"),
			AccessKey: os.Getenv("HANASHI_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HANASHI_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("HANASHI_BACKUP_PASSPHRASE"),
		Hour:          envInt("HANASHI_BACKUP_HOUR", 3),
		RetentionDays: envInt("HANASHI_BACKUP_RETENTION_DAYS", 30),
	}, db, logger.With("component", "backup"))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	backupMgr.Start(bgCtx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(bgCtx)
	}

	// Periodic sweeps: sessions whose client never reported back, and idle
	// rate limiter windows.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.Ledger().AbandonStale(staleSessionAge); err != nil {
					logger.Error("sweep stale sessions", "error", err)
				} else if n > 0 {
					logger.Info("swept stale sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("hanashi starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	bgCancel()
	backupMgr.Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
