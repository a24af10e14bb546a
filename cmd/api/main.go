package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/brightderm/booking-platform/internal/api"
	"github.com/brightderm/booking-platform/internal/appointments"
	"github.com/brightderm/booking-platform/internal/audit"
	"github.com/brightderm/booking-platform/internal/clinic"
	appconfig "github.com/brightderm/booking-platform/internal/config"
	"github.com/brightderm/booking-platform/internal/confirmation"
	"github.com/brightderm/booking-platform/internal/messaging"
	"github.com/brightderm/booking-platform/internal/observability/metrics"
	"github.com/brightderm/booking-platform/internal/payments"
	"github.com/brightderm/booking-platform/internal/scheduler"
	"github.com/brightderm/booking-platform/internal/slots"
	"github.com/brightderm/booking-platform/internal/waitlist"
	"github.com/brightderm/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// The audit recorder runs on database/sql via the pgx stdlib driver.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	auditor := audit.NewRecorder(auditDB, logger)

	messageStore := messaging.NewStore(pool)
	messenger := messaging.NewMockSender(messageStore, logger)

	clinicStore := clinic.NewStore(redisClient)
	apptStore := appointments.NewStore(pool)
	calculator := slots.NewCalculator(clinicStore, apptStore, logger)

	paymentService := payments.NewService(payments.NewStore(pool), auditor, cfg.PlatformFeePercent, logger)

	waitlistEngine := waitlist.NewEngine(waitlist.NewStore(pool), messenger, auditor, bookingMetrics, waitlist.Config{
		NotifyLimit: cfg.WaitlistNotifyLimit,
		ClaimWindow: cfg.WaitlistClaimWindow,
	}, logger)

	confirmationEngine := confirmation.NewEngine(
		confirmation.NewStore(pool), apptStore, waitlistEngine, paymentService,
		messenger, auditor, bookingMetrics,
		confirmation.Config{
			InitialWindow:        cfg.InitialConfirmWindow,
			ReminderWindow:       cfg.ReminderWindow,
			CancelHorizon:        cfg.AutoCancelWindow,
			NoShowGrace:          cfg.NoShowGracePeriod,
			ShortLeadAutoConfirm: cfg.ShortLeadAutoConfirm,
		}, logger)

	sched := scheduler.New(logger)
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context) error
	}{
		{"confirmation-initial", cfg.EscalationInterval, func(ctx context.Context) error {
			_, err := confirmationEngine.SendDueInitial(ctx)
			return err
		}},
		{"confirmation-reminder", cfg.EscalationInterval, func(ctx context.Context) error {
			_, err := confirmationEngine.SendDueReminders(ctx)
			return err
		}},
		{"auto-cancel", cfg.AutoCancelInterval, func(ctx context.Context) error {
			_, err := confirmationEngine.AutoCancelDue(ctx)
			return err
		}},
		{"short-lead-confirm", cfg.AutoCancelInterval, func(ctx context.Context) error {
			_, err := confirmationEngine.AutoConfirmShortLead(ctx)
			return err
		}},
		{"no-show", cfg.NoShowInterval, func(ctx context.Context) error {
			_, err := confirmationEngine.ProcessNoShows(ctx)
			return err
		}},
		{"waitlist-sweep", cfg.WaitlistSweepInterval, func(ctx context.Context) error {
			_, err := waitlistEngine.ExpireUnclaimed(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if err := sched.Register(job.name, job.interval, job.run); err != nil {
			logger.Error("failed to register job", "job", job.name, "error", err)
			os.Exit(1)
		}
	}
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.Dependencies{
		Slots:         slots.NewHandler(calculator, logger),
		Confirmations: confirmation.NewHandler(confirmationEngine, logger),
		Waitlist:      waitlist.NewHandler(waitlistEngine, logger),
		Payments:      payments.NewHandler(paymentService, logger),
		Messages:      messaging.NewHandler(messageStore, logger),
		Clinics:       clinic.NewHandler(clinicStore, logger),
		Audit:         audit.NewHandler(auditor, logger),
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
