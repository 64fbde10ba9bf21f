package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/config"
	"github.com/iliyamo/cinema-ebooking/internal/database"
	"github.com/iliyamo/cinema-ebooking/internal/handler"
	"github.com/iliyamo/cinema-ebooking/internal/jobs"
	"github.com/iliyamo/cinema-ebooking/internal/logger"
	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/metrics"
	"github.com/iliyamo/cinema-ebooking/internal/middleware"
	"github.com/iliyamo/cinema-ebooking/internal/queue"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
	"github.com/iliyamo/cinema-ebooking/internal/router"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
	"github.com/iliyamo/cinema-ebooking/internal/validation"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, cfg.DBMigrations); err != nil {
			zl.Fatal("database migration failed", zap.Error(err))
		}
		zl.Info("migrations applied", zap.String("source", cfg.DBMigrations))
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), zl)
	if rdb != nil {
		defer rdb.Close()
	}

	cipher, err := utils.NewCardCipher(cfg.PaymentKey)
	if err != nil {
		zl.Fatal("invalid PAYMENT_ENC_KEY", zap.Error(err))
	}
	m := metrics.New()

	users := repository.NewUserRepo(db, cipher)
	codes := repository.NewVerificationRepo(db)
	tokens := repository.NewTokenRepo(db)
	addresses := repository.NewAddressRepo(db)
	payments := repository.NewPaymentMethodRepo(db, cipher)
	subs := repository.NewSubscriptionRepo(db)
	movies := repository.NewMovieRepo(db)
	promotions := repository.NewPromotionRepo(db)

	// ---- Mail ----
	var sender mail.Sender = mail.LogSender{Log: zl}
	if cfg.Mail.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.Mail, zl)
	}
	direct := &mail.DirectDispatcher{Sender: sender, Timeout: cfg.Mail.SendTimeout, Metrics: m, Log: zl}
	var dispatcher mail.Dispatcher = direct
	if cfg.Mail.QueueEnabled {
		pub := queue.NewPublisher(cfg.Mail.RabbitURL, cfg.Mail.QueueName, zl)
		defer pub.Close()
		dispatcher = &mail.QueueDispatcher{Publisher: pub, Fallback: direct, Metrics: m, Log: zl}

		consumer := &queue.Consumer{
			URL:         cfg.Mail.RabbitURL,
			Queue:       cfg.Mail.QueueName,
			MaxAttempts: cfg.Mail.MaxAttempts,
			Backoff:     cfg.Mail.RetryBackoff,
			Log:         zl,
			Handle: func(ctx context.Context, ev queue.MailRequestedEvent) error {
				sctx, cancel := context.WithTimeout(ctx, cfg.Mail.SendTimeout)
				defer cancel()
				return sender.Send(sctx, mail.FromEvent(ev))
			},
			OnResult: func(ev queue.MailRequestedEvent, outcome string) { m.Mail(ev.Kind, outcome) },
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("mail consumer stopped", zap.Error(err))
			}
		}()
	}

	// ---- Jobs ----
	sched := jobs.NewScheduler(zl)
	cleanup := &jobs.Cleanup{Codes: codes, Tokens: tokens, Metrics: m, Log: zl}
	if err := sched.Add("cleanup", cfg.CodeCleanupSpec, cleanup.Run); err != nil {
		zl.Fatal("invalid CODE_CLEANUP_SPEC", zap.Error(err))
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	router.Register(e, router.Handlers{
		Health:        &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:          handler.NewAuthHandler(cfg, users, codes, tokens, dispatcher, zl),
		Profile:       handler.NewProfileHandler(users, addresses, payments, subs, cfg.BcryptCost, zl),
		Payments:      handler.NewPaymentMethodHandler(payments, zl),
		Movies:        handler.NewMovieHandler(movies, zl),
		Promotions:    handler.NewPromotionHandler(promotions, zl),
		Subscriptions: handler.NewSubscriptionHandler(subs, promotions, dispatcher, zl),
		Users:         handler.NewUserAdminHandler(users, cfg.BcryptCost, zl),
	}, router.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
		Cache:       middleware.NewRedisCache(config.LoadCacheConfig(), rdb, zl),
		Metrics:     m,
		Log:         zl,
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}
