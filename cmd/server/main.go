package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/custom_stores/internal/config"
	"github.com/Skotchmaster/custom_stores/internal/db"
	"github.com/Skotchmaster/custom_stores/internal/es"
	"github.com/Skotchmaster/custom_stores/internal/gateway"
	"github.com/Skotchmaster/custom_stores/internal/httpserver"
	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/notify"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/search"
	"github.com/Skotchmaster/custom_stores/internal/service"
	"github.com/Skotchmaster/custom_stores/internal/tokens"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.MustLoad()

	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Attrs:  []any{"service", cfg.ServiceName, "env", cfg.Env},
	})
	slog.SetDefault(logger)
	ctx := logging.IntoContext(context.Background(), logger)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL, cfg.DBAutoCreate)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	var events mykafka.Publisher = mykafka.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := mykafka.NewProducer(cfg.KafkaBrokers)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka_close_error", "error", err)
			}
		}()
		events = producer
	} else {
		logger.Warn("kafka disabled", "reason", "KAFKA_BROKERS is empty")
	}

	r := repo.New(gdb)
	mailer := notify.New(cfg.SMTP, logger)

	catalog := &service.CatalogService{Repo: r, Events: events}
	if cfg.ES.URL != "" {
		client, err := es.NewClient(ctx, cfg.ES, logger)
		if err != nil {
			logger.Error("elasticsearch unavailable, search falls back to the database", "error", err)
		} else {
			catalog.Index = &search.Index{Client: client, Name: cfg.ES.Index}
		}
	}

	identity := &service.IdentityService{
		Repo: r,
		Tokens: &tokens.Issuer{
			AccessSecret:  cfg.JWTAccessSecret,
			RefreshSecret: cfg.JWTRefreshSecret,
			AccessTTL:     cfg.AccessTokenTTL,
			RefreshTTL:    cfg.RefreshTokenTTL,
		},
		Mailer:      mailer,
		Events:      events,
		FrontendURL: cfg.FrontendURL,
	}
	orders := &service.OrderService{Repo: r, Events: events}
	outbox := &service.OutboxDispatcher{Repo: r, Mailer: mailer, Events: events}
	payments := &service.PaymentService{
		Repo:          r,
		Orders:        orders,
		Gateway:       gateway.NewRazorpay(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.MaxRetries),
		Outbox:        outbox,
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		Currency:      cfg.Razorpay.Currency,
	}
	if cfg.Razorpay.KeySecret == "" || cfg.Razorpay.WebhookSecret == "" {
		logger.Warn("payment gateway secrets missing, verification will reject every payment")
	}

	if err := identity.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("admin bootstrap error: %v", err)
	}

	e := httpserver.New(&httpserver.Deps{
		Identity:     &httpserver.IdentityHTTP{Svc: identity},
		Catalog:      &httpserver.CatalogHTTP{Svc: catalog},
		Cart:         &httpserver.CartHTTP{Svc: &service.CartService{Repo: r, Events: events}},
		Orders:       &httpserver.OrderHTTP{Svc: orders},
		Payments:     &httpserver.PaymentHTTP{Svc: payments},
		JWTSecret:    cfg.JWTAccessSecret,
		Logger:       logger,
		Production:   cfg.IsProduction(),
		AllowOrigins: []string{cfg.FrontendURL},
		Ready: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		outbox.Run(relayCtx, cfg.OutboxInterval)
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("http server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", "error", err)
	}
	stopRelay()
	<-relayDone

	logger.Info("shutdown complete")
}
