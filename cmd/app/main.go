// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-billing/internal/config"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
	pg "membership-billing/internal/infra/db/postgres"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/infra/metrics"
	"membership-billing/internal/infra/notify"
	"membership-billing/internal/infra/payment/alipay"
	"membership-billing/internal/infra/payment/paypal"
	"membership-billing/internal/infra/payment/stripe"
	"membership-billing/internal/infra/payment/wechatpay"
	"membership-billing/internal/infra/plans"
	red "membership-billing/internal/infra/redis"
	"membership-billing/internal/infra/sched"
	"membership-billing/internal/infra/web"
	"membership-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, sandbox endpoints)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	// ---- Redis (optional replay guard) ----
	var guard repository.ReplayGuard
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		guard = red.NewReplayGuard(redisClient, cfg.Redis.ReplayTTL)
	} else {
		logger.Warn().Msg("redis not configured; webhook dedup relies on the database ledger only")
	}

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)
	planRepo, err := plans.NewStaticRepo(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plan table invalid")
	}

	// ---- Alerts ----
	var sink adapter.AlertSink = notify.NoopSink{}
	if cfg.Alerts.TelegramToken != "" {
		tg, err := notify.NewTelegramSink(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram alert sink failed")
		}
		sink = tg
	}
	alerts := notify.NewDispatcher(sink, 64, logger)
	go alerts.Start(ctx)

	// ---- Payment providers ----
	providers := map[model.Provider]adapter.PaymentProvider{}
	if cfg.Providers.WechatPay.Enabled() {
		p, err := wechatpay.NewFromConfig(cfg.Providers.WechatPay)
		if err != nil {
			logger.Fatal().Err(err).Msg("wechatpay adapter failed")
		}
		providers[model.ProviderWechatPay] = p
	}
	if cfg.Providers.Alipay.Enabled() {
		p, err := alipay.NewFromConfig(cfg.Providers.Alipay)
		if err != nil {
			logger.Fatal().Err(err).Msg("alipay adapter failed")
		}
		providers[model.ProviderAlipay] = p
	}
	if cfg.Providers.Stripe.Enabled() {
		p, err := stripe.New(cfg.Providers.Stripe)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe adapter failed")
		}
		providers[model.ProviderStripe] = p
	}
	if cfg.Providers.PayPal.Enabled() {
		p, err := paypal.New(cfg.Providers.PayPal)
		if err != nil {
			logger.Fatal().Err(err).Msg("paypal adapter failed")
		}
		providers[model.ProviderPayPal] = p
	}
	for p := range providers {
		logger.Info().Str("provider", string(p)).Msg("payment provider enabled")
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, planRepo, subUC, providers, alerts, logger)
	webhookUC := usecase.NewWebhookUseCase(orderUC, eventRepo, guard, alerts, logger)

	// ---- Reconciler ----
	reconciler := sched.NewReconciler(orderUC, orderRepo, alerts, logger, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	srv := web.NewServer(orderUC, webhookUC, subUC, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
}
