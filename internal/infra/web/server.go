// Package web is the HTTP edge: the authenticated client API for orders and
// subscriptions, and the unauthenticated webhook endpoints whose callers are
// authenticated cryptographically by the provider adapters instead.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"membership-billing/internal/usecase"
)

type Server struct {
	orders   *usecase.OrderUseCase
	webhooks *usecase.WebhookUseCase
	subs     *usecase.SubscriptionUseCase
	auth     *AuthManager
	log      *zerolog.Logger
}

func NewServer(
	orders *usecase.OrderUseCase,
	webhooks *usecase.WebhookUseCase,
	subs *usecase.SubscriptionUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		orders:   orders,
		webhooks: webhooks,
		subs:     subs,
		auth:     auth,
		log:      logger,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/orders", s.createOrder)
		r.Get("/orders/{orderID}", s.getOrder)
		r.Post("/orders/{orderID}/capture", s.captureOrder)
		r.Get("/subscription", s.getSubscription)
	})

	// Webhook callers carry no bearer token; each adapter authenticates the
	// payload itself.
	r.Post("/webhooks/{provider}", s.handleWebhook)

	return r
}
