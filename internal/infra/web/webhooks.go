package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/infra/metrics"
	"membership-billing/internal/usecase"
)

// maxWebhookBody caps inbound callback payloads. Provider notifications are
// small; anything larger is hostile.
const maxWebhookBody = 1 << 20

// handleWebhook is the shared ingestion endpoint. The outcome is translated
// into each provider's expected acknowledgement: a failure ack makes the
// provider redeliver, a success ack stops its retries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	provider, err := model.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn().Err(err).Str("provider", string(provider)).Msg("webhook body read failed")
		s.ack(w, provider, usecase.CallbackOutcome{AckSuccess: false})
		return
	}

	outcome, err := s.webhooks.HandleCallback(ctx, provider, &adapter.CallbackRequest{
		Body:   body,
		Header: r.Header,
	})
	if err != nil && outcome.AckSuccess {
		// Terminal failure (amount parked for review); the ack below stops
		// redelivery, the error itself was already alerted on.
		s.log.Warn().Err(err).Str("provider", string(provider)).Msg("webhook accepted with error")
	}

	metrics.ObserveWebhookDuration(string(provider), time.Since(start).Seconds())
	s.ack(w, provider, outcome)
}

// ack writes the provider-specific acknowledgement body.
func (s *Server) ack(w http.ResponseWriter, provider model.Provider, outcome usecase.CallbackOutcome) {
	switch provider {
	case model.ProviderWechatPay:
		w.Header().Set("Content-Type", "application/json")
		if outcome.AckSuccess {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"code":"SUCCESS"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"FAIL","message":"processing failed"}`))

	case model.ProviderAlipay:
		w.Header().Set("Content-Type", "text/plain")
		if outcome.AckSuccess {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("success"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fail"))

	default: // stripe, paypal: plain status codes
		if outcome.AckSuccess {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}
}
