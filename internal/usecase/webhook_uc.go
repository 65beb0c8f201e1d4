// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
)

// CallbackOutcome tells the transport layer which provider-mandated ack to
// send. AckSuccess covers every "no further retries needed" case, including
// duplicates and already-handled orders.
type CallbackOutcome struct {
	AckSuccess bool
	Applied    bool
	Duplicate  bool
}

// WebhookUseCase is the ingestion pipeline: verify, dedup, transition.
type WebhookUseCase struct {
	orders *OrderUseCase
	events repository.WebhookEventRepository
	guard  repository.ReplayGuard // optional fast path; may be nil
	alerts adapter.AlertSink
	log    *zerolog.Logger
}

func NewWebhookUseCase(
	orders *OrderUseCase,
	events repository.WebhookEventRepository,
	guard repository.ReplayGuard,
	alerts adapter.AlertSink,
	logger *zerolog.Logger,
) *WebhookUseCase {
	return &WebhookUseCase{orders: orders, events: events, guard: guard, alerts: alerts, log: logger}
}

// HandleCallback processes one inbound provider callback end to end. Order
// state is only ever touched after the adapter authenticated the payload.
func (uc *WebhookUseCase) HandleCallback(ctx context.Context, provider model.Provider, cb *adapter.CallbackRequest) (CallbackOutcome, error) {
	pa := uc.orders.Provider(provider)
	if pa == nil {
		return CallbackOutcome{}, fmt.Errorf("%w: provider %q not configured", domain.ErrConfig, provider)
	}

	ev, err := pa.VerifyCallback(ctx, cb)
	if err != nil {
		metrics.IncWebhook(string(provider), "signature_failure")
		uc.log.Error().Err(err).
			Str("provider", string(provider)).
			Msg("security: webhook verification failed")
		_ = uc.alerts.Send(ctx, adapter.Alert{
			Kind:     adapter.AlertSignatureFailure,
			Provider: provider,
			Detail:   err.Error(),
		})
		// Failure ack so the provider retries delivery.
		return CallbackOutcome{AckSuccess: false}, err
	}

	// Capture runs before the dedup insert on purpose. A failed capture must
	// leave the event unrecorded, otherwise the provider's redelivery would
	// be dismissed as a duplicate and the order would stall until the
	// reconciler. Capture itself is idempotent at the provider.
	if ev.RequiresCapture {
		cap, ok := pa.(adapter.Capturer)
		if !ok {
			return CallbackOutcome{}, domain.ErrNotCapturable
		}
		captured, err := cap.Capture(ctx, ev.ProviderRef)
		if err != nil {
			// Verified but not finalized; fail the ack so the provider
			// redelivers and we retry the capture.
			uc.log.Warn().Err(err).
				Str("provider", string(provider)).
				Str("order_id", ev.OrderID).
				Msg("capture on webhook failed")
			return CallbackOutcome{AckSuccess: false}, err
		}
		if captured.OrderID == "" {
			captured.OrderID = ev.OrderID
		}
		if captured.EventID == "" {
			captured.EventID = ev.EventID
		}
		ev = captured
	}

	if ev.EventID != "" {
		dup, err := uc.dedup(ctx, provider, ev.EventID)
		if err != nil {
			return CallbackOutcome{}, err
		}
		if dup {
			metrics.IncWebhook(string(provider), "duplicate")
			uc.log.Debug().
				Str("provider", string(provider)).
				Str("event_id", ev.EventID).
				Msg("duplicate webhook delivery")
			return CallbackOutcome{AckSuccess: true, Duplicate: true}, nil
		}
	}

	if !ev.Settled {
		// Authentic but non-settling event (closed trade, pending state).
		// Nothing to transition; stop the provider from retrying.
		metrics.IncWebhook(string(provider), "not_settled")
		return CallbackOutcome{AckSuccess: true}, nil
	}

	res, err := uc.orders.ApplyPaidTransition(ctx, ev, cb.Body)
	if err != nil {
		if res.Reason == "amount_mismatch" {
			// Alert already raised; success ack so the provider stops
			// retrying a delivery that will never reconcile on its own.
			metrics.IncWebhook(string(provider), "amount_mismatch")
			return CallbackOutcome{AckSuccess: true}, err
		}
		return CallbackOutcome{}, err
	}

	metrics.IncWebhook(string(provider), "ok")
	return CallbackOutcome{AckSuccess: true, Applied: res.Applied}, nil
}

func (uc *WebhookUseCase) dedup(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	if uc.guard != nil {
		seen, err := uc.guard.Seen(ctx, provider, eventID)
		if err != nil {
			// Guard is a cache; on failure fall through to the ledger.
			uc.log.Warn().Err(err).Msg("replay guard unavailable")
		} else if seen {
			return true, nil
		}
	}
	inserted, err := uc.events.InsertOnce(ctx, provider, eventID)
	if err != nil {
		return false, err
	}
	return !inserted, nil
}
