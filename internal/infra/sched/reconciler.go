// Package sched holds background loops. The reconciler is the safety net for
// orders whose callback never landed or whose process died mid-transition.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
	"membership-billing/internal/usecase"
)

// Reconciler periodically scans stale pending orders. Capturable providers
// get an active finalize attempt; the rest are alerted on for manual review,
// since their settlement only ever arrives by callback.
type Reconciler struct {
	uc         *usecase.OrderUseCase
	orders     repository.OrderRepository
	alerts     adapter.AlertSink
	log        *zerolog.Logger
	interval   time.Duration
	staleAfter time.Duration
}

func NewReconciler(
	uc *usecase.OrderUseCase,
	orders repository.OrderRepository,
	alerts adapter.AlertSink,
	logger *zerolog.Logger,
	interval, staleAfter time.Duration,
) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Reconciler{
		uc:         uc,
		orders:     orders,
		alerts:     alerts,
		log:        logger,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

func (w *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Reconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.orders.ListPendingOlderThan(ctx, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list pending failed")
		return
	}
	metrics.SetStalePending(len(pending))

	for _, order := range pending {
		if w.tryCapture(ctx, order) {
			continue
		}
		// Callback-only provider or no reference to act on; a human has to
		// look at the provider dashboard.
		w.log.Warn().
			Str("order_id", order.ID).
			Str("provider", string(order.Provider)).
			Time("created_at", order.CreatedAt).
			Msg("reconciler: stale pending order")
		_ = w.alerts.Send(ctx, adapter.Alert{
			Kind:     adapter.AlertStalePending,
			Provider: order.Provider,
			OrderID:  order.ID,
			Detail:   "pending since " + order.CreatedAt.Format(time.RFC3339),
		})
	}
}

// tryCapture finalizes an approval-flow order through the provider. Returns
// true when the order was handled (captured or confirmed already done).
func (w *Reconciler) tryCapture(ctx context.Context, order *model.PaymentOrder) bool {
	cap, ok := w.uc.Provider(order.Provider).(adapter.Capturer)
	if !ok || order.ProviderRef == "" {
		return false
	}

	ev, err := cap.Capture(ctx, order.ProviderRef)
	if err != nil {
		w.log.Warn().Err(err).
			Str("order_id", order.ID).
			Msg("reconciler: capture attempt failed")
		return false
	}
	if ev.OrderID == "" {
		ev.OrderID = order.ID
	}
	res, err := w.uc.ApplyPaidTransition(ctx, ev, nil)
	if err != nil {
		w.log.Error().Err(err).
			Str("order_id", order.ID).
			Msg("reconciler: transition failed")
		return false
	}
	if res.Reason == "not_settled" {
		// Capture went through but the charge is still in flight; the order
		// is as stale as before, so let the alert below fire.
		return false
	}
	w.log.Info().Str("order_id", order.ID).Str("reason", res.Reason).Msg("reconciler: order finalized")
	return true
}
