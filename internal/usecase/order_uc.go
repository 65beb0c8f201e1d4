// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
)

// ApplyResult reports what a transition attempt did. Applied is true for
// exactly one caller per order, no matter how many race.
type ApplyResult struct {
	Applied bool
	Reason  string // unknown_order | already_handled | amount_mismatch | not_settled | "" when applied
}

// OrderView is the read-only projection served to clients and admin
// collaborators.
type OrderView struct {
	OrderID      string     `json:"orderId"`
	Status       string     `json:"status"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	Provider     string     `json:"provider"`
	BillingCycle string     `json:"billingCycle"`
	CreatedAt    time.Time  `json:"createdAt"`
	PaidAt       *time.Time `json:"paidAt,omitempty"`
}

// OrderUseCase is the order lifecycle manager: it creates orders, drives the
// pending→paid transition, and is the single place subscription extension is
// triggered from.
type OrderUseCase struct {
	orders    repository.OrderRepository
	plans     repository.PlanRepository
	subs      *SubscriptionUseCase
	providers map[model.Provider]adapter.PaymentProvider
	alerts    adapter.AlertSink
	log       *zerolog.Logger
	now       func() time.Time
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	plans repository.PlanRepository,
	subs *SubscriptionUseCase,
	providers map[model.Provider]adapter.PaymentProvider,
	alerts adapter.AlertSink,
	logger *zerolog.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		orders:    orders,
		plans:     plans,
		subs:      subs,
		providers: providers,
		alerts:    alerts,
		log:       logger,
		now:       time.Now,
	}
}

// Provider returns the adapter registered for p, or nil.
func (uc *OrderUseCase) Provider(p model.Provider) adapter.PaymentProvider {
	return uc.providers[p]
}

// CreateOrder persists a pending order and asks the provider for the
// redirect/QR artifact. A failed provider call leaves the order pending and
// retryable; the order is not failed just because the network call was.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, userID, plan, cycle string, provider model.Provider) (*model.PaymentOrder, *adapter.RedirectArtifact, error) {
	pa, ok := uc.providers[provider]
	if !ok {
		return nil, nil, fmt.Errorf("%w: provider %q not configured", domain.ErrConfig, provider)
	}

	price, err := uc.plans.FindPrice(ctx, plan, cycle)
	if err != nil {
		return nil, nil, err
	}
	amount, currency, err := price.PriceFor(provider)
	if err != nil {
		return nil, nil, err
	}

	order, err := model.NewPaymentOrder(userID, plan, cycle, provider, amount, currency, price.Days)
	if err != nil {
		return nil, nil, err
	}
	if err := uc.orders.Save(ctx, order); err != nil {
		return nil, nil, err
	}

	artifact, err := pa.CreateOrder(ctx, order)
	if err != nil {
		uc.log.Warn().Err(err).
			Str("order_id", order.ID).
			Str("provider", string(provider)).
			Msg("provider order creation failed; order stays pending")
		return order, nil, fmt.Errorf("%w: %v", domain.ErrProviderAPI, err)
	}
	if artifact.ProviderRef != "" {
		order.ProviderRef = artifact.ProviderRef
		if err := uc.orders.SetProviderRef(ctx, order.ID, artifact.ProviderRef); err != nil {
			return nil, nil, err
		}
	}

	metrics.IncOrder(string(provider), string(order.Status))
	uc.log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Str("provider", string(provider)).
		Str("plan", plan).
		Str("cycle", cycle).
		Str("amount", order.Amount.String()).
		Msg("order created")
	return order, artifact, nil
}

// ApplyPaidTransition is the single guarded entry point used by the webhook
// pipeline, the capture path and the reconciler. It is safe to call any
// number of times with the same verified data: the compare-and-set write
// lets exactly one caller through to the subscription extension.
func (uc *OrderUseCase) ApplyPaidTransition(ctx context.Context, ev *adapter.VerifiedEvent, rawPayload []byte) (ApplyResult, error) {
	if !ev.Settled {
		// Verified but not a completed charge (pending capture, declined,
		// closed trade). Every caller shares this guard, not just the webhook
		// pipeline: a capture result can come back unsettled too.
		uc.log.Debug().
			Str("order_id", ev.OrderID).
			Msg("unsettled event, no transition")
		return ApplyResult{Applied: false, Reason: "not_settled"}, nil
	}

	order, err := uc.orders.FindByID(ctx, ev.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		// A verified callback for an order we never created. Nothing to
		// mutate, but worth an eyeball.
		uc.log.Warn().Str("order_id", ev.OrderID).Msg("verified callback for unknown order")
		return ApplyResult{Applied: false, Reason: "unknown_order"}, nil
	}
	if err != nil {
		return ApplyResult{}, err
	}

	if order.Status != model.OrderStatusPending {
		return ApplyResult{Applied: false, Reason: "already_handled"}, nil
	}

	if !uc.amountMatches(order, ev) {
		uc.log.Error().
			Str("order_id", order.ID).
			Str("provider", string(order.Provider)).
			Str("expected", order.Amount.String()+" "+order.Currency).
			Str("got", ev.PaidAmount.String()+" "+ev.PaidCurrency).
			Msg("security: settled amount mismatch")
		_ = uc.alerts.Send(ctx, adapter.Alert{
			Kind:     adapter.AlertAmountMismatch,
			Provider: order.Provider,
			OrderID:  order.ID,
			Detail:   fmt.Sprintf("expected %s %s, provider reported %s %s", order.Amount, order.Currency, ev.PaidAmount, ev.PaidCurrency),
		})
		// Stays pending on purpose: the money may be in flight, so the order
		// is parked for manual review rather than auto-failed.
		return ApplyResult{Applied: false, Reason: "amount_mismatch"}, domain.ErrAmountMismatch
	}

	applied, err := uc.orders.MarkPaidIfPending(ctx, order.ID, ev.ProviderTxnID, uc.now(), rawPayload)
	if err != nil {
		return ApplyResult{}, err
	}
	if !applied {
		// Lost the race against a concurrent webhook/capture. Their apply
		// already extended the subscription.
		return ApplyResult{Applied: false, Reason: "already_handled"}, nil
	}

	metrics.IncOrder(string(order.Provider), string(model.OrderStatusPaid))
	metrics.AddRevenue(order.Currency, order.Amount)

	if _, err := uc.subs.Extend(ctx, order.UserID, order.Plan, order.BillingDays, order.ID); err != nil {
		// The order is paid and the CAS consumed; the extension must not be
		// retried blindly or it could double-credit. Escalate instead.
		uc.log.Error().Err(err).Str("order_id", order.ID).Msg("paid order but subscription extension failed")
		return ApplyResult{Applied: true}, err
	}

	uc.log.Info().
		Str("order_id", order.ID).
		Str("provider_txn_id", ev.ProviderTxnID).
		Msg("order paid")
	return ApplyResult{Applied: true}, nil
}

func (uc *OrderUseCase) amountMatches(order *model.PaymentOrder, ev *adapter.VerifiedEvent) bool {
	if !strings.EqualFold(order.Currency, ev.PaidCurrency) {
		return false
	}
	diff := order.Amount.Sub(ev.PaidAmount).Abs()
	return diff.LessThanOrEqual(order.Provider.Tolerance())
}

// GetStatus is the read path for client polling, scoped to the requesting
// user: asking about someone else's order looks identical to a missing one.
func (uc *OrderUseCase) GetStatus(ctx context.Context, userID, orderID string) (*OrderView, error) {
	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &OrderView{
		OrderID:      order.ID,
		Status:       string(order.Status),
		Amount:       order.Amount.String(),
		Currency:     order.Currency,
		Provider:     string(order.Provider),
		BillingCycle: order.BillingCycle,
		CreatedAt:    order.CreatedAt,
		PaidAt:       order.PaidAt,
	}, nil
}

// CaptureOnReturn finalizes an approval-flow order when the client lands
// back on the result page. Capture is idempotent at the provider, and the
// transition behind it is guarded by the same CAS as the webhook path, so
// racing the webhook is harmless.
func (uc *OrderUseCase) CaptureOnReturn(ctx context.Context, userID, orderID string) (ApplyResult, error) {
	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return ApplyResult{}, err
	}
	if order.UserID != userID {
		return ApplyResult{}, domain.ErrNotFound
	}
	if order.Status != model.OrderStatusPending {
		return ApplyResult{Applied: false, Reason: "already_handled"}, nil
	}

	cap, ok := uc.providers[order.Provider].(adapter.Capturer)
	if !ok {
		return ApplyResult{}, domain.ErrNotCapturable
	}
	if order.ProviderRef == "" {
		return ApplyResult{}, fmt.Errorf("%w: order %s has no provider reference", domain.ErrInvalidArgument, order.ID)
	}

	ev, err := cap.Capture(ctx, order.ProviderRef)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("%w: %v", domain.ErrProviderAPI, err)
	}
	if ev.OrderID == "" {
		ev.OrderID = order.ID
	}
	return uc.ApplyPaidTransition(ctx, ev, nil)
}
