// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
)

// SubscriptionUseCase owns the entitlement row. Extend is only ever reached
// through the order lifecycle's CAS transition, so it runs at most once per
// paid order.
type SubscriptionUseCase struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *SubscriptionUseCase {
	return &SubscriptionUseCase{subs: subs, log: logger, now: time.Now}
}

// Extend grants billingDays to the user. An active subscription stacks the
// days on top of its current expiry; a missing or lapsed one restarts from
// now.
func (uc *SubscriptionUseCase) Extend(ctx context.Context, userID, plan string, billingDays int, sourceOrderID string) (*model.Subscription, error) {
	if userID == "" || billingDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := uc.now()

	sub, err := uc.subs.FindByUser(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		sub = &model.Subscription{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	mode := "reset"
	if sub.ActiveAt(now) {
		mode = "stack"
	}
	if err := sub.ExtendBy(billingDays, plan, sourceOrderID, now); err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	metrics.IncSubscriptionExtension(mode)
	uc.log.Info().
		Str("user_id", userID).
		Str("order_id", sourceOrderID).
		Int("days", billingDays).
		Str("mode", mode).
		Time("end_at", sub.EndAt).
		Msg("subscription extended")
	return sub, nil
}

// GetByUser returns the user's subscription row, refreshing the lapsed flag.
func (uc *SubscriptionUseCase) GetByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := uc.subs.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.ActiveAt(uc.now()) {
		sub.Status = model.SubscriptionStatusExpired
	}
	return sub, nil
}
