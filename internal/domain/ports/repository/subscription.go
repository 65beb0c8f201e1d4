package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

// SubscriptionRepository is the port for the one-row-per-user entitlement.
type SubscriptionRepository interface {
	FindByUser(ctx context.Context, userID string) (*model.Subscription, error)
	// Save upserts by user id.
	Save(ctx context.Context, sub *model.Subscription) error
}
