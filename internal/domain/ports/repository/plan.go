package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

// PlanRepository resolves the pricing table. The table itself is owned by an
// external collaborator; this port is all the lifecycle needs.
type PlanRepository interface {
	FindPrice(ctx context.Context, plan, cycle string) (*model.PlanPrice, error)
}
