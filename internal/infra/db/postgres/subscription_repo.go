package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `SELECT id, user_id, plan, status, start_at, end_at, source_order_id, created_at, updated_at FROM subscriptions WHERE user_id=$1;`
	s := &model.Subscription{}
	var status string
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&s.ID, &s.UserID, &s.Plan, &status, &s.StartAt, &s.EndAt, &s.SourceOrderID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func (r *subscriptionRepo) Save(ctx context.Context, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (id, user_id, plan, status, start_at, end_at, source_order_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (user_id) DO UPDATE SET
  plan=$3, status=$4, start_at=$5, end_at=$6, source_order_id=$7, updated_at=$9;`

	_, err := r.pool.Exec(ctx, q,
		s.ID, s.UserID, s.Plan, string(s.Status), s.StartAt, s.EndAt, s.SourceOrderID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
