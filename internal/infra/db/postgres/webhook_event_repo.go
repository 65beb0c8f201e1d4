package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

// InsertOnce relies on the (provider, event_id) primary key: the unique
// violation IS the duplicate signal, which keeps the check-and-insert atomic
// under concurrent deliveries.
func (r *webhookEventRepo) InsertOnce(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	const q = `INSERT INTO webhook_events (provider, event_id, processed_at) VALUES ($1,$2,$3);`
	_, err := r.pool.Exec(ctx, q, string(provider), eventID, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, domain.ErrOperationFailed
	}
	return true, nil
}
