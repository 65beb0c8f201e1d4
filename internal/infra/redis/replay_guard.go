package redis

import (
	"context"
	"time"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.ReplayGuard = (*ReplayGuard)(nil)

// ReplayGuard short-circuits webhook retries before they reach the durable
// ledger. SET NX marks the event and reports in one round trip whether it
// was already marked. Purely an optimization: the unique insert in Postgres
// stays authoritative.
type ReplayGuard struct {
	cli RedisClient
	ttl time.Duration
}

func NewReplayGuard(cli RedisClient, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &ReplayGuard{cli: cli, ttl: ttl}
}

func (g *ReplayGuard) Seen(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	key := "webhook:seen:" + string(provider) + ":" + eventID
	set, err := g.cli.SetNX(ctx, key, 1, g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}
