package repository

import (
	"context"

	"membership-billing/internal/domain/model"
)

// WebhookEventRepository is the durable idempotency ledger.
type WebhookEventRepository interface {
	// InsertOnce records (provider, eventID) and reports whether this call
	// inserted it. false means the event was already handled; that is a
	// normal outcome, not an error.
	InsertOnce(ctx context.Context, provider model.Provider, eventID string) (bool, error)
}

// ReplayGuard is an optional fast path in front of the ledger (e.g. backed
// by Redis SET NX). A miss is never authoritative; the ledger still decides.
type ReplayGuard interface {
	// Seen marks (provider, eventID) and reports whether it was already
	// marked recently.
	Seen(ctx context.Context, provider model.Provider, eventID string) (bool, error)
}
