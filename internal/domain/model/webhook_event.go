package model

import "time"

// WebhookEvent is one row of the idempotency ledger for providers that hand
// out an explicit event or transmission id. The (provider, event_id) pair is
// inserted at most once; a second insert means the delivery was a retry.
type WebhookEvent struct {
	Provider    Provider
	EventID     string
	ProcessedAt time.Time
}
