package adapter

import (
	"context"

	"membership-billing/internal/domain/model"
)

type AlertKind string

const (
	AlertAmountMismatch   AlertKind = "amount_mismatch"
	AlertSignatureFailure AlertKind = "signature_failure"
	AlertStalePending     AlertKind = "stale_pending"
)

// Alert is a security- or reconciliation-relevant condition that needs a
// human to look at it. Delivery is best-effort and must never block request
// handling.
type Alert struct {
	Kind     AlertKind
	Provider model.Provider
	OrderID  string
	Detail   string
}

type AlertSink interface {
	Send(ctx context.Context, a Alert) error
}
