package model

import (
	"time"

	"membership-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscription is the single entitlement row per user. It is created on the
// first successful order and mutated on every later one; it never gets
// deleted, only lapses.
type Subscription struct {
	ID            string
	UserID        string
	Plan          string
	Status        SubscriptionStatus
	StartAt       time.Time
	EndAt         time.Time
	SourceOrderID string // order that last moved EndAt
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActiveAt reports whether the subscription covers the given instant.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s != nil && s.EndAt.After(now)
}

// ExtendBy moves EndAt forward by days. While the subscription is still
// active the extension stacks on top of the current expiry; once lapsed it
// restarts from now. EndAt never moves backwards.
func (s *Subscription) ExtendBy(days int, plan, sourceOrderID string, now time.Time) error {
	if days <= 0 || sourceOrderID == "" {
		return domain.ErrInvalidArgument
	}
	d := time.Duration(days) * 24 * time.Hour
	if s.ActiveAt(now) {
		s.EndAt = s.EndAt.Add(d)
	} else {
		s.StartAt = now
		s.EndAt = now.Add(d)
	}
	s.Plan = plan
	s.Status = SubscriptionStatusActive
	s.SourceOrderID = sourceOrderID
	s.UpdatedAt = now
	return nil
}
