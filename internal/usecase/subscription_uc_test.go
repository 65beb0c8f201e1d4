//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/usecase"
)

func TestSubscriptionUseCase_Extend(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a fresh subscription for a new user", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewSubscriptionUseCase(subs, newTestLogger())

		// --- Act ---
		sub, err := uc.Extend(ctx, "user-1", "pro", 30, "str_order1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected status 'active', got %q", sub.Status)
		}
		if got := sub.EndAt.Sub(sub.StartAt); got != 30*24*time.Hour {
			t.Errorf("expected 30 days of entitlement, got %v", got)
		}
		if sub.SourceOrderID != "str_order1" {
			t.Errorf("expected source order to be recorded, got %q", sub.SourceOrderID)
		}
	})

	t.Run("should stack days on top of an active subscription", func(t *testing.T) {
		// --- Arrange ---
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewSubscriptionUseCase(subs, newTestLogger())

		first, err := uc.Extend(ctx, "user-1", "pro", 10, "str_order1")
		if err != nil {
			t.Fatalf("setup: %v", err)
		}

		// --- Act ---
		second, err := uc.Extend(ctx, "user-1", "pro", 30, "str_order2")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := second.EndAt.Sub(first.EndAt); got != 30*24*time.Hour {
			t.Errorf("expected the new expiry to stack 30 days on the old one, got %v", got)
		}
		if !second.StartAt.Equal(first.StartAt) {
			t.Error("expected StartAt to be untouched while stacking")
		}
	})

	t.Run("should restart from now for a lapsed subscription", func(t *testing.T) {
		// --- Arrange: a subscription that expired a year ago ---
		subs := NewMockSubscriptionRepo()
		old := &model.Subscription{
			ID:      "sub-1",
			UserID:  "user-1",
			Plan:    "pro",
			Status:  model.SubscriptionStatusExpired,
			StartAt: time.Now().Add(-400 * 24 * time.Hour),
			EndAt:   time.Now().Add(-365 * 24 * time.Hour),
		}
		if err := subs.Save(ctx, old); err != nil {
			t.Fatalf("setup: %v", err)
		}
		uc := usecase.NewSubscriptionUseCase(subs, newTestLogger())

		// --- Act ---
		sub, err := uc.Extend(ctx, "user-1", "pro", 30, "str_order2")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.EndAt.Before(time.Now().Add(29 * 24 * time.Hour)) {
			t.Errorf("expected roughly 30 days from now, got %v", sub.EndAt)
		}
		if sub.StartAt.Equal(old.StartAt) {
			t.Error("expected StartAt to be reset for a lapsed subscription")
		}
	})

	t.Run("should reject non-positive day counts", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		uc := usecase.NewSubscriptionUseCase(subs, newTestLogger())

		if _, err := uc.Extend(ctx, "user-1", "pro", 0, "str_order1"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_GetByUser(t *testing.T) {
	ctx := context.Background()

	t.Run("should flag a lapsed subscription as expired", func(t *testing.T) {
		subs := NewMockSubscriptionRepo()
		_ = subs.Save(ctx, &model.Subscription{
			ID:     "sub-1",
			UserID: "user-1",
			Status: model.SubscriptionStatusActive,
			EndAt:  time.Now().Add(-time.Hour),
		})
		uc := usecase.NewSubscriptionUseCase(subs, newTestLogger())

		sub, err := uc.GetByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sub.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected status 'expired', got %q", sub.Status)
		}
	})

	t.Run("should return not found for a user without a subscription", func(t *testing.T) {
		uc := usecase.NewSubscriptionUseCase(NewMockSubscriptionRepo(), newTestLogger())

		if _, err := uc.GetByUser(ctx, "user-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
