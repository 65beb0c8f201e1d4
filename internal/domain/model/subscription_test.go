//go:build !integration

package model_test

import (
	"testing"
	"time"

	"membership-billing/internal/domain/model"
)

func TestSubscription_ExtendBy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should stack days while active", func(t *testing.T) {
		sub := &model.Subscription{
			UserID:  "user-1",
			Status:  model.SubscriptionStatusActive,
			StartAt: now.Add(-5 * 24 * time.Hour),
			EndAt:   now.Add(10 * 24 * time.Hour),
		}

		if err := sub.ExtendBy(30, "pro", "str_order2", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if want := now.Add(40 * 24 * time.Hour); !sub.EndAt.Equal(want) {
			t.Errorf("expected EndAt %v, got %v", want, sub.EndAt)
		}
		if !sub.StartAt.Equal(now.Add(-5 * 24 * time.Hour)) {
			t.Error("expected StartAt untouched while stacking")
		}
	})

	t.Run("should restart from now when lapsed", func(t *testing.T) {
		sub := &model.Subscription{
			UserID: "user-1",
			Status: model.SubscriptionStatusExpired,
			EndAt:  now.Add(-24 * time.Hour),
		}

		if err := sub.ExtendBy(30, "pro", "str_order2", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !sub.StartAt.Equal(now) {
			t.Errorf("expected StartAt reset to now, got %v", sub.StartAt)
		}
		if want := now.Add(30 * 24 * time.Hour); !sub.EndAt.Equal(want) {
			t.Errorf("expected EndAt %v, got %v", want, sub.EndAt)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected status 'active', got %q", sub.Status)
		}
	})

	t.Run("should record the order that moved the expiry", func(t *testing.T) {
		sub := &model.Subscription{UserID: "user-1"}
		_ = sub.ExtendBy(30, "pro", "str_order9", now)
		if sub.SourceOrderID != "str_order9" {
			t.Errorf("expected source order str_order9, got %q", sub.SourceOrderID)
		}
	})

	t.Run("should reject invalid extensions", func(t *testing.T) {
		sub := &model.Subscription{UserID: "user-1"}
		if err := sub.ExtendBy(0, "pro", "str_order1", now); err == nil {
			t.Error("expected an error for zero days")
		}
		if err := sub.ExtendBy(30, "pro", "", now); err == nil {
			t.Error("expected an error for a missing source order")
		}
	})
}

func TestSubscription_ActiveAt(t *testing.T) {
	now := time.Now()
	sub := &model.Subscription{EndAt: now.Add(time.Hour)}
	if !sub.ActiveAt(now) {
		t.Error("expected active before expiry")
	}
	if sub.ActiveAt(now.Add(2 * time.Hour)) {
		t.Error("expected inactive after expiry")
	}
	var nilSub *model.Subscription
	if nilSub.ActiveAt(now) {
		t.Error("expected a nil subscription to be inactive")
	}
}
