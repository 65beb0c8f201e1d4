//go:build !integration

package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
)

func TestStaticRepo(t *testing.T) {
	cfgs := []config.PlanConfig{
		{Name: "pro", Cycle: "monthly", Days: 30, PriceCNY: "29.00", PriceUSD: "4.99"},
		{Name: "pro", Cycle: "yearly", Days: 365, PriceCNY: "299.00", PriceUSD: "49.99"},
	}

	t.Run("should resolve prices per plan and cycle", func(t *testing.T) {
		repo, err := NewStaticRepo(cfgs)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		pp, err := repo.FindPrice(context.Background(), "pro", "yearly")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pp.Days != 365 || !pp.PriceUSD.Equal(decimal.RequireFromString("49.99")) {
			t.Errorf("unexpected price row: %+v", pp)
		}

		// The wallet providers charge CNY; wechatpay gets fen.
		amount, currency, err := pp.PriceFor(model.ProviderWechatPay)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !amount.Equal(decimal.NewFromInt(29900)) || currency != "CNY" {
			t.Errorf("expected 29900 fen, got %s %s", amount, currency)
		}
	})

	t.Run("should return not found for a missing pair", func(t *testing.T) {
		repo, _ := NewStaticRepo(cfgs)
		if _, err := repo.FindPrice(context.Background(), "pro", "weekly"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should reject malformed prices", func(t *testing.T) {
		_, err := NewStaticRepo([]config.PlanConfig{{Name: "pro", Cycle: "monthly", Days: 30, PriceCNY: "abc", PriceUSD: "4.99"}})
		if !errors.Is(err, domain.ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("should reject duplicate rows", func(t *testing.T) {
		dup := append(cfgs[:1:1], cfgs[0])
		if _, err := NewStaticRepo(dup); !errors.Is(err, domain.ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})
}
