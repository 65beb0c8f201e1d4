// Package plans backs the pricing port with the table from the config file.
package plans

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"membership-billing/internal/config"
	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*StaticRepo)(nil)

type key struct{ plan, cycle string }

// StaticRepo serves prices parsed once at startup. Pricing changes ship as
// config changes and a restart.
type StaticRepo struct {
	prices map[key]*model.PlanPrice
}

func NewStaticRepo(cfgs []config.PlanConfig) (*StaticRepo, error) {
	prices := make(map[key]*model.PlanPrice, len(cfgs))
	for _, c := range cfgs {
		if c.Name == "" || c.Cycle == "" || c.Days <= 0 {
			return nil, fmt.Errorf("%w: plan %q/%q is incomplete", domain.ErrConfig, c.Name, c.Cycle)
		}
		cny, err := decimal.NewFromString(c.PriceCNY)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %s price_cny %q: %v", domain.ErrConfig, c.Name, c.PriceCNY, err)
		}
		usd, err := decimal.NewFromString(c.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %s price_usd %q: %v", domain.ErrConfig, c.Name, c.PriceUSD, err)
		}
		k := key{plan: c.Name, cycle: c.Cycle}
		if _, dup := prices[k]; dup {
			return nil, fmt.Errorf("%w: plan %s/%s defined twice", domain.ErrConfig, c.Name, c.Cycle)
		}
		prices[k] = &model.PlanPrice{
			Plan:     c.Name,
			Cycle:    c.Cycle,
			Days:     c.Days,
			PriceCNY: cny,
			PriceUSD: usd,
		}
	}
	return &StaticRepo{prices: prices}, nil
}

func (r *StaticRepo) FindPrice(_ context.Context, plan, cycle string) (*model.PlanPrice, error) {
	pp, ok := r.prices[key{plan: plan, cycle: cycle}]
	if !ok {
		return nil, fmt.Errorf("%w: no price for plan %s/%s", domain.ErrNotFound, plan, cycle)
	}
	return pp, nil
}
