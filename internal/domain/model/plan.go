package model

import (
	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
)

// PlanPrice is one row of the pricing table: a plan/cycle pair with its
// entitlement length and its price in the two settlement currencies. The
// wallet networks charge in CNY, the checkout networks in USD.
type PlanPrice struct {
	Plan     string
	Cycle    string // e.g. "monthly", "yearly"
	Days     int
	PriceCNY decimal.Decimal // major units
	PriceUSD decimal.Decimal // major units
}

// PriceFor resolves the charge amount and currency for a provider, already
// converted to the provider's native unit.
func (pp *PlanPrice) PriceFor(p Provider) (decimal.Decimal, string, error) {
	switch p {
	case ProviderWechatPay:
		// fen
		return pp.PriceCNY.Mul(decimal.NewFromInt(100)), "CNY", nil
	case ProviderAlipay:
		return pp.PriceCNY, "CNY", nil
	case ProviderStripe, ProviderPayPal:
		return pp.PriceUSD, "USD", nil
	}
	return decimal.Zero, "", domain.ErrInvalidArgument
}
