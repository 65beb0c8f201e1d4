package model

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
)

// Provider identifies one of the integrated payment networks.
type Provider string

const (
	ProviderWechatPay Provider = "wechatpay"
	ProviderAlipay    Provider = "alipay"
	ProviderStripe    Provider = "stripe"
	ProviderPayPal    Provider = "paypal"
)

// AllProviders lists every supported provider; used for config validation
// and exhaustive route registration.
var AllProviders = []Provider{ProviderWechatPay, ProviderAlipay, ProviderStripe, ProviderPayPal}

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderWechatPay, ProviderAlipay, ProviderStripe, ProviderPayPal:
		return p, nil
	}
	return "", domain.ErrInvalidArgument
}

// Unit reports which unit the provider natively quotes amounts in.
// WeChat Pay works in integer minor units (fen); the others in major units.
func (p Provider) Unit() AmountUnit {
	if p == ProviderWechatPay {
		return UnitMinor
	}
	return UnitMajor
}

// Tolerance is the maximum acceptable difference between the order amount
// and the amount reported by the provider on settlement. WeChat Pay amounts
// are exact integers; the major-unit providers get one cent of slack to
// absorb decimal formatting differences.
func (p Provider) Tolerance() decimal.Decimal {
	if p == ProviderWechatPay {
		return decimal.Zero
	}
	return decimal.New(1, -2) // 0.01
}

func (p Provider) orderIDPrefix() string {
	switch p {
	case ProviderWechatPay:
		return "wx_"
	case ProviderAlipay:
		return "alp_"
	case ProviderStripe:
		return "str_"
	case ProviderPayPal:
		return "pp_"
	}
	return "ord_"
}

// NewOrderID generates a provider-prefixed, lexicographically sortable
// order identifier. The prefix makes the owning provider recognizable in
// logs and provider dashboards.
func NewOrderID(p Provider) string {
	return p.orderIDPrefix() + ulid.MustNew(ulid.Now(), rand.Reader).String()
}
