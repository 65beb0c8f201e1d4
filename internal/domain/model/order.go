package model

import (
	"time"

	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"  // created locally; charge not yet confirmed
	OrderStatusPaid     OrderStatus = "paid"     // provider confirmed settlement; terminal except refund
	OrderStatusFailed   OrderStatus = "failed"   // provider reported a definitive failure
	OrderStatusRefunded OrderStatus = "refunded" // out-of-band refund of a paid order
)

// orderTransitions is the closed transition table: pending may move to paid
// or failed, paid may move to refunded, nothing else moves at all.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:     {OrderStatusRefunded},
	OrderStatusFailed:   {},
	OrderStatusRefunded: {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AmountUnit records how PaymentOrder.Amount is denominated.
type AmountUnit string

const (
	UnitMinor AmountUnit = "minor" // integer smallest-unit amounts (e.g. fen)
	UnitMajor AmountUnit = "major" // decimal major-unit amounts (e.g. 29.00)
)

// PaymentOrder is the system's record of one purchase attempt. It is a
// financial record: rows are never deleted, and the status only moves
// through the transition table above.
type PaymentOrder struct {
	ID            string   // provider-prefixed, globally unique, immutable
	Provider      Provider
	UserID        string
	Amount        decimal.Decimal // in the provider's native unit
	Unit          AmountUnit
	Currency      string
	BillingDays   int // entitlement length granted on settlement
	Status        OrderStatus
	ProviderTxnID string // provider transaction id, set on success
	ProviderRef   string // provider-side order/session id where it differs from ID
	Plan          string
	BillingCycle  string
	RawPayload    []byte // last verified webhook payload, kept for audit
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// NewPaymentOrder validates and constructs a pending order.
func NewPaymentOrder(userID, plan, cycle string, provider Provider, amount decimal.Decimal, currency string, billingDays int) (*PaymentOrder, error) {
	if userID == "" || plan == "" || currency == "" || billingDays <= 0 || !amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentOrder{
		ID:           NewOrderID(provider),
		Provider:     provider,
		UserID:       userID,
		Amount:       amount,
		Unit:         provider.Unit(),
		Currency:     currency,
		BillingDays:  billingDays,
		Status:       OrderStatusPending,
		Plan:         plan,
		BillingCycle: cycle,
		CreatedAt:    time.Now(),
	}, nil
}
