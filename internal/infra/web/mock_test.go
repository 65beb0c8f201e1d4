//go:build !integration

package web_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- In-memory repositories ----

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.PaymentOrder
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*model.PaymentOrder)}
}

func (m *memOrderRepo) Save(_ context.Context, o *model.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id string) (*model.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) SetProviderRef(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		o.ProviderRef = ref
	}
	return nil
}

func (m *memOrderRepo) MarkPaidIfPending(_ context.Context, id, txnID string, paidAt time.Time, raw []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.ProviderTxnID = txnID
	o.PaidAt = &paidAt
	o.RawPayload = raw
	return true, nil
}

func (m *memOrderRepo) MarkFailedIfPending(_ context.Context, id string, raw []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusFailed
	o.RawPayload = raw
	return true, nil
}

func (m *memOrderRepo) ListPendingOlderThan(context.Context, time.Time, int) ([]*model.PaymentOrder, error) {
	return nil, nil
}

type memSubRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

func newMemSubRepo() *memSubRepo { return &memSubRepo{subs: make(map[string]*model.Subscription)} }

func (m *memSubRepo) FindByUser(_ context.Context, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) Save(_ context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

type memPlanRepo struct{}

func (memPlanRepo) FindPrice(_ context.Context, plan, cycle string) (*model.PlanPrice, error) {
	if plan != "pro" || cycle != "monthly" {
		return nil, domain.ErrNotFound
	}
	return &model.PlanPrice{
		Plan:     "pro",
		Cycle:    "monthly",
		Days:     30,
		PriceCNY: decimal.RequireFromString("29.00"),
		PriceUSD: decimal.RequireFromString("4.99"),
	}, nil
}

type memEventRepo struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{seen: make(map[string]bool)} }

func (m *memEventRepo) InsertOnce(_ context.Context, provider model.Provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(provider) + ":" + eventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// ---- Scripted provider adapter ----

type fakeProvider struct {
	name       model.Provider
	createFunc func(order *model.PaymentOrder) (*adapter.RedirectArtifact, error)
	verifyFunc func(cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error)
}

func (f *fakeProvider) Name() model.Provider { return f.name }

func (f *fakeProvider) CreateOrder(_ context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	if f.createFunc != nil {
		return f.createFunc(order)
	}
	return &adapter.RedirectArtifact{Kind: adapter.ArtifactCheckoutURL, Value: "https://pay.example/" + order.ID}, nil
}

func (f *fakeProvider) VerifyCallback(_ context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	if f.verifyFunc != nil {
		return f.verifyFunc(cb)
	}
	return nil, domain.ErrSignatureInvalid
}

type nullAlerts struct{}

func (nullAlerts) Send(context.Context, adapter.Alert) error { return nil }

func usdAmount(s string) decimal.Decimal { return decimal.RequireFromString(s) }
