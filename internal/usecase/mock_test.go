//go:build !integration

package usecase_test

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

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.PaymentOrder

	SaveFunc              func(ctx context.Context, o *model.PaymentOrder) error
	FindByIDFunc          func(ctx context.Context, id string) (*model.PaymentOrder, error)
	MarkPaidIfPendingFunc func(ctx context.Context, id, providerTxnID string, paidAt time.Time, rawPayload []byte) (bool, error)
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.PaymentOrder)}
}

func (m *MockOrderRepo) Save(ctx context.Context, o *model.PaymentOrder) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, id string) (*model.PaymentOrder, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) SetProviderRef(_ context.Context, id, providerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		o.ProviderRef = providerRef
	}
	return nil
}

func (m *MockOrderRepo) MarkPaidIfPending(ctx context.Context, id, providerTxnID string, paidAt time.Time, rawPayload []byte) (bool, error) {
	if m.MarkPaidIfPendingFunc != nil {
		return m.MarkPaidIfPendingFunc(ctx, id, providerTxnID, paidAt, rawPayload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.ProviderTxnID = providerTxnID
	o.PaidAt = &paidAt
	o.RawPayload = rawPayload
	return true, nil
}

func (m *MockOrderRepo) MarkFailedIfPending(_ context.Context, id string, rawPayload []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusFailed
	o.RawPayload = rawPayload
	return true, nil
}

func (m *MockOrderRepo) ListPendingOlderThan(_ context.Context, olderThan time.Time, limit int) ([]*model.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentOrder
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription // keyed by user id

	SaveFunc func(ctx context.Context, sub *model.Subscription) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) FindByUser(_ context.Context, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, sub *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	Prices map[string]*model.PlanPrice // keyed by plan+"/"+cycle
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{Prices: make(map[string]*model.PlanPrice)}
}

func (m *MockPlanRepo) Add(p *model.PlanPrice) { m.Prices[p.Plan+"/"+p.Cycle] = p }

func (m *MockPlanRepo) FindPrice(_ context.Context, plan, cycle string) (*model.PlanPrice, error) {
	p, ok := m.Prices[plan+"/"+cycle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// ---- Mock WebhookEventRepository ----

type MockWebhookEventRepo struct {
	mu   sync.Mutex
	seen map[string]bool

	InsertOnceFunc func(ctx context.Context, provider model.Provider, eventID string) (bool, error)
}

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{seen: make(map[string]bool)}
}

func (m *MockWebhookEventRepo) InsertOnce(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	if m.InsertOnceFunc != nil {
		return m.InsertOnceFunc(ctx, provider, eventID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(provider) + ":" + eventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// ---- Mock ReplayGuard ----

type MockReplayGuard struct {
	mu   sync.Mutex
	seen map[string]bool

	SeenFunc func(ctx context.Context, provider model.Provider, eventID string) (bool, error)
}

func NewMockReplayGuard() *MockReplayGuard {
	return &MockReplayGuard{seen: make(map[string]bool)}
}

func (m *MockReplayGuard) Seen(ctx context.Context, provider model.Provider, eventID string) (bool, error) {
	if m.SeenFunc != nil {
		return m.SeenFunc(ctx, provider, eventID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(provider) + ":" + eventID
	was := m.seen[key]
	m.seen[key] = true
	return was, nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentProvider ----

type MockProvider struct {
	NameValue model.Provider

	CreateOrderFunc    func(ctx context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error)
	VerifyCallbackFunc func(ctx context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error)
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func (m *MockProvider) Name() model.Provider { return m.NameValue }

func (m *MockProvider) CreateOrder(ctx context.Context, order *model.PaymentOrder) (*adapter.RedirectArtifact, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, order)
	}
	return &adapter.RedirectArtifact{Kind: adapter.ArtifactCheckoutURL, Value: "https://pay.example/" + order.ID}, nil
}

func (m *MockProvider) VerifyCallback(ctx context.Context, cb *adapter.CallbackRequest) (*adapter.VerifiedEvent, error) {
	if m.VerifyCallbackFunc != nil {
		return m.VerifyCallbackFunc(ctx, cb)
	}
	return nil, domain.ErrSignatureInvalid
}

// ---- Mock capturable provider ----

type MockCapturableProvider struct {
	MockProvider
	CaptureFunc func(ctx context.Context, providerRef string) (*adapter.VerifiedEvent, error)
}

var _ adapter.Capturer = (*MockCapturableProvider)(nil)

func (m *MockCapturableProvider) Capture(ctx context.Context, providerRef string) (*adapter.VerifiedEvent, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, providerRef)
	}
	return nil, domain.ErrOperationFailed
}

// ---- Mock AlertSink ----

type MockAlertSink struct {
	mu    sync.Mutex
	Sent  []adapter.Alert
	Error error
}

var _ adapter.AlertSink = (*MockAlertSink)(nil)

func (m *MockAlertSink) Send(_ context.Context, a adapter.Alert) error {
	if m.Error != nil {
		return m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, a)
	return nil
}

func (m *MockAlertSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// =============================
// Helpers
// =============================

func usd(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
