package repository

import (
	"context"
	"time"

	"membership-billing/internal/domain/model"
)

// OrderRepository persists PaymentOrder records.
//
// MarkPaidIfPending is the compare-and-set write the whole lifecycle hangs
// on: the update succeeds only while the stored status is still 'pending',
// and the boolean result tells the caller whether THIS call performed the
// transition. Implementations must make that check-and-write atomic at the
// storage layer.
type OrderRepository interface {
	Save(ctx context.Context, o *model.PaymentOrder) error
	FindByID(ctx context.Context, id string) (*model.PaymentOrder, error)
	SetProviderRef(ctx context.Context, id, providerRef string) error
	MarkPaidIfPending(ctx context.Context, id, providerTxnID string, paidAt time.Time, rawPayload []byte) (bool, error)
	MarkFailedIfPending(ctx context.Context, id string, rawPayload []byte) (bool, error)
	ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentOrder, error)
}
