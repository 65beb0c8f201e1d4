package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, provider, user_id, amount::text, unit, currency, billing_days, status, provider_txn_id, provider_ref, plan, billing_cycle, raw_payload, created_at, paid_at`

func (r *orderRepo) Save(ctx context.Context, o *model.PaymentOrder) error {
	const q = `
INSERT INTO payment_orders (
  id, provider, user_id, amount, unit, currency, billing_days, status, provider_txn_id, provider_ref, plan, billing_cycle, raw_payload, created_at, paid_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := r.pool.Exec(ctx, q,
		o.ID, string(o.Provider), o.UserID, o.Amount.String(), string(o.Unit), o.Currency,
		o.BillingDays, string(o.Status), o.ProviderTxnID, o.ProviderRef, o.Plan, o.BillingCycle,
		o.RawPayload, o.CreatedAt, o.PaidAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*model.PaymentOrder, error) {
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE id=$1;`
	return scanOrder(r.pool.QueryRow(ctx, q, id))
}

func (r *orderRepo) SetProviderRef(ctx context.Context, id, providerRef string) error {
	const q = `UPDATE payment_orders SET provider_ref=$2 WHERE id=$1;`
	if _, err := r.pool.Exec(ctx, q, id, providerRef); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// MarkPaidIfPending performs the guarded pending→paid transition. The status
// predicate in the WHERE clause makes the check-and-write atomic; a zero row
// count means another caller already owned the transition.
func (r *orderRepo) MarkPaidIfPending(ctx context.Context, id, providerTxnID string, paidAt time.Time, rawPayload []byte) (bool, error) {
	const q = `
UPDATE payment_orders
   SET status = 'paid',
       provider_txn_id = $2,
       paid_at = $3,
       raw_payload = COALESCE($4, raw_payload)
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := r.pool.Exec(ctx, q, id, providerTxnID, paidAt, rawPayload)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) MarkFailedIfPending(ctx context.Context, id string, rawPayload []byte) (bool, error) {
	const q = `
UPDATE payment_orders
   SET status = 'failed',
       raw_payload = COALESCE($2, raw_payload)
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := r.pool.Exec(ctx, q, id, rawPayload)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.PaymentOrder, error) {
	o := &model.PaymentOrder{}
	var provider, unit, status, amount string
	err := row.Scan(&o.ID, &provider, &o.UserID, &amount, &unit, &o.Currency, &o.BillingDays,
		&status, &o.ProviderTxnID, &o.ProviderRef, &o.Plan, &o.BillingCycle, &o.RawPayload,
		&o.CreatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	o.Provider = model.Provider(provider)
	o.Unit = model.AmountUnit(unit)
	o.Status = model.OrderStatus(status)
	o.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}
