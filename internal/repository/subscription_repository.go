package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const subscriptionWithPlan = `SELECT s.id, s.owner_id, s.plan_id, s.status, s.starts_at, s.ends_at,
	s.last_payment_at, s.last_payment_status, s.created_at, s.updated_at,
	p.id, p.name, p.price, p.max_chargers, p.max_ports_per_charger, p.description,
	p.is_active, p.duration_days, p.created_at, p.updated_at
	FROM subscriptions s JOIN subscription_plans p ON p.id = s.plan_id`

type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var (
		s                     model.Subscription
		p                     model.Plan
		paidAt                sql.NullTime
		paidStatus            sql.NullString
		maxChargers, maxPorts sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.PlanID, &s.Status, &s.StartsAt, &s.EndsAt,
		&paidAt, &paidStatus, &s.CreatedAt, &s.UpdatedAt,
		&p.ID, &p.Name, &p.Price, &maxChargers, &maxPorts, &p.Description,
		&p.IsActive, &p.DurationDays, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		s.LastPaymentAt = &t
	}
	s.LastPaymentStatus = model.PaymentStatus(paidStatus.String)
	p.MaxChargers = limitPtr(maxChargers)
	p.MaxPortsPerCharger = limitPtr(maxPorts)
	s.Plan = &p
	return &s, nil
}

// Create inserts s. A second active row for the same owner trips the unique
// index on active_owner_id and yields ErrConflict.
func (r *SubscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	var paidAt any
	if s.LastPaymentAt != nil {
		paidAt = s.LastPaymentAt.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (owner_id, plan_id, status, starts_at, ends_at, last_payment_at, last_payment_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.OwnerID, s.PlanID, s.Status, s.StartsAt.UTC(), s.EndsAt.UTC(), paidAt, nullString(string(s.LastPaymentStatus)))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetActive returns the owner's entitling subscription: status active and
// ends_at after now.
func (r *SubscriptionRepo) GetActive(ctx context.Context, ownerID uint64, now time.Time) (*model.Subscription, error) {
	return scanSubscription(r.db.QueryRowContext(ctx,
		subscriptionWithPlan+` WHERE s.owner_id = ? AND s.status = 'active' AND s.ends_at > ? LIMIT 1`,
		ownerID, now.UTC()))
}

// HasActive looks at status only, matching the unique index.
func (r *SubscriptionRepo) HasActive(ctx context.Context, ownerID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE owner_id = ? AND status = 'active'`, ownerID).Scan(&n)
	return n > 0, err
}

// ListByOwner returns the owner's subscriptions, newest first.
func (r *SubscriptionRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		subscriptionWithPlan+` WHERE s.owner_id = ? ORDER BY s.created_at DESC, s.id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ExpireStale marks every active subscription whose ends_at has passed.
func (r *SubscriptionRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'expired' WHERE status = 'active' AND ends_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SubscriptionRepo) ExpireStaleForOwner(ctx context.Context, ownerID uint64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'expired'
		 WHERE owner_id = ? AND status = 'active' AND ends_at <= ?`, ownerID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelActive cancels the owner's active subscription, if any.
func (r *SubscriptionRepo) CancelActive(ctx context.Context, ownerID uint64) error {
	return execOne(ctx, r.db,
		`UPDATE subscriptions SET status = 'cancelled' WHERE owner_id = ? AND status = 'active'`, ownerID)
}
