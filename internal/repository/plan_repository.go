package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const planColumns = `id, name, price, max_chargers, max_ports_per_charger, description,
	is_active, duration_days, created_at, updated_at`

type PlanRepo struct {
	db *sql.DB
}

func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

func scanPlan(row rowScanner) (*model.Plan, error) {
	var (
		p                     model.Plan
		maxChargers, maxPorts sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &maxChargers, &maxPorts, &p.Description,
		&p.IsActive, &p.DurationDays, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	p.MaxChargers = limitPtr(maxChargers)
	p.MaxPortsPerCharger = limitPtr(maxPorts)
	return &p, nil
}

func limitPtr(v sql.NullInt64) *uint32 {
	if !v.Valid {
		return nil
	}
	n := uint32(v.Int64)
	return &n
}

func limitArg(p *uint32) any {
	if p == nil {
		return nil
	}
	return *p
}

// List returns plans by price; activeOnly hides retired tiers.
func (r *PlanRepo) List(ctx context.Context, activeOnly bool) ([]*model.Plan, error) {
	q := "SELECT " + planColumns + " FROM subscription_plans"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY price, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PlanRepo) GetByID(ctx context.Context, id uint64) (*model.Plan, error) {
	return scanPlan(r.db.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM subscription_plans WHERE id = ?", id))
}

// GetActiveByID hides retired plans behind ErrNotFound.
func (r *PlanRepo) GetActiveByID(ctx context.Context, id uint64) (*model.Plan, error) {
	return scanPlan(r.db.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM subscription_plans WHERE id = ? AND is_active = 1", id))
}

// Upsert inserts or refreshes a plan keyed by name.
func (r *PlanRepo) Upsert(ctx context.Context, p *model.Plan) error {
	if p.DurationDays <= 0 {
		p.DurationDays = 30
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscription_plans (name, price, max_chargers, max_ports_per_charger, description, is_active, duration_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE price = VALUES(price), max_chargers = VALUES(max_chargers),
		   max_ports_per_charger = VALUES(max_ports_per_charger), description = VALUES(description),
		   is_active = VALUES(is_active), duration_days = VALUES(duration_days)`,
		p.Name, p.Price, limitArg(p.MaxChargers), limitArg(p.MaxPortsPerCharger), p.Description, p.IsActive, p.DurationDays)
	return err
}
