package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const portColumns = `id, charger_id, port_number, connector_type, max_power_kw, price_per_kwh,
	status, created_at, updated_at`

type PortRepo struct {
	db *sql.DB
}

func NewPortRepo(db *sql.DB) *PortRepo { return &PortRepo{db: db} }

func scanPort(row rowScanner) (*model.ChargerPort, error) {
	var p model.ChargerPort
	err := row.Scan(&p.ID, &p.ChargerID, &p.PortNumber, &p.ConnectorType, &p.MaxPowerKW,
		&p.PricePerKWh, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Create assigns the next port number and inserts p in one transaction.
//
// The charger row carries a port_seq counter. Bumping it to
// max(port_seq, highest existing number) + 1 locks the charger row, so
// concurrent creates on the same charger serialize and a number freed by a
// delete is never handed out again. The unique (charger_id, port_number)
// index still backs this up; a collision surfaces as ErrConflict.
func (r *PortRepo) Create(ctx context.Context, p *model.ChargerPort) error {
	if p.Status == "" {
		p.Status = model.PortAvailable
	}
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE chargers
			 SET port_seq = GREATEST(port_seq,
			     (SELECT COALESCE(MAX(port_number), 0) FROM charger_ports WHERE charger_id = ?)) + 1
			 WHERE id = ?`,
			p.ChargerID, p.ChargerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		var next uint32
		if err := tx.QueryRowContext(ctx,
			`SELECT port_seq FROM chargers WHERE id = ?`, p.ChargerID).Scan(&next); err != nil {
			return translate(err)
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO charger_ports (charger_id, port_number, connector_type, max_power_kw, price_per_kwh, status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ChargerID, next, p.ConnectorType, p.MaxPowerKW, p.PricePerKWh, p.Status)
		if err != nil {
			return translate(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (r *PortRepo) GetByID(ctx context.Context, id uint64) (*model.ChargerPort, error) {
	return scanPort(r.db.QueryRowContext(ctx,
		"SELECT "+portColumns+" FROM charger_ports WHERE id = ?", id))
}

// ListByCharger returns the charger's ports ordered by port number.
func (r *PortRepo) ListByCharger(ctx context.Context, chargerID uint64) ([]*model.ChargerPort, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+portColumns+" FROM charger_ports WHERE charger_id = ? ORDER BY port_number", chargerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.ChargerPort{}
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PortRepo) CountByCharger(ctx context.Context, chargerID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM charger_ports WHERE charger_id = ?`, chargerID).Scan(&n)
	return n, err
}

// Update writes the mutable attributes. The port number never changes.
func (r *PortRepo) Update(ctx context.Context, p *model.ChargerPort) error {
	err := execOne(ctx, r.db,
		`UPDATE charger_ports SET connector_type = ?, max_power_kw = ?, price_per_kwh = ?
		 WHERE id = ? AND charger_id = ?`,
		p.ConnectorType, p.MaxPowerKW, p.PricePerKWh, p.ID, p.ChargerID)
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (r *PortRepo) SetStatus(ctx context.Context, id, chargerID uint64, status model.PortStatus) error {
	return execOne(ctx, r.db,
		`UPDATE charger_ports SET status = ? WHERE id = ? AND charger_id = ?`, status, id, chargerID)
}

// Delete removes a port unless it is occupied. The status test is part of
// the DELETE so a port that becomes occupied concurrently is kept.
func (r *PortRepo) Delete(ctx context.Context, id, chargerID uint64) error {
	err := execOne(ctx, r.db,
		`DELETE FROM charger_ports WHERE id = ? AND charger_id = ? AND status <> 'occupied'`, id, chargerID)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	var status model.PortStatus
	if err := r.db.QueryRowContext(ctx,
		`SELECT status FROM charger_ports WHERE id = ? AND charger_id = ?`, id, chargerID).Scan(&status); err != nil {
		return translate(err)
	}
	if status == model.PortOccupied {
		return ErrPortOccupied
	}
	return ErrNotFound
}
