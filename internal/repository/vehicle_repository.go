package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const vehicleColumns = `id, owner_id, company, model, launch_year, license_plate,
	battery_capacity_kwh, max_charging_power_kw, connector_types, created_at, updated_at`

type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

func scanVehicle(row rowScanner) (*model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(&v.ID, &v.OwnerID, &v.Company, &v.Model, &v.LaunchYear, &v.LicensePlate,
		&v.BatteryCapacityKWh, &v.MaxChargingPowerKW, &v.ConnectorTypes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// Create inserts v and reloads it so timestamps come from the database.
// A plate already in use yields ErrConflict.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicles (owner_id, company, model, launch_year, license_plate,
		   battery_capacity_kwh, max_charging_power_kw, connector_types)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.OwnerID, v.Company, v.Model, v.LaunchYear, v.LicensePlate,
		v.BatteryCapacityKWh, v.MaxChargingPowerKW, v.ConnectorTypes)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*v = *created
	return nil
}

func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	return scanVehicle(r.db.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", id))
}

func (r *VehicleRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update writes every mutable column of v, scoped to its owner.
func (r *VehicleRepo) Update(ctx context.Context, v *model.Vehicle) error {
	err := execOne(ctx, r.db,
		`UPDATE vehicles SET company = ?, model = ?, launch_year = ?, license_plate = ?,
		   battery_capacity_kwh = ?, max_charging_power_kw = ?, connector_types = ?
		 WHERE id = ? AND owner_id = ?`,
		v.Company, v.Model, v.LaunchYear, v.LicensePlate,
		v.BatteryCapacityKWh, v.MaxChargingPowerKW, v.ConnectorTypes, v.ID, v.OwnerID)
	if err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *updated
	return nil
}

// Delete removes the owner's vehicle and clears any active-vehicle pointer
// at it in the same transaction.
func (r *VehicleRepo) Delete(ctx context.Context, id, ownerID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET active_vehicle_id = NULL WHERE active_vehicle_id = ?`, id); err != nil {
			return err
		}
		return execOne(ctx, tx, `DELETE FROM vehicles WHERE id = ? AND owner_id = ?`, id, ownerID)
	})
}
