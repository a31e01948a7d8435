package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

// Locations are stored as SRID 4326 points. WKT is always written and read
// in longitude-latitude order so axis handling stays explicit.
const (
	pointFromWKT = `ST_GeomFromText(?, 4326, 'axis-order=long-lat')`

	chargerColumns = `id, owner_id, name, address, address_details,
	ST_Latitude(location), ST_Longitude(location), status, charger_type, connector_types,
	max_charging_power_kw, price_per_kwh, image_url, avg_rating, rating_count, total_sessions,
	created_at, updated_at`

	NearbyDefaultLimit = 50
	NearbyMaxLimit     = 200
)

func pointWKT(l model.Location) string {
	return fmt.Sprintf("POINT(%.7f %.7f)", l.Lng, l.Lat)
}

type ChargerRepo struct {
	db *sql.DB
}

func NewChargerRepo(db *sql.DB) *ChargerRepo { return &ChargerRepo{db: db} }

func scanCharger(row rowScanner, extra ...any) (*model.Charger, error) {
	var (
		c            model.Charger
		details, img sql.NullString
	)
	dest := []any{&c.ID, &c.OwnerID, &c.Name, &c.Address, &details,
		&c.Location.Lat, &c.Location.Lng, &c.Status, &c.ChargerType, &c.ConnectorTypes,
		&c.MaxChargingPowerKW, &c.PricePerKWh, &img, &c.AvgRating, &c.RatingCount, &c.TotalSessions,
		&c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, translate(err)
	}
	c.AddressDetails = details.String
	c.ImageURL = img.String
	return &c, nil
}

func (r *ChargerRepo) Create(ctx context.Context, c *model.Charger) error {
	if c.Status == "" {
		c.Status = model.ChargerActive
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chargers (owner_id, name, address, address_details, location, status,
		   charger_type, connector_types, max_charging_power_kw, price_per_kwh, image_url)
		 VALUES (?, ?, ?, ?, `+pointFromWKT+`, ?, ?, ?, ?, ?, ?)`,
		c.OwnerID, c.Name, c.Address, nullString(c.AddressDetails), pointWKT(c.Location), c.Status,
		c.ChargerType, c.ConnectorTypes, c.MaxChargingPowerKW, c.PricePerKWh, nullString(c.ImageURL))
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
	*c = *created
	return nil
}

func (r *ChargerRepo) GetByID(ctx context.Context, id uint64) (*model.Charger, error) {
	return scanCharger(r.db.QueryRowContext(ctx,
		"SELECT "+chargerColumns+" FROM chargers WHERE id = ?", id))
}

func (r *ChargerRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Charger, error) {
	return r.list(ctx,
		"SELECT "+chargerColumns+" FROM chargers WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
}

func (r *ChargerRepo) CountByOwner(ctx context.Context, ownerID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chargers WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

// Update writes every mutable column of c, scoped to its owner.
func (r *ChargerRepo) Update(ctx context.Context, c *model.Charger) error {
	err := execOne(ctx, r.db,
		`UPDATE chargers SET name = ?, address = ?, address_details = ?, location = `+pointFromWKT+`,
		   status = ?, charger_type = ?, connector_types = ?, max_charging_power_kw = ?, price_per_kwh = ?
		 WHERE id = ? AND owner_id = ?`,
		c.Name, c.Address, nullString(c.AddressDetails), pointWKT(c.Location),
		c.Status, c.ChargerType, c.ConnectorTypes, c.MaxChargingPowerKW, c.PricePerKWh,
		c.ID, c.OwnerID)
	if err != nil {
		return err
	}
	return r.reload(ctx, c)
}

func (r *ChargerRepo) SetStatus(ctx context.Context, id, ownerID uint64, status model.ChargerStatus) error {
	return execOne(ctx, r.db,
		`UPDATE chargers SET status = ? WHERE id = ? AND owner_id = ?`, status, id, ownerID)
}

func (r *ChargerRepo) SetImage(ctx context.Context, id, ownerID uint64, url string) error {
	return execOne(ctx, r.db,
		`UPDATE chargers SET image_url = ? WHERE id = ? AND owner_id = ?`, nullString(url), id, ownerID)
}

// Delete removes the owner's charger and every port under it, occupied or
// not, in one transaction. It returns the number of ports removed.
func (r *ChargerRepo) Delete(ctx context.Context, id, ownerID uint64) (int64, error) {
	var ports int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var owner uint64
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM chargers WHERE id = ? FOR UPDATE`, id).Scan(&owner)
		if err != nil {
			return translate(err)
		}
		if owner != ownerID {
			return ErrNotFound
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM charger_ports WHERE charger_id = ?`, id)
		if err != nil {
			return err
		}
		ports, _ = res.RowsAffected()
		_, err = tx.ExecContext(ctx, `DELETE FROM chargers WHERE id = ?`, id)
		return err
	})
	return ports, err
}

// Nearby returns active chargers within radiusM meters of center, nearest
// first, each with DistanceM set.
func (r *ChargerRepo) Nearby(ctx context.Context, center model.Location, radiusM float64, limit int) ([]*model.Charger, error) {
	if limit <= 0 {
		limit = NearbyDefaultLimit
	}
	if limit > NearbyMaxLimit {
		limit = NearbyMaxLimit
	}
	wkt := pointWKT(center)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+chargerColumns+`, ST_Distance_Sphere(location, `+pointFromWKT+`) AS distance_m
		 FROM chargers
		 WHERE status = 'active'
		   AND ST_Distance_Sphere(location, `+pointFromWKT+`) <= ?
		 ORDER BY distance_m ASC, id ASC
		 LIMIT ?`,
		wkt, wkt, radiusM, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Charger{}
	for rows.Next() {
		var dist float64
		c, err := scanCharger(rows, &dist)
		if err != nil {
			return nil, err
		}
		c.DistanceM = &dist
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChargerRepo) list(ctx context.Context, q string, args ...any) ([]*model.Charger, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Charger{}
	for rows.Next() {
		c, err := scanCharger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChargerRepo) reload(ctx context.Context, c *model.Charger) error {
	fresh, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}
