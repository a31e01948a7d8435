package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/ev-charging-backend/internal/model"
)

const userColumns = `id, username, full_name, email, password_hash, avatar_url, role,
	active_vehicle_id, refresh_token_hash, refresh_token_expires_at,
	password_reset_otp_hash, password_reset_expires_at, created_at, updated_at`

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		avatar, refresh, otp sql.NullString
		activeVehicle        sql.NullInt64
		refreshExp, otpExp   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.PasswordHash, &avatar, &u.Role,
		&activeVehicle, &refresh, &refreshExp, &otp, &otpExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.AvatarURL = avatar.String
	u.RefreshTokenHash = refresh.String
	u.PasswordResetOTPHash = otp.String
	if activeVehicle.Valid {
		id := uint64(activeVehicle.Int64)
		u.ActiveVehicleID = &id
	}
	if refreshExp.Valid {
		t := refreshExp.Time
		u.RefreshTokenExpiresAt = &t
	}
	if otpExp.Valid {
		t := otpExp.Time
		u.PasswordResetExpiresAt = &t
	}
	return &u, nil
}

// Create inserts u (username and email already normalized) and sets its ID.
// A duplicate username or email yields ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, full_name, email, password_hash, avatar_url, role)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.FullName, u.Email, u.PasswordHash, nullString(u.AvatarURL), u.Role)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// GetByLogin matches either identifier; empty values never match.
func (r *UserRepo) GetByLogin(ctx context.Context, username, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+` FROM users
		 WHERE (? <> '' AND username = ?) OR (? <> '' AND email = ?)
		 ORDER BY id LIMIT 1`,
		username, username, email, email))
}

func (r *UserRepo) GetByRefreshHash(ctx context.Context, hash string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE refresh_token_hash = ? LIMIT 1", hash))
}

// SetRefreshToken replaces the single active session.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id uint64, hash string, exp time.Time) error {
	return execOne(ctx, r.db,
		`UPDATE users SET refresh_token_hash = ?, refresh_token_expires_at = ? WHERE id = ?`,
		hash, exp.UTC(), id)
}

func (r *UserRepo) ClearRefreshToken(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE id = ?`, id)
	return err
}

func (r *UserRepo) SetPasswordResetOTP(ctx context.Context, id uint64, hash string, exp time.Time) error {
	return execOne(ctx, r.db,
		`UPDATE users SET password_reset_otp_hash = ?, password_reset_expires_at = ? WHERE id = ?`,
		hash, exp.UTC(), id)
}

// UpdatePassword stores a new hash and consumes any pending reset code.
// When endSession is set the refresh token is revoked as well.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, endSession bool) error {
	q := `UPDATE users SET password_hash = ?, password_reset_otp_hash = NULL, password_reset_expires_at = NULL`
	if endSession {
		q += `, refresh_token_hash = NULL, refresh_token_expires_at = NULL`
	}
	return execOne(ctx, r.db, q+` WHERE id = ?`, hash, id)
}

func (r *UserRepo) UpdateAccount(ctx context.Context, id uint64, fullName, email, username string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, username = ? WHERE id = ?`,
		fullName, email, username, id)
	return translate(err)
}

func (r *UserRepo) UpdateAvatar(ctx context.Context, id uint64, url string) error {
	return execOne(ctx, r.db, `UPDATE users SET avatar_url = ? WHERE id = ?`, nullString(url), id)
}

func (r *UserRepo) SetActiveVehicle(ctx context.Context, id uint64, vehicleID *uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET active_vehicle_id = ? WHERE id = ?`, nullUint64(vehicleID), id)
	return err
}

// Delete removes the user and everything the user owns in one transaction.
// Active-vehicle pointers at the removed vehicles are cleared first.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		steps := []string{
			`DELETE p FROM charger_ports p JOIN chargers c ON c.id = p.charger_id WHERE c.owner_id = ?`,
			`DELETE FROM chargers WHERE owner_id = ?`,
			`DELETE FROM subscriptions WHERE owner_id = ?`,
			`UPDATE users u JOIN vehicles v ON v.id = u.active_vehicle_id
			 SET u.active_vehicle_id = NULL WHERE v.owner_id = ?`,
			`DELETE FROM vehicles WHERE owner_id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
