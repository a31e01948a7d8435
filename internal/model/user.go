package model

import (
	"strings"
	"time"
)

// Role is fixed at registration; no endpoint changes it.
type Role string

const (
	RoleVehicleOwner Role = "vehicle_owner"
	RoleChargerOwner Role = "charger_owner"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleVehicleOwner, RoleChargerOwner, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User maps to the users table. Secret columns never leave the server.
type User struct {
	ID              uint64  `json:"id"`
	Username        string  `json:"username"`
	FullName        string  `json:"full_name"`
	Email           string  `json:"email"`
	AvatarURL       string  `json:"avatar,omitempty"`
	Role            Role    `json:"role"`
	ActiveVehicleID *uint64 `json:"active_vehicle_id"`

	PasswordHash           string     `json:"-"`
	RefreshTokenHash       string     `json:"-"`
	RefreshTokenExpiresAt  *time.Time `json:"-"`
	PasswordResetOTPHash   string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns a copy with every credential field cleared.
func (u *User) Public() *User {
	cp := *u
	cp.PasswordHash = ""
	cp.RefreshTokenHash = ""
	cp.RefreshTokenExpiresAt = nil
	cp.PasswordResetOTPHash = ""
	cp.PasswordResetExpiresAt = nil
	return &cp
}

func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func NormalizeEmail(s string) string    { return strings.ToLower(strings.TrimSpace(s)) }
