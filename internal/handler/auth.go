package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/logger"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/utils"
)

const RefreshCookie = "refreshToken"

// UserStore is the credential store used by the account endpoints.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByLogin(ctx context.Context, username, email string) (*model.User, error)
	GetByRefreshHash(ctx context.Context, hash string) (*model.User, error)
	SetRefreshToken(ctx context.Context, id uint64, hash string, exp time.Time) error
	ClearRefreshToken(ctx context.Context, id uint64) error
	SetPasswordResetOTP(ctx context.Context, id uint64, hash string, exp time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string, endSession bool) error
	UpdateAccount(ctx context.Context, id uint64, fullName, email, username string) error
	UpdateAvatar(ctx context.Context, id uint64, url string) error
	SetActiveVehicle(ctx context.Context, id uint64, vehicleID *uint64) error
	Delete(ctx context.Context, id uint64) error
}

// VehicleReader resolves vehicles referenced from a user account.
type VehicleReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
}

// AuthHandler serves /users: registration, sessions, passwords and the
// account itself.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Vehicles VehicleReader
	Media    MediaStore
	Events   queue.Publisher
}

func NewAuthHandler(cfg config.Config, users UserStore, vehicles VehicleReader, media MediaStore, events queue.Publisher) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Vehicles: vehicles, Media: media, Events: events}
}

// ----- DTOs -----

type registerReq struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=vehicle_owner charger_owner"`
}

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	User             *model.User `json:"user"`
	AccessToken      string      `json:"access_token"`
	AccessExpiresAt  time.Time   `json:"access_expires_at"`
	RefreshToken     string      `json:"refresh_token"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
}

// Register creates a vehicle_owner or charger_owner account. Admins are
// created from the CLI only.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	role := model.RoleVehicleOwner
	if req.Role != "" {
		role = model.Role(req.Role)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	u := &model.User{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        model.NormalizeEmail(req.Email),
		Username:     model.NormalizeUsername(req.Username),
		PasswordHash: hash,
		Role:         role,
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Users.Create(ctx, u); err != nil {
		return storeErr(err, "user not found", "username or email already in use")
	}
	return respond(c, http.StatusCreated, "user registered successfully", u.Public())
}

// Login accepts a username or an email plus the password, and opens a new
// session replacing any previous one.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	username := model.NormalizeUsername(req.Username)
	email := model.NormalizeEmail(req.Email)
	if username == "" && email == "" {
		return apperror.Validation("username or email is required").
			WithDetails(map[string]string{"username": "username or email is required"})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, username, email)
	if err != nil {
		return storeErr(err, "user not found", "")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperror.Unauthenticated("invalid credentials")
	}
	if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
		if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
			if err := h.Users.UpdatePassword(ctx, u.ID, hash, false); err != nil {
				logger.FromEcho(c).Warn("password rehash failed", zap.Uint64("user_id", u.ID), zap.Error(err))
			}
		}
	}
	sess, err := h.openSession(ctx, c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "login successful", sess)
}

// RefreshToken validates the refresh token by hash and expiry and rotates it.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	if raw == "" {
		return apperror.Unauthenticated("refresh token is required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByRefreshHash(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthenticated("invalid refresh token")
		}
		return apperror.Internal(err)
	}
	if u.RefreshTokenExpiresAt == nil || !u.RefreshTokenExpiresAt.After(time.Now()) {
		return apperror.Unauthenticated("invalid refresh token")
	}
	sess, err := h.openSession(ctx, c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "token refreshed successfully", sess)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Users.ClearRefreshToken(ctx, u.ID); err != nil {
		return apperror.Internal(err)
	}
	h.clearCookies(c)
	return respond(c, http.StatusOK, "logged out successfully", nil)
}

func (h *AuthHandler) Me(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user fetched successfully", u)
}

// openSession issues an access token and a fresh refresh token, stores the
// refresh hash and sets both cookies.
func (h *AuthHandler) openSession(ctx context.Context, c echo.Context, u *model.User) (*sessionResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), h.Cfg.AccessTTL())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := h.Users.SetRefreshToken(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, storeErr(err, "user not found", "")
	}
	h.setCookie(c, middleware.AccessCookie, access.Token, access.Exp)
	h.setCookie(c, RefreshCookie, refresh.Raw, refresh.Exp)
	c.Response().Header().Set(echo.HeaderAuthorization, "Bearer "+access.Token)

	return &sessionResp{
		User:             u.Public(),
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

func (h *AuthHandler) setCookie(c echo.Context, name, value string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// emit publishes without ever failing the request.
func (h *AuthHandler) emit(c echo.Context, eventType string, userID uint64, payload any) {
	queue.Emit(c.Request().Context(), h.Events, logger.FromEcho(c), eventType, userID, payload)
}

// fullUser loads the stored row, including hashes, for the principal.
func (h *AuthHandler) fullUser(ctx context.Context, c echo.Context) (*model.User, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	u, err := h.Users.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthenticated("unauthorized")
		}
		return nil, apperror.Internal(err)
	}
	return u, nil
}
