package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/utils"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type forgotPasswordReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type resetPasswordOTPReq struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type updateAccountReq struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
}

type selectActiveCarReq struct {
	VehicleID uint64 `json:"vehicle_id" validate:"required"`
}

type deleteAccountReq struct {
	Email    string `json:"email" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

const forgotPasswordMessage = "if the account exists, a reset code has been sent"

var (
	errBadOldPassword = apperror.Validation("invalid old password").
				WithDetails(map[string]string{"old_password": "invalid old password"})
	errBadOTP = apperror.Validation("invalid or expired otp").
			WithDetails(map[string]string{"otp": "invalid or expired otp"})
)

// ChangePassword serves both /change-password and /reset-password. The
// session stays open.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.fullUser(ctx, c)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return errBadOldPassword
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash, false); err != nil {
		return storeErr(err, "user not found", "")
	}
	return respond(c, http.StatusOK, "password changed successfully", nil)
}

// ForgotPassword answers identically whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	username := model.NormalizeUsername(req.Username)
	email := model.NormalizeEmail(req.Email)
	if username == "" && email == "" {
		return apperror.Validation("email or username is required").
			WithDetails(map[string]string{"email": "email or username is required"})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, username, email)
	if errors.Is(err, repository.ErrNotFound) {
		return respond(c, http.StatusOK, forgotPasswordMessage, nil)
	}
	if err != nil {
		return apperror.Internal(err)
	}

	otp, err := utils.NewOTP()
	if err != nil {
		return apperror.Internal(err)
	}
	hash, err := utils.HashPassword(otp, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	exp := time.Now().UTC().Add(h.Cfg.OTPTTL())
	if err := h.Users.SetPasswordResetOTP(ctx, u.ID, hash, exp); err != nil {
		return storeErr(err, "user not found", "")
	}
	h.emit(c, queue.TypePasswordResetRequested, u.ID, queue.PasswordResetRequested{
		Email:     u.Email,
		Username:  u.Username,
		OTP:       otp,
		ExpiresAt: exp,
	})
	return respond(c, http.StatusOK, forgotPasswordMessage, nil)
}

// ResetPasswordOTP consumes the code, sets the new password and ends the
// current session.
func (h *AuthHandler) ResetPasswordOTP(c echo.Context) error {
	var req resetPasswordOTPReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, "", model.NormalizeEmail(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return errBadOTP
	}
	if err != nil {
		return apperror.Internal(err)
	}
	if u.PasswordResetOTPHash == "" || u.PasswordResetExpiresAt == nil ||
		!u.PasswordResetExpiresAt.After(time.Now()) ||
		!utils.VerifyPassword(u.PasswordResetOTPHash, req.OTP) {
		return errBadOTP
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash, true); err != nil {
		return storeErr(err, "user not found", "")
	}
	return respond(c, http.StatusOK, "password reset successfully", nil)
}

func (h *AuthHandler) UpdateAccount(c echo.Context) error {
	var req updateAccountReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.FullName == nil && req.Email == nil && req.Username == nil {
		return apperror.Validation("at least one of full_name, email or username is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.fullUser(ctx, c)
	if err != nil {
		return err
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		u.Email = model.NormalizeEmail(*req.Email)
	}
	if req.Username != nil {
		u.Username = model.NormalizeUsername(*req.Username)
	}
	if err := h.Users.UpdateAccount(ctx, u.ID, u.FullName, u.Email, u.Username); err != nil {
		return storeErr(err, "user not found", "username or email already in use")
	}
	return respond(c, http.StatusOK, "account updated successfully", u.Public())
}

// UpdateAvatar stores the multipart field "avatar". A failed database write
// removes the new file; the previous avatar is removed on success.
func (h *AuthHandler) UpdateAvatar(c echo.Context) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		return apperror.Validation("avatar file is required").
			WithDetails(map[string]string{"avatar": "this field is required"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.fullUser(ctx, c)
	if err != nil {
		return err
	}
	url, err := h.Media.SaveImage(ctx, "avatars", fh)
	if err != nil {
		return mediaErr(err)
	}
	if err := h.Users.UpdateAvatar(ctx, u.ID, url); err != nil {
		_ = h.Media.Delete(ctx, url)
		return storeErr(err, "user not found", "")
	}
	if u.AvatarURL != "" {
		_ = h.Media.Delete(ctx, u.AvatarURL)
	}
	u.AvatarURL = url
	return respond(c, http.StatusOK, "avatar updated successfully", u.Public())
}

func (h *AuthHandler) GetActiveCar(c echo.Context) error {
	u, err := principal(c)
	if err != nil {
		return err
	}
	if u.ActiveVehicleID == nil {
		return apperror.NotFound("no active vehicle selected")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, *u.ActiveVehicleID)
	if err != nil {
		return storeErr(err, "no active vehicle selected", "")
	}
	return respond(c, http.StatusOK, "active vehicle fetched successfully", v)
}

// SelectActiveCar points the account at one of the caller's own vehicles.
func (h *AuthHandler) SelectActiveCar(c echo.Context) error {
	var req selectActiveCarReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return storeErr(err, "vehicle not found", "")
	}
	if v.OwnerID != u.ID {
		return apperror.NotFound("vehicle not found")
	}
	if err := h.Users.SetActiveVehicle(ctx, u.ID, &v.ID); err != nil {
		return apperror.Internal(err)
	}
	return respond(c, http.StatusOK, "active vehicle selected successfully", v)
}

// DeleteAccount requires email, username and password to all match before
// removing the account and everything it owns.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	var req deleteAccountReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.fullUser(ctx, c)
	if err != nil {
		return err
	}
	if model.NormalizeEmail(req.Email) != u.Email ||
		model.NormalizeUsername(req.Username) != u.Username ||
		!utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperror.Validation("credentials do not match this account")
	}
	if err := h.Users.Delete(ctx, u.ID); err != nil {
		return storeErr(err, "user not found", "")
	}
	if u.AvatarURL != "" {
		_ = h.Media.Delete(ctx, u.AvatarURL)
	}
	h.clearCookies(c)
	h.emit(c, queue.TypeAccountDeleted, u.ID, queue.AccountDeleted{Username: u.Username})
	return respond(c, http.StatusOK, "account deleted successfully", nil)
}
