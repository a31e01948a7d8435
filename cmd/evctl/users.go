package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/utils"
)

var adminFlags struct {
	username string
	email    string
	fullName string
	password string
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

// Admins cannot self-register over HTTP.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an admin account. Registration over HTTP only offers the
vehicle_owner and charger_owner roles.

Examples:
  evctl users create-admin --username ops --email ops@example.com --full-name "Ops Team" --password 'S3cure!pass'`,
	RunE: runCreateAdmin,
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.username, "username", "", "login name")
	f.StringVar(&adminFlags.email, "email", "", "email address")
	f.StringVar(&adminFlags.fullName, "full-name", "", "display name")
	f.StringVar(&adminFlags.password, "password", "", "initial password (min 8 characters)")
	for _, name := range []string{"username", "email", "password"} {
		_ = createAdminCmd.MarkFlagRequired(name)
	}
	usersCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	if len(adminFlags.password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := utils.HashPassword(adminFlags.password, cfg.BcryptCost)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	u := &model.User{
		Username:     model.NormalizeUsername(adminFlags.username),
		Email:        model.NormalizeEmail(adminFlags.email),
		FullName:     adminFlags.fullName,
		Role:         model.RoleAdmin,
		PasswordHash: hash,
	}
	if err := repository.NewUserRepo(db).Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("username or email already in use")
		}
		return err
	}
	log.Info("admin created", zap.Uint64("id", u.ID), zap.String("username", u.Username))
	return nil
}
