package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/worker"
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Maintain charger owner subscriptions",
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark active subscriptions past their end date as expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		w := worker.NewExpiryWorker(repository.NewSubscriptionRepo(db), log, "")
		n, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d subscription(s) expired\n", n)
		return nil
	},
}

func init() {
	subscriptionsCmd.AddCommand(expireCmd)
}
