package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/auth"
	"github.com/lk2023060901/coldvault-backend/internal/data"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := data.Migrate(a.cmdContext(cmd), db, true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newEventsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and replay webhook events",
	}

	var (
		status string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent webhook events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := a.webhookUseCase(db).ListEvents(a.cmdContext(cmd), types.WebhookEventStatus(status), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMESSAGE ID\tTYPE\tSTATUS\tCREATED\tERROR")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					ev.ID, ev.ExternalID, ev.EventType, ev.Status,
					ev.CreatedAt.Format(time.RFC3339), ev.ErrorMessage)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (received, processed, failed)")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of events")

	replay := &cobra.Command{
		Use:   "replay <event-id>",
		Short: "Re-run reconciliation for a failed event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			out, err := a.webhookUseCase(db).Replay(a.cmdContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %s %s\n", args[0], out.Kind)
			return nil
		},
	}

	cmd.AddCommand(list, replay)
	return cmd
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			if ttl <= 0 {
				ttl = a.config.Auth.AccessTokenTTL
			}
			manager := auth.NewJWTManager(a.config.Auth.JWTSecret, a.config.Auth.JWTIssuer, ttl)
			token, err := manager.GenerateAccessToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.access_token_ttl)")
	return cmd
}
