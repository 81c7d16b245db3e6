package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/migrations"
)

var (
	gooseRunFunc     = goose.RunContext // mockable
	readPasswordFunc = term.ReadPassword
)

type adminCreator interface {
	CreateAdmin(ctx context.Context, email, name, password string) (*models.User, error)
}

type likeResetter interface {
	ResetLikes(ctx context.Context, postID string) (int64, error)
}

type statsRefresher interface {
	RefreshAuthorStats(ctx context.Context, authorID string) error
}

type capacityReconciler interface {
	ReconcileCapacity(ctx context.Context) ([]string, error)
}

type cli struct {
	db          *sql.DB
	admins      adminCreator
	likes       likeResetter
	stats       statsRefresher
	enrollments capacityReconciler
	out         io.Writer
}

func newRootCmd(app *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "campctl",
		Short:         "Maintenance tasks for the camp booking database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		app.migrateCmd(),
		app.createAdminCmd(),
		app.resetLikesCmd(),
		app.refreshStatsCmd(),
		app.reconcileCmd(),
	)
	return root
}

func (app *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run goose migrations (up, down, status, version, redo, up-to N, down-to N)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return gooseRunFunc(cmd.Context(), args[0], app.db, ".", args[1:]...)
		},
	}
}

func (app *cli) createAdminCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account; the password is prompted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("CAMP_ADMIN_PASSWORD")
			if password == "" {
				fmt.Fprint(app.out, "Enter password: ")
				raw, err := readPasswordFunc(int(syscall.Stdin))
				fmt.Fprintln(app.out)
				if err != nil {
					return err
				}
				password = string(raw)
			}
			if password == "" {
				return errors.New("password is required")
			}
			user, err := app.admins.CreateAdmin(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "admin %s created (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (app *cli) resetLikesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-likes POST_ID",
		Short: "Remove every like on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.likes.ResetLikes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "removed %d likes\n", n)
			return nil
		},
	}
}

func (app *cli) refreshStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-stats USER_ID...",
		Short: "Recompute stored activity counters for authors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := app.stats.RefreshAuthorStats(cmd.Context(), id); err != nil {
					return fmt.Errorf("refresh %s: %w", id, err)
				}
			}
			fmt.Fprintf(app.out, "refreshed %d authors\n", len(args))
			return nil
		},
	}
}

func (app *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-enrollments",
		Short: "Reset enrolled counts to the number of seat-holding records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixed, err := app.enrollments.ReconcileCapacity(cmd.Context())
			if err != nil {
				return err
			}
			if len(fixed) == 0 {
				fmt.Fprintln(app.out, "all programs consistent")
				return nil
			}
			for _, id := range fixed {
				fmt.Fprintf(app.out, "corrected %s\n", id)
			}
			return nil
		},
	}
}
