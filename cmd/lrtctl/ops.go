package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"landrace-threat/internal/config"
	"landrace-threat/internal/database"
	"landrace-threat/internal/scheduler"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations need DB_DRIVER=%s, got %q", config.DriverPostgres, cfg.Database.Driver)
			}

			db, err := database.New(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Finish approvals whose publication did not complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Workflow.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, report); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d assessment(s) could not be reconciled", len(report.Failed))
			}
			return nil
		},
	}
}

var jobNames = []string{scheduler.JobReviewerDigest, scheduler.JobDraftReminders, scheduler.JobReconcile}

func jobCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "job <name>",
		Short:     "Run a scheduled job once",
		Long:      "Run one of the scheduled jobs immediately: reviewer_digest, draft_reminders or reconcile.",
		ValidArgs: jobNames,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Scheduler().RunJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed\n", args[0])
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
