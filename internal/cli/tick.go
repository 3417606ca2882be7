package cli

import (
	"fmt"

	"week_notification_agent/internal/infra/logger"
	"week_notification_agent/internal/infra/scheduler"

	"github.com/spf13/cobra"
)

// NewTickCommand creates the tick command: one reconciliation pass, then exit.
func NewTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single reconciliation pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := newDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched := scheduler.NewNotificationScheduler(
				rt.dispatcher,
				rt.lease,
				nil,
				logger.Component("scheduler"),
				cfg.CronSpecTick,
				cfg.TickTimeout,
				cfg.TimeZone,
			)
			if err := sched.RunOnce(cmd.Context()); err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reconciliation finished")
			return nil
		},
	}
}
