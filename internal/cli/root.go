// Package cli wires the agent's commands: the long-running service and its
// maintenance entry points.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command. Running it without a subcommand starts the service.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "week-notification-agent",
		Short:         "Week-based notification agent for the medical platform",
		Long:          "Delivers catalog notifications to patients once the weeks elapsed since their contract start reach each rule.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewSeedCommand())
	cmd.AddCommand(NewTickCommand())

	return cmd
}
