package cli

import (
	"fmt"

	idb "week_notification_agent/internal/infra/database"
	"week_notification_agent/internal/infra/seed"

	"github.com/spf13/cobra"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	File string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	opts := &SeedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the notification catalog from a YAML file",
		Long: `Load notification rules from a YAML catalog into the database.
Rules are matched by id: existing rules are replaced, others are left untouched.

Examples:
  week-notification-agent seed --file configs/notifications.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.File == "" {
				opts.File = cfg.SeedFile
			}
			if opts.File == "" {
				return fmt.Errorf("no catalog file: pass --file or set SEED_FILE")
			}

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := seed.Apply(cmd.Context(), idb.NewPostgresNotificationRepository(db), opts.File)
			if err != nil {
				return err
			}
			mainLogger.WithField("rules", n).WithField("file", opts.File).Info("Notification catalog loaded")
			fmt.Fprintf(cmd.OutOrStdout(), "%d notification rules loaded\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "path to the YAML catalog (defaults to SEED_FILE)")
	return cmd
}
