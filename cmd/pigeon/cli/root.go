package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	dataDir    string
	appVersion string // set in Execute, used by serve for the health payload
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pigeon",
		Short: "Notification dispatch gateway",
		Long: `Pigeon accepts SMS and push notification requests from registered
services, authenticates them against the platform credential store, applies
per-service and daily rate limits, and queues accepted notifications for
delivery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pigeon.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite credential store (default: ~/.pigeon)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newServiceCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
