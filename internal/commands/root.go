package commands

import "github.com/spf13/cobra"

// NewRootCmd assembles the propertyhub command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "propertyhub",
		Short:         "Offline-first sync for PropertyHub tenants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		ServeCmd(),
		OfflineCmd(),
		MigrateCmd(),
	)
	return rootCmd
}
