package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "copperline",
	Short: "Lead scoring engine for CRM business events",
	Long:  "Copperline maintains a rules-driven running score per contact, with per-rule decay, cooldowns, and occurrence caps, and drives lead/qualified/customer transitions. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decayCmd)
}
