package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "sithafal",
		Short: "Security monitoring dashboard with a quarantine review queue",
		Long:  "Sithafal serves a security overview with threat charts and a quarantine table for releasing or deleting held emails. Single binary.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "sithafal.yaml", "config file path")

	root.AddCommand(
		newServeCmd(),
		newQuarantineCmd(),
		newChartsCmd(),
		newExportCmd(),
		newMCPCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}
