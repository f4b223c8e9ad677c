package cmd

import (
	"github.com/spf13/cobra"

	"github.com/docuvec/docuvec/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docuvec configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure docuvec and generates a docuvec.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
