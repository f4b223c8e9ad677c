package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docuvec",
	Short: "Asynchronous document ingestion and semantic search",
	Long: `docuvec ingests scanned documents through OCR, cleaning, chunking,
AI metadata extraction and embedding, then serves semantic search
over the resulting fragments.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "docuvec.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
