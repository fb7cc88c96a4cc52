// Package commands holds the doc-assistant cobra commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/config"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "doc-assistant",
	Short: "Summarize documents and answer questions with a local language model",
	Long: `doc-assistant reads a PDF, pasted text or a screenshot, streams a summary from a
locally hosted language model, answers follow-up questions grounded in the document
and exports the summary as a PDF report. Nothing leaves the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		cfg = loaded
		ui.InitUI(noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./"+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
