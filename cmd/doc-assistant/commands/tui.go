package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/tui"
)

var reportDir string

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"ui"},
	Short:   "Open the interactive document assistant",
	Long: `Open a full-screen assistant: pick a PDF, paste text or OCR a screenshot,
watch the summary stream in, ask follow-up questions and export a report.

Logs go to the log file while the interface owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal() || !ui.IsInputTerminal() {
			return domain.ValidationError("the interactive interface needs a terminal; use summarize instead", nil)
		}

		logger, closeLog, err := newLogger(cfg, true)
		if err != nil {
			return err
		}
		defer closeLog()
		c := buildComponents(cfg, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		logger.Info().Str("llm", cfg.LLM.BaseURL).Msg("Starting interactive session")
		return tui.Run(ctx, tui.Deps{
			Session:      c.session,
			Analyzer:     c.orchestrator,
			OCR:          c.ocr,
			Answerer:     c.answerer,
			PDFLoader:    c.validator,
			ReadImage:    os.ReadFile,
			ReportDir:    reportDir,
			PollInterval: cfg.Relay.PollInterval,
			Logger:       logger,
		})
	},
}

func init() {
	tuiCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for exported reports (default: current directory)")
	rootCmd.AddCommand(tuiCmd)
}
