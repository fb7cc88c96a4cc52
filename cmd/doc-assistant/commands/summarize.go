package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
	"github.com/spherical/doc-assistant/internal/report"
)

var (
	summarizeText   string
	summarizeDepth  string
	summarizeAsk    []string
	summarizeExport string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Stream a summary of a PDF, an image or pasted text",
	Long: `Summarize a document and print the summary as it is generated.

A .png, .jpg or .jpeg file is read with OCR first. Any other file must be a PDF.
Use --text to summarize pasted text instead ("-" reads standard input).`,
	Example: `  doc-assistant summarize report.pdf
  doc-assistant summarize report.pdf --depth deep --ask "What are the risks?"
  doc-assistant summarize screenshot.png --export
  pbpaste | doc-assistant summarize --text -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeText, "text", "t", "", `text to summarize ("-" reads stdin)`)
	summarizeCmd.Flags().StringVarP(&summarizeDepth, "depth", "d", string(domain.DepthQuick), "analysis depth: quick or deep")
	summarizeCmd.Flags().StringArrayVarP(&summarizeAsk, "ask", "a", nil, "follow-up question (repeatable)")
	summarizeCmd.Flags().StringVarP(&summarizeExport, "export", "e", "", "write a PDF report to this file or directory")
	summarizeCmd.Flags().Lookup("export").NoOptDefVal = "."

	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	depth, err := domain.ParseDepth(summarizeDepth)
	if err != nil {
		return err
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	if path != "" && summarizeText != "" {
		return domain.ValidationError("pass either a file or --text, not both", nil)
	}

	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()
	c := buildComponents(cfg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := loadSource(ctx, c, path, summarizeText)
	if err != nil {
		return err
	}
	if fallsBackToQuick(src, depth) {
		ui.Warning("Deep scan chunks PDFs only; %s input gets a quick summary", src.Kind)
	}
	if err := analyze(ctx, c, src, depth); err != nil {
		return err
	}

	for _, question := range summarizeAsk {
		if err := ask(ctx, c, question); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("export") {
		return export(c, summarizeExport, src.Name)
	}
	return nil
}

// fallsBackToQuick reports whether a deep request is served by a quick summary.
func fallsBackToQuick(src domain.Source, depth domain.Depth) bool {
	return depth == domain.DepthDeep && src.Kind != domain.SourcePDF
}

// analyze runs one analysis and relays it to the terminal.
func analyze(ctx context.Context, c *components, src domain.Source, depth domain.Depth) error {
	src, err := c.session.Prepare(src)
	if err != nil {
		return err
	}
	if err := c.session.BeginAnalysis(); err != nil {
		return err
	}

	if ui.IsTerminal() {
		ui.Section(fmt.Sprintf("%s summary (%s)", src.Kind.Label(), depth.Label()))
	}

	ch := c.orchestrator.Start(ctx, analysis.Request{Source: src, Depth: depth})
	out := relay.Loop(ctx, ch, ui.NewStreamSink(os.Stdout, os.Stderr), cfg.Relay.PollInterval)
	c.session.Commit(out)
	return out.Err
}

func ask(ctx context.Context, c *components, question string) error {
	if err := c.session.Ask(question); err != nil {
		return err
	}

	ui.Newline()
	fmt.Printf("Q: %s\n", question)
	spin := ui.NewSpinner(os.Stderr, "Thinking...")
	spin.Start()
	turn, err := c.session.AnswerPending(ctx, c.answerer)
	spin.Stop()
	if err != nil {
		return err
	}
	fmt.Printf("A: %s\n", turn.Content)
	return nil
}

func export(c *components, target, sourceName string) error {
	now := time.Now()
	info := ""
	if sourceName != "" {
		info = "Source: " + sourceName
	}

	data, err := report.Render(c.session.Summary(), report.Options{DocumentInfo: info, Now: now})
	if err != nil {
		return err
	}

	if target == "" {
		target = "."
	}
	if fi, statErr := os.Stat(target); statErr == nil && fi.IsDir() {
		target = filepath.Join(target, report.FileName(now))
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return domain.IOError("Failed to save report", err)
	}

	ui.Success("Report saved to %s", target)
	return nil
}
