package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over HTTP on the local machine",
	Long: `Serve the assistant over HTTP. POST /api/analyze streams a run as
server-sent events; the other endpoints cover OCR, questions, the session and
report export.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
		if err := cfg.Validate(); err != nil {
			return domain.ConfigError("Invalid configuration", err)
		}
	}

	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()
	c := buildComponents(cfg, logger)

	// Runs are tied to the server lifetime, not to the request that started them.
	baseCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	handler := server.NewHandler(server.Config{
		Session:      c.session,
		Analyzer:     c.orchestrator,
		OCR:          c.ocr,
		Answerer:     c.answerer,
		BaseContext:  baseCtx,
		PollInterval: cfg.Relay.PollInterval,
		Logger:       logger,
	})

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:        addr,
		Handler:     server.NewRouter(handler),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: summaries stream for as long as the model runs.
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("llm", cfg.LLM.BaseURL).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()
	ui.Info("Listening on http://%s", addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = domain.IOError("HTTP server failed", err)
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Stop in-flight runs so their streams end and Shutdown can drain them.
	cancelRuns()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return serveErr
}
