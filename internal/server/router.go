// Package server exposes one doc-assistant session over a localhost HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/session"
)

// defaultMaxUpload bounds multipart uploads.
const defaultMaxUpload = 64 << 20

// Analyzer starts analysis runs.
type Analyzer interface {
	Start(ctx context.Context, req analysis.Request) <-chan domain.Message
}

// TextReader runs OCR on an uploaded image.
type TextReader interface {
	ReadText(ctx context.Context, image []byte) (string, error)
}

// Config wires the handlers.
type Config struct {
	Session  *session.Session
	Analyzer Analyzer
	OCR      TextReader
	Answerer session.Answerer
	// BaseContext is cancelled on shutdown; runs outlive the request that started them.
	BaseContext  context.Context
	PollInterval time.Duration
	MaxUpload    int64
	Logger       *domain.Logger
}

// Handler serves the API.
type Handler struct {
	session      *session.Session
	analyzer     Analyzer
	ocr          TextReader
	answerer     session.Answerer
	baseCtx      context.Context
	pollInterval time.Duration
	maxUpload    int64
	logger       *domain.Logger
}

// NewHandler creates the API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = defaultMaxUpload
	}
	if cfg.Logger == nil {
		cfg.Logger = domain.DefaultLogger
	}
	if cfg.Session == nil {
		cfg.Session = session.New()
	}
	return &Handler{
		session:      cfg.Session,
		analyzer:     cfg.Analyzer,
		ocr:          cfg.OCR,
		answerer:     cfg.Answerer,
		baseCtx:      cfg.BaseContext,
		pollInterval: cfg.PollInterval,
		maxUpload:    cfg.MaxUpload,
		logger:       cfg.Logger.WithOperation("http"),
	}
}

// NewRouter creates the API router with all routes configured.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"doc-assistant"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Post("/ocr", h.OCR)
		r.Post("/ask", h.Ask)
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.ClearSession)
		})
		r.Get("/report", h.Report)
	})

	return r
}

// requestLogger logs one line per request with zerolog.
func requestLogger(logger *domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", chimiddleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Msg("Request served")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
