package commands

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/config"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/llm"
	"github.com/spherical/doc-assistant/internal/ocr"
	"github.com/spherical/doc-assistant/internal/pdf"
	"github.com/spherical/doc-assistant/internal/session"
)

// components are the services shared by every surface.
type components struct {
	logger       *domain.Logger
	session      *session.Session
	validator    *pdf.Validator
	orchestrator *analysis.Orchestrator
	answerer     *analysis.Answerer
	ocr          *ocr.Reader
}

func buildComponents(cfg *config.Config, logger *domain.Logger) *components {
	generator := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
	})
	extractor := pdf.NewExtractor(cfg.Analysis.CharCap, logger)

	return &components{
		logger:    logger,
		session:   session.New(),
		validator: pdf.NewValidator(logger),
		orchestrator: analysis.NewOrchestrator(pdf.NewOpener(logger), extractor, generator,
			analysis.Config{ChunkPages: cfg.Analysis.ChunkPages}, logger),
		answerer: analysis.NewAnswerer(generator, cfg.Analysis.ContextChars, logger),
		ocr:      ocr.NewReader(ocr.NewEngine(ocrLanguages(cfg.OCR.Language)...), logger),
	}
}

// ocrLanguages splits "eng+deu" or "eng,deu" into Tesseract language codes.
func ocrLanguages(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
}

// newLogger logs to stderr, or to a rotated file when the terminal belongs
// to the interactive interface.
func newLogger(cfg *config.Config, toFile bool) (*domain.Logger, func(), error) {
	if !toFile {
		return domain.NewLogger(domain.LogConfig{
			Level:       cfg.Log.Level,
			Format:      cfg.Log.Format,
			Output:      os.Stderr,
			ServiceName: "doc-assistant",
		}), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, nil, domain.IOError("Failed to create log directory", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return domain.NewLogger(domain.LogConfig{
		Level:       cfg.Log.Level,
		Format:      "json",
		Output:      rotator,
		ServiceName: "doc-assistant",
	}), func() { _ = rotator.Close() }, nil
}
