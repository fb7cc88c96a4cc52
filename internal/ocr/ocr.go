// Package ocr converts screenshots and scanned images into text.
package ocr

import (
	"context"
	"net/http"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/doc-assistant/internal/domain"
)

// InstallHint is shown when the OCR engine cannot run.
const InstallHint = "OCR engine unavailable: ensure Tesseract and its language data are installed (https://tesseract-ocr.github.io/tessdoc/Installation.html)"

// Engine runs Tesseract through gosseract.
type Engine struct {
	languages []string
}

// NewEngine creates an engine for the given Tesseract languages ("eng" when empty).
func NewEngine(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{languages: languages}
}

// Extract returns the raw text recognised in image.
func (e *Engine) Extract(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.CancelledError("ocr cancelled", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", domain.OCRError(InstallHint, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", domain.OCRError("cannot load image", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", domain.OCRError(InstallHint, err)
	}
	return text, nil
}

// Reader validates images and rejects empty OCR results.
type Reader struct {
	engine domain.OCR
	logger *domain.Logger
}

// NewReader wraps an OCR engine.
func NewReader(engine domain.OCR, logger *domain.Logger) *Reader {
	if logger == nil {
		logger = domain.DefaultLogger
	}
	return &Reader{engine: engine, logger: logger.WithOperation("ocr")}
}

// ReadText runs OCR on a PNG or JPEG image. It returns domain.ErrNoText when
// the image holds no recognisable text.
func (r *Reader) ReadText(ctx context.Context, image []byte) (string, error) {
	if err := ValidateImage(image); err != nil {
		return "", err
	}

	text, err := r.engine.Extract(ctx, image)
	if err != nil {
		r.logger.Error().Err(err).Msg("OCR failed")
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		r.logger.Warn().Int("bytes", len(image)).Msg("No text found in image")
		return "", domain.ErrNoText
	}

	r.logger.Info().Int("chars", len(text)).Msg("Text extracted from image")
	return text, nil
}

// ValidateImage accepts PNG and JPEG input.
func ValidateImage(image []byte) error {
	if len(image) == 0 {
		return domain.ValidationError("image is empty", nil)
	}
	switch http.DetectContentType(image) {
	case "image/png", "image/jpeg":
		return nil
	}
	return domain.ValidationError("unsupported image type (expected png, jpg or jpeg)", nil)
}
