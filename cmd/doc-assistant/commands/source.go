package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/domain"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

func isImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// readTextArg returns pasted text; "-" reads standard input.
func readTextArg(text string) (string, error) {
	if text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", domain.IOError("Failed to read standard input", err)
	}
	return string(data), nil
}

// ocrFile runs OCR on an image file and stores the text in the session.
func ocrFile(ctx context.Context, c *components, path string) (string, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return "", domain.IOError("Failed to read image", err)
	}

	spin := ui.NewSpinner(os.Stderr, "Extracting text from "+filepath.Base(path)+"...")
	spin.Start()
	text, err := c.ocr.ReadText(ctx, image)
	spin.Stop()
	if err != nil {
		return "", err
	}

	if err := c.session.SetOCRText(text); err != nil {
		return "", err
	}
	return text, nil
}

// loadSource builds the run source from a file argument or pasted text.
func loadSource(ctx context.Context, c *components, path, text string) (domain.Source, error) {
	if text != "" {
		body, err := readTextArg(text)
		if err != nil {
			return domain.Source{}, err
		}
		return domain.Source{Kind: domain.SourceText, Text: body}, nil
	}

	if path == "" {
		return domain.Source{}, domain.ValidationError("provide a file or --text", nil)
	}

	if isImagePath(path) {
		if _, err := ocrFile(ctx, c, path); err != nil {
			return domain.Source{}, err
		}
		return domain.Source{Kind: domain.SourceImage, Name: filepath.Base(path)}, nil
	}

	data, err := c.validator.LoadFile(path)
	if err != nil {
		return domain.Source{}, err
	}
	return domain.Source{Kind: domain.SourcePDF, PDF: data, Name: filepath.Base(path)}, nil
}
