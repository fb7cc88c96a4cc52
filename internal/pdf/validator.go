package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/doc-assistant/internal/domain"
)

// maxSize is the size above which a warning is logged; larger files are still accepted.
const maxSize = 100 * 1024 * 1024

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for PDF documents
type Validator struct {
	logger *domain.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *domain.Logger) *Validator {
	if logger == nil {
		logger = domain.DefaultLogger
	}
	return &Validator{logger: logger.WithOperation("pdf-validate")}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	if info.Size() > maxSize {
		v.logger.Warn().Int64("size_mb", info.Size()/(1024*1024)).Msg("PDF file is very large, processing may take a while")
	}

	return nil
}

// ValidatePDF checks that an uploaded byte stream looks like a PDF
func (v *Validator) ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return domain.ValidationError("PDF is empty", nil)
	}

	// Some producers emit leading garbage; the header must appear in the first KiB.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return domain.ValidationError("input is not a PDF (missing %PDF- header)", nil)
	}

	if len(data) > maxSize {
		v.logger.Warn().Int("size_mb", len(data)/(1024*1024)).Msg("PDF is very large, processing may take a while")
	}

	return nil
}

// LoadFile validates path and reads the PDF into memory.
func (v *Validator) LoadFile(path string) ([]byte, error) {
	if err := v.ValidatePDFPath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	if err := v.ValidatePDF(data); err != nil {
		return nil, err
	}
	return data, nil
}
