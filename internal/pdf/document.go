package pdf

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/doc-assistant/internal/domain"
)

// Document is an open PDF backed by go-fitz.
type Document struct {
	doc *fitz.Document
}

// Opener opens PDF byte streams with go-fitz after validating them.
type Opener struct {
	validator *Validator
}

// NewOpener creates a new PDF opener
func NewOpener(logger *domain.Logger) *Opener {
	return &Opener{validator: NewValidator(logger)}
}

// Open validates data and parses it as a PDF document
func (o *Opener) Open(data []byte) (domain.Document, error) {
	if err := o.validator.ValidatePDF(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.ExtractionError("Failed to open PDF", err)
	}

	return &Document{doc: doc}, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.doc.NumPage()
}

// PageText returns the plain text of the zero-based page
func (d *Document) PageText(page int) (string, error) {
	text, err := d.doc.Text(page)
	if err != nil {
		return "", domain.ExtractionError(fmt.Sprintf("Failed to extract text from page %d", page+1), err)
	}
	return text, nil
}

// Close releases the underlying document
func (d *Document) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
