package domain

import "context"

// PageSource is a paginated document that can yield text per page.
type PageSource interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// PageText returns the text of the zero-based page
	PageText(page int) (string, error)
}

// Document is a PageSource holding resources that must be released.
type Document interface {
	PageSource
	Close() error
}

// DocumentOpener turns a PDF byte stream into a Document.
type DocumentOpener interface {
	Open(data []byte) (Document, error)
}

// Generator produces text from a language model.
type Generator interface {
	// Generate runs one completion. onToken, when non-nil, receives every token
	// as it is produced. Cancelling ctx stops generation at the next token.
	Generate(ctx context.Context, req GenerateRequest, onToken func(token string)) (string, error)
}

// GenerateRequest is the input of one completion.
type GenerateRequest struct {
	// Instruction replaces the default summarization instruction when set
	Instruction string
	// Text is appended after the instruction
	Text string
}

// OCR converts a raster image into text.
type OCR interface {
	Extract(ctx context.Context, image []byte) (string, error)
}
