package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies where the document text comes from.
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceText  SourceKind = "text"
	SourceImage SourceKind = "image"
)

// Label returns the human-facing name used by input selectors.
func (k SourceKind) Label() string {
	switch k {
	case SourcePDF:
		return "PDF Document"
	case SourceText:
		return "Paste Text/Email"
	case SourceImage:
		return "Image/Screenshot"
	default:
		return string(k)
	}
}

// ParseSourceKind accepts the short names used on the command line and in forms.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return SourcePDF, nil
	case "text", "txt", "email":
		return SourceText, nil
	case "image", "img", "screenshot":
		return SourceImage, nil
	}
	return "", ValidationError(fmt.Sprintf("unknown input mode %q", s), nil)
}

// Depth selects the chunking strategy.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// Label returns the human-facing name used by depth selectors.
func (d Depth) Label() string {
	if d == DepthDeep {
		return "Deep Scan (full doc)"
	}
	return "Quick Summary (3 pages)"
}

// ParseDepth accepts "quick" or "deep".
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quick":
		return DepthQuick, nil
	case "deep":
		return DepthDeep, nil
	}
	return "", ValidationError(fmt.Sprintf("unknown analysis depth %q", s), nil)
}

// Source is the document captured for one run. It is not modified after the
// run starts.
type Source struct {
	Kind SourceKind
	// PDF holds the raw PDF bytes for SourcePDF.
	PDF []byte
	// Text holds pasted text for SourceText or OCR output for SourceImage.
	Text string
	// Name is an optional display name (file name) used in reports and logs.
	Name string
}

// HasContent reports whether the source can be analyzed.
func (s Source) HasContent() bool {
	if s.Kind == SourcePDF {
		return len(s.PDF) > 0
	}
	return strings.TrimSpace(s.Text) != ""
}

// Role is the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry in the question answering transcript.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
