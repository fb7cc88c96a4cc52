// Package report renders a summary into a single-column PDF document.
package report

import (
	"bytes"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/spherical/doc-assistant/internal/domain"
)

const (
	// Title heads every report.
	Title = "Doc Assistant - Analysis Report"
	// TimestampLayout formats the generation time.
	TimestampLayout = "2006-01-02 15:04:05"

	fileNameLayout = "20060102_150405"
)

// Options tune a rendered report.
type Options struct {
	// DocumentInfo is an optional line under the timestamp, e.g. the source file name.
	DocumentInfo string
	// Now is the generation time; zero means time.Now.
	Now time.Time
}

// Render returns the PDF bytes for summary.
func Render(summary string, opts Options) ([]byte, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Title, true)
	pdf.SetCreator("doc-assistant", true)
	pdf.SetCreationDate(now)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, encode(Title), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 10, encode("Generated: "+now.Format(TimestampLayout)), "", 1, "", false, 0, "")
	if opts.DocumentInfo != "" {
		pdf.CellFormat(0, 10, encode(opts.DocumentInfo), "", 1, "", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, encode(summary), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, domain.IOError("Failed to render report", err)
	}
	return buf.Bytes(), nil
}

// FileName returns the download name for a report generated at now.
func FileName(now time.Time) string {
	return "summary_" + now.Format(fileNameLayout) + ".pdf"
}

// Downgrade replaces every character the report font cannot show: first with
// its decomposed base letters, otherwise with '?'.
func Downgrade(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if representable(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteString(fallback(r))
	}
	return b.String()
}

func fallback(r rune) string {
	var b strings.Builder
	for _, d := range norm.NFKD.String(string(r)) {
		if unicode.Is(unicode.Mn, d) || !representable(d) {
			continue
		}
		b.WriteRune(d)
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

func representable(r rune) bool {
	_, ok := charmap.Windows1252.EncodeRune(r)
	return ok
}

// encode converts s to the Windows-1252 bytes the core PDF fonts expect.
func encode(s string) string {
	s = Downgrade(s)
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, c)
		}
	}
	return string(out)
}
