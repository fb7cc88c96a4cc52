package pdf

import (
	"strings"

	"github.com/spherical/doc-assistant/internal/domain"
)

const (
	// DefaultChunkPages is the number of pages per chunk.
	DefaultChunkPages = 3
	// DefaultCharCap bounds every chunk handed to the model.
	DefaultCharCap = 3000
)

// Extractor turns page ranges into bounded, cleaned text chunks.
type Extractor struct {
	charCap int
	logger  *domain.Logger
}

// NewExtractor creates an extractor with the given character cap (DefaultCharCap when <= 0).
func NewExtractor(charCap int, logger *domain.Logger) *Extractor {
	if charCap <= 0 {
		charCap = DefaultCharCap
	}
	if logger == nil {
		logger = domain.DefaultLogger
	}
	return &Extractor{charCap: charCap, logger: logger.WithOperation("extract")}
}

// ExtractChunk returns the cleaned text of pages [start, start+chunkSize),
// clamped to the page count. Pages without text contribute nothing.
func (e *Extractor) ExtractChunk(src domain.PageSource, start, chunkSize int) string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkPages
	}
	if start < 0 {
		start = 0
	}
	end := min(start+chunkSize, src.PageCount())

	var b strings.Builder
	for i := start; i < end; i++ {
		content, err := src.PageText(i)
		if err != nil {
			// Scanned or damaged pages are skipped rather than failing the chunk.
			e.logger.Debug().Err(err).Int("page", i+1).Msg("Page yielded no text")
			continue
		}
		if content == "" {
			continue
		}
		b.WriteString(stripNonASCII(content))
		b.WriteByte(' ')
	}

	return Truncate(collapseWhitespace(b.String()), e.charCap)
}

// CapText bounds a non-paginated source (pasted text, OCR output) to the cap.
func (e *Extractor) CapText(text string) string {
	return Truncate(text, e.charCap)
}

// stripNonASCII replaces each run of non-ASCII bytes with a single space.
func stripNonASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c > 0x7F {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteByte(c)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
