package pdf

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-assistant/internal/domain"
)

// fakePages is an in-memory PageSource.
type fakePages struct {
	pages []string
	errAt map[int]bool
	calls []int
}

func (f *fakePages) PageCount() int { return len(f.pages) }

func (f *fakePages) PageText(i int) (string, error) {
	f.calls = append(f.calls, i)
	if f.errAt[i] {
		return "", errors.New("no text layer")
	}
	return f.pages[i], nil
}

func numberedPages(n int) *fakePages {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = "page" + string(rune('A'+i))
	}
	return &fakePages{pages: pages}
}

func TestExtractChunk_PageRange(t *testing.T) {
	src := numberedPages(10)
	e := NewExtractor(0, domain.NopLogger())

	got := e.ExtractChunk(src, 0, 3)

	assert.Equal(t, "pageA pageB pageC", got)
	assert.Equal(t, []int{0, 1, 2}, src.calls)
}

func TestExtractChunk_ClampsBeyondPageCount(t *testing.T) {
	tests := []struct {
		name  string
		start int
		size  int
		want  string
	}{
		{name: "tail range", start: 6, size: 3, want: "pageG"},
		{name: "start past end", start: 12, size: 3, want: ""},
		{name: "oversized chunk", start: 0, size: 50, want: "pageA pageB pageC pageD pageE pageF pageG"},
		{name: "default size", start: 3, size: 0, want: "pageD pageE pageF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(0, domain.NopLogger())
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, e.ExtractChunk(numberedPages(7), tt.start, tt.size))
			})
		})
	}
}

func TestExtractChunk_CleansText(t *testing.T) {
	src := &fakePages{pages: []string{
		"Revenue grew  12%\u2014 year\n\nover year",
		"",
		"caféé \t totals",
	}}
	e := NewExtractor(0, domain.NopLogger())

	got := e.ExtractChunk(src, 0, 3)

	assert.Equal(t, "Revenue grew 12% year over year caf totals", got)
	for _, r := range got {
		assert.Less(t, r, rune(0x80))
	}
}

func TestExtractChunk_SkipsPagesWithoutText(t *testing.T) {
	src := &fakePages{
		pages: []string{"first", "scanned", "third"},
		errAt: map[int]bool{1: true},
	}
	e := NewExtractor(0, domain.NopLogger())

	assert.Equal(t, "first third", e.ExtractChunk(src, 0, 3))
}

func TestExtractChunk_EmptyDocument(t *testing.T) {
	e := NewExtractor(0, domain.NopLogger())
	assert.Equal(t, "", e.ExtractChunk(&fakePages{}, 0, 3))
}

func TestExtractChunk_NeverExceedsCap(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 400)
	src := &fakePages{pages: []string{long, long, long}}

	for _, limit := range []int{1, 10, 2999, DefaultCharCap} {
		e := NewExtractor(limit, domain.NopLogger())
		got := e.ExtractChunk(src, 0, 3)
		assert.LessOrEqual(t, len([]rune(got)), limit)
	}

	e := NewExtractor(0, domain.NopLogger())
	assert.Len(t, e.ExtractChunk(src, 0, 3), DefaultCharCap)
}

func TestCapText(t *testing.T) {
	e := NewExtractor(5, domain.NopLogger())

	assert.Equal(t, "short", e.CapText("short"))
	assert.Equal(t, "héllo", e.CapText("héllo world"))
	assert.Equal(t, "", e.CapText(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestStripNonASCII(t *testing.T) {
	assert.Equal(t, "a b", stripNonASCII("a’’b"))
	assert.Equal(t, "plain", stripNonASCII("plain"))
}

func TestValidatePDF(t *testing.T) {
	v := NewValidator(domain.NopLogger())

	require.NoError(t, v.ValidatePDF([]byte("%PDF-1.7\n...")))

	err := v.ValidatePDF(nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))

	err = v.ValidatePDF([]byte("GIF89a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")
}

func TestValidatePDFPath(t *testing.T) {
	v := NewValidator(domain.NopLogger())
	dir := t.TempDir()

	assert.Error(t, v.ValidatePDFPath(""))
	assert.Error(t, v.ValidatePDFPath(dir))
	assert.Error(t, v.ValidatePDFPath(dir+"/missing.pdf"))

	txt := dir + "/notes.txt"
	require.NoError(t, writeFile(txt, "hello"))
	assert.Error(t, v.ValidatePDFPath(txt))

	doc := dir + "/report.pdf"
	require.NoError(t, writeFile(doc, "%PDF-1.4"))
	assert.NoError(t, v.ValidatePDFPath(doc))

	data, err := v.LoadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
