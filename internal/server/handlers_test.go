package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
	"github.com/spherical/doc-assistant/internal/session"
)

type fakeAnalyzer struct {
	msgs []domain.Message
	reqs []analysis.Request
}

func (a *fakeAnalyzer) Start(_ context.Context, req analysis.Request) <-chan domain.Message {
	a.reqs = append(a.reqs, req)
	ch := make(chan domain.Message, len(a.msgs))
	for _, m := range a.msgs {
		ch <- m
	}
	close(ch)
	return ch
}

type fakeOCR struct {
	text string
	err  error
}

func (o *fakeOCR) ReadText(context.Context, []byte) (string, error) {
	return o.text, o.err
}

type fakeAnswerer struct {
	answer string
	err    error
}

func (a *fakeAnswerer) Answer(context.Context, string, string) (string, error) {
	return a.answer, a.err
}

type fixture struct {
	session  *session.Session
	analyzer *fakeAnalyzer
	ocr      *fakeOCR
	answerer *fakeAnswerer
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		session: session.New(),
		analyzer: &fakeAnalyzer{msgs: []domain.Message{
			domain.Status{Text: "Processing pasted text..."},
			domain.ClearUI{},
			domain.Content{Token: "Short "},
			domain.Content{Token: "summary."},
			domain.Complete{DocumentText: "the pasted text"},
		}},
		ocr:      &fakeOCR{text: "scanned text"},
		answerer: &fakeAnswerer{answer: "42"},
	}
	f.router = NewRouter(NewHandler(Config{
		Session:  f.session,
		Analyzer: f.analyzer,
		OCR:      f.ocr,
		Answerer: f.answerer,
		Logger:   domain.NopLogger(),
	}))
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, path string, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func (f *fixture) summarize(t *testing.T) {
	t.Helper()
	rec := f.do(formRequest(url.Values{"mode": {"text"}, "text": {"hello"}}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := newFixture().do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAnalyze_StreamsEventsAndCommits(t *testing.T) {
	f := newFixture()

	rec := f.do(formRequest(url.Values{"mode": {"text"}, "depth": {"deep"}, "text": {"the pasted text"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, strings.Join([]string{
		`event: status` + "\n" + `data: {"text":"Processing pasted text..."}`,
		`event: clear` + "\n" + `data: {}`,
		`event: content` + "\n" + `data: {"token":"Short "}`,
		`event: content` + "\n" + `data: {"token":"summary."}`,
		`event: complete` + "\n" + `data: {"ok":true,"summary":"Short summary."}`,
	}, "\n\n")+"\n\n", rec.Body.String())

	require.Len(t, f.analyzer.reqs, 1)
	assert.Equal(t, domain.SourceText, f.analyzer.reqs[0].Source.Kind)
	assert.Equal(t, domain.DepthDeep, f.analyzer.reqs[0].Depth)

	assert.False(t, f.session.Busy())
	assert.Equal(t, "Short summary.", f.session.Summary())
	assert.Equal(t, "the pasted text", f.session.DocumentText())
}

func TestAnalyze_ErrorEvent(t *testing.T) {
	f := newFixture()
	f.analyzer.msgs = []domain.Message{
		domain.Status{Text: "Performing Quick Scan..."},
		domain.Error{Err: domain.ExtractionError("Failed to open PDF", nil)},
		domain.Complete{},
	}

	rec := f.do(uploadRequest(t, "/api/analyze", map[string]string{"mode": "pdf"}, "q3.pdf", []byte("%PDF-1.7")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\ndata: {\"error\":\"Failed to open PDF\"}")
	assert.True(t, strings.HasSuffix(rec.Body.String(), "event: complete\ndata: {\"ok\":false,\"summary\":\"\"}\n\n"))
	assert.Equal(t, []byte("%PDF-1.7"), f.analyzer.reqs[0].Source.PDF)
	assert.Equal(t, "q3.pdf", f.analyzer.reqs[0].Source.Name)
	assert.Empty(t, f.session.Summary())
	assert.False(t, f.session.Busy())
}

func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		busy   bool
		status int
	}{
		{name: "unknown mode", values: url.Values{"mode": {"video"}}, status: http.StatusBadRequest},
		{name: "unknown depth", values: url.Values{"mode": {"text"}, "text": {"x"}, "depth": {"medium"}}, status: http.StatusBadRequest},
		{name: "empty text", values: url.Values{"mode": {"text"}, "text": {"  "}}, status: http.StatusUnprocessableEntity},
		{name: "image without ocr", values: url.Values{"mode": {"image"}}, status: http.StatusUnprocessableEntity},
		{name: "pdf without upload", values: url.Values{"mode": {"pdf"}}, status: http.StatusBadRequest},
		{name: "run outstanding", values: url.Values{"mode": {"text"}, "text": {"x"}}, busy: true, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.busy {
				require.NoError(t, f.session.TryBegin())
			}

			rec := f.do(formRequest(tt.values))

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, f.analyzer.reqs)
		})
	}
}

func TestOCR_ThenImageAnalysis(t *testing.T) {
	f := newFixture()

	rec := f.do(uploadRequest(t, "/api/ocr", nil, "shot.png", []byte("png")))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp OCRResponseDTO
	decode(t, rec, &resp)
	assert.Equal(t, OCRResponseDTO{Text: "scanned text", Chars: 12}, resp)
	assert.Equal(t, "scanned text", f.session.DocumentText())

	rec = f.do(formRequest(url.Values{"mode": {"image"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scanned text", f.analyzer.reqs[0].Source.Text)
}

func TestOCR_Failures(t *testing.T) {
	f := newFixture()
	rec := f.do(uploadRequest(t, "/api/ocr", nil, "first.png", []byte("png")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.session.CanAnalyze(domain.Source{Kind: domain.SourceImage}))

	f.ocr.text, f.ocr.err = "", domain.ErrNoText

	rec = f.do(uploadRequest(t, "/api/ocr", nil, "blank.png", []byte("png")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no text found in input")
	assert.False(t, f.session.CanAnalyze(domain.Source{Kind: domain.SourceImage}))

	f.ocr.err = domain.OCRError("OCR engine unavailable", nil)
	rec = f.do(uploadRequest(t, "/api/ocr", nil, "x.png", []byte("png")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, f.session.TryBegin())
	rec = f.do(uploadRequest(t, "/api/ocr", nil, "x.png", []byte("png")))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAsk(t *testing.T) {
	f := newFixture()

	rec := f.do(jsonRequest(http.MethodPost, "/api/ask", AskRequestDTO{Question: "what?"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no summary yet")

	f.summarize(t)

	rec = f.do(jsonRequest(http.MethodPost, "/api/ask", AskRequestDTO{Question: "What is the answer?"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AskResponseDTO
	decode(t, rec, &resp)
	assert.Equal(t, "42", resp.Answer)
	assert.Equal(t, []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "What is the answer?"},
		{Role: domain.RoleAssistant, Content: "42"},
	}, resp.Transcript)

	f.answerer.err = domain.InferenceError("inference server returned status 503", nil)
	rec = f.do(jsonRequest(http.MethodPost, "/api/ask", AskRequestDTO{Question: "again?"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, f.session.Transcript(), 2)
	assert.False(t, f.session.Busy())

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_GetAndClear(t *testing.T) {
	f := newFixture()
	f.summarize(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, "Short summary.", snap.Summary)

	require.NoError(t, f.session.TryBegin())
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	f.session.End()

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.session.Summary())
}

func TestReport(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.summarize(t)
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/report?info=Source:+notes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="summary_\d{8}_\d{6}\.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrBusy))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrNoText))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.InferenceError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

var _ relay.Sink = (*eventSink)(nil)
