package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spherical/doc-assistant/internal/analysis"
	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
	"github.com/spherical/doc-assistant/internal/report"
)

// AskRequestDTO is the body of POST /api/ask.
type AskRequestDTO struct {
	Question string `json:"question"`
}

// AskResponseDTO is the response of POST /api/ask.
type AskResponseDTO struct {
	Answer     string            `json:"answer"`
	Transcript []domain.ChatTurn `json:"transcript"`
}

// OCRResponseDTO is the response of POST /api/ocr.
type OCRResponseDTO struct {
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}

// Analyze handles POST /api/analyze. The form carries mode (pdf, text or
// image), depth (quick or deep), text for pasted input and file for a PDF.
// The response is a Server-Sent Events stream of the run's messages.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	src, depth, err := h.parseAnalyzeForm(w, r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	src, err = h.session.Prepare(src)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.session.BeginAnalysis(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.session.End()
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info().
		Str("source", string(src.Kind)).
		Str("depth", string(depth)).
		Str("name", src.Name).
		Msg("Analysis requested")

	// The run is tied to the server, not the request: a client that goes away
	// does not abort it and the session still receives the result.
	ch := h.analyzer.Start(h.baseCtx, analysis.Request{Source: src, Depth: depth})
	out := relay.Loop(h.baseCtx, ch, newEventSink(w, flusher, h.logger), h.pollInterval)
	h.session.Commit(out)
}

func (h *Handler) parseAnalyzeForm(w http.ResponseWriter, r *http.Request) (domain.Source, domain.Depth, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return domain.Source{}, "", domain.ValidationError("invalid form", err)
	}

	kind, err := domain.ParseSourceKind(r.FormValue("mode"))
	if err != nil {
		return domain.Source{}, "", err
	}
	depth, err := domain.ParseDepth(r.FormValue("depth"))
	if err != nil {
		return domain.Source{}, "", err
	}

	src := domain.Source{Kind: kind}
	switch kind {
	case domain.SourceText:
		src.Text = r.FormValue("text")
	case domain.SourcePDF:
		data, name, err := readUpload(r, "file")
		if err != nil {
			return domain.Source{}, "", err
		}
		src.PDF, src.Name = data, name
	}
	return src, depth, nil
}

// OCR handles POST /api/ocr with an image in the file field. The text is
// stored in the session for image analysis.
func (h *Handler) OCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form", err.Error())
		return
	}

	image, _, err := readUpload(r, "file")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.session.Busy() {
		h.writeDomainError(w, domain.ErrBusy)
		return
	}

	text, err := h.ocr.ReadText(r.Context(), image)
	if errors.Is(err, domain.ErrNoText) {
		_ = h.session.SetOCRText("")
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.session.SetOCRText(text); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, OCRResponseDTO{Text: text, Chars: len([]rune(text))})
}

// Ask handles POST /api/ask.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.session.Ask(req.Question); err != nil {
		h.writeDomainError(w, err)
		return
	}

	turn, err := h.session.AnswerPending(h.baseCtx, h.answerer)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, AskResponseDTO{Answer: turn.Content, Transcript: h.session.Transcript()})
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// ClearSession handles DELETE /api/session.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Clear(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handles GET /api/report. The optional info query parameter adds a
// document line under the timestamp.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	summary := h.session.Summary()
	if summary == "" {
		h.writeError(w, http.StatusNotFound, "no summary to export", "")
		return
	}

	now := time.Now()
	data, err := report.Render(summary, report.Options{DocumentInfo: r.URL.Query().Get("info"), Now: now})
	if err != nil {
		h.logger.Error().Err(err).Msg("Report rendering failed")
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(now)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", domain.ValidationError(fmt.Sprintf("%s upload is required", field), err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", domain.IOError("Failed to read upload", err)
	}
	return data, header.Filename, nil
}

// statusFor maps domain error types onto HTTP status codes.
func statusFor(err error) int {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Type {
	case domain.ErrorTypeValidation:
		if errors.Is(err, domain.ErrNoText) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case domain.ErrorTypeBusy:
		return http.StatusConflict
	case domain.ErrorTypeExtraction:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeOCR:
		return http.StatusServiceUnavailable
	case domain.ErrorTypeInference:
		return http.StatusBadGateway
	case domain.ErrorTypeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		detail := ""
		if de.Err != nil {
			detail = de.Err.Error()
		}
		h.writeError(w, status, de.Message, detail)
		return
	}
	h.writeError(w, status, err.Error(), "")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
