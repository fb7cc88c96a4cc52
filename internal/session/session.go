// Package session holds the state the presentation layer owns between runs:
// the summary, the extracted document text, the question transcript and the
// run guard.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
)

// Answerer answers a question against the document text.
type Answerer interface {
	Answer(ctx context.Context, documentText, question string) (string, error)
}

// Session is safe for concurrent use. Only one analysis run or question may
// be outstanding at a time.
type Session struct {
	busy atomic.Bool

	mu           sync.RWMutex
	summary      string
	documentText string
	ocrText      string
	transcript   []domain.ChatTurn
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Summary      string            `json:"summary"`
	DocumentText string            `json:"document_text"`
	OCRText      string            `json:"ocr_text"`
	Transcript   []domain.ChatTurn `json:"transcript"`
	Busy         bool              `json:"busy"`
}

// New creates an empty session.
func New() *Session {
	return &Session{}
}

// TryBegin acquires the run guard. It returns domain.ErrBusy when a run or
// question is already outstanding.
func (s *Session) TryBegin() error {
	if !s.busy.CompareAndSwap(false, true) {
		return domain.ErrBusy
	}
	return nil
}

// End releases the run guard.
func (s *Session) End() {
	s.busy.Store(false)
}

// Busy reports whether a run or question is outstanding.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// BeginAnalysis acquires the guard and discards the previous summary and
// transcript.
func (s *Session) BeginAnalysis() error {
	if err := s.TryBegin(); err != nil {
		return err
	}
	s.mu.Lock()
	s.summary = ""
	s.transcript = nil
	s.mu.Unlock()
	return nil
}

// Commit stores the result of a finished run and releases the guard. A
// failed run keeps nothing: the summary stays empty and the document text
// keeps its previous value.
func (s *Session) Commit(out relay.Outcome) {
	s.mu.Lock()
	if out.Err == nil {
		s.summary = out.Summary
		s.documentText = out.DocumentText
	}
	s.mu.Unlock()
	s.End()
}

// Clear resets everything. It is refused while a run is outstanding.
func (s *Session) Clear() error {
	if s.Busy() {
		return domain.ErrBusy
	}
	s.mu.Lock()
	s.summary = ""
	s.documentText = ""
	s.ocrText = ""
	s.transcript = nil
	s.mu.Unlock()
	return nil
}

// SetOCRText stores the text read from the current image, which image runs
// analyze. Non-empty text also becomes the document text. Empty text discards
// the previous image so image analysis is unavailable until a new read.
func (s *Session) SetOCRText(text string) error {
	if s.Busy() {
		return domain.ErrBusy
	}
	s.mu.Lock()
	s.ocrText = text
	if strings.TrimSpace(text) != "" {
		s.documentText = text
	}
	s.mu.Unlock()
	return nil
}

// OCRText returns the text of the current image.
func (s *Session) OCRText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ocrText
}

// Summary returns the committed summary.
func (s *Session) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// DocumentText returns the stored document text.
func (s *Session) DocumentText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentText
}

// Transcript returns a copy of the question transcript.
func (s *Session) Transcript() []domain.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatTurn(nil), s.transcript...)
}

// Snapshot returns a copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Summary:      s.summary,
		DocumentText: s.documentText,
		OCRText:      s.ocrText,
		Transcript:   append([]domain.ChatTurn{}, s.transcript...),
		Busy:         s.Busy(),
	}
}

// CanAnalyze reports whether src has input to analyze. Image sources use the
// stored OCR text rather than src.Text; text left by an earlier PDF or text
// run does not count.
func (s *Session) CanAnalyze(src domain.Source) bool {
	switch src.Kind {
	case domain.SourcePDF:
		return len(src.PDF) > 0
	case domain.SourceText:
		return strings.TrimSpace(src.Text) != ""
	case domain.SourceImage:
		return strings.TrimSpace(s.OCRText()) != ""
	}
	return false
}

// Prepare completes src for a run: image sources take the stored OCR text.
// It returns domain.ErrNoText when there is nothing to analyze.
func (s *Session) Prepare(src domain.Source) (domain.Source, error) {
	if !s.CanAnalyze(src) {
		return src, domain.ErrNoText
	}
	if src.Kind == domain.SourceImage {
		src.Text = s.OCRText()
	}
	return src, nil
}

// Ask appends a user question to the transcript and acquires the guard. The
// question is answered by AnswerPending.
func (s *Session) Ask(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ValidationError("question is empty", nil)
	}
	if s.Summary() == "" {
		return domain.ValidationError("run an analysis before asking questions", nil)
	}
	if err := s.TryBegin(); err != nil {
		return err
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, domain.ChatTurn{Role: domain.RoleUser, Content: question})
	s.mu.Unlock()
	return nil
}

// PendingQuestion returns the last transcript entry when it is an unanswered
// user question.
func (s *Session) PendingQuestion() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.transcript); n > 0 && s.transcript[n-1].Role == domain.RoleUser {
		return s.transcript[n-1].Content, true
	}
	return "", false
}

// AnswerPending answers the pending question, appends exactly one assistant
// entry and releases the guard. On failure the question is removed from the
// transcript and the error returned.
func (s *Session) AnswerPending(ctx context.Context, a Answerer) (domain.ChatTurn, error) {
	question, ok := s.PendingQuestion()
	if !ok {
		return domain.ChatTurn{}, domain.ValidationError("no pending question", nil)
	}
	defer s.End()

	answer, err := a.Answer(ctx, s.DocumentText(), question)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if n := len(s.transcript); n > 0 && s.transcript[n-1].Role == domain.RoleUser {
			s.transcript = s.transcript[:n-1]
		}
		return domain.ChatTurn{}, err
	}

	turn := domain.ChatTurn{Role: domain.RoleAssistant, Content: answer}
	s.transcript = append(s.transcript, turn)
	return turn, nil
}
