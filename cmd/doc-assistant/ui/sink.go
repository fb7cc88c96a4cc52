package ui

import (
	"fmt"
	"io"

	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
)

// StreamSink renders a run on a plain terminal: a spinner for status text, a
// bar for deep scan progress and the summary tokens on out as they arrive.
type StreamSink struct {
	out      io.Writer
	status   io.Writer
	spinner  *Spinner
	bar      *ProgressBar
	streamed bool
}

// NewStreamSink writes tokens to out and loading elements to status.
func NewStreamSink(out, status io.Writer) *StreamSink {
	return &StreamSink{out: out, status: status}
}

// Render implements relay.Sink.
func (s *StreamSink) Render(d *relay.Display, msg domain.Message) {
	switch m := msg.(type) {
	case domain.Status:
		if s.bar != nil {
			s.bar.Describe(m.Text)
			return
		}
		if s.spinner == nil {
			s.spinner = NewSpinner(s.status, m.Text)
			s.spinner.Start()
			return
		}
		s.spinner.UpdateMessage(m.Text)
	case domain.Progress:
		if s.bar == nil {
			s.stopSpinner()
			s.bar = NewProgressBar(s.status, "Deep scan")
		}
		s.bar.Describe(d.Status)
		s.bar.SetFraction(m.Fraction)
	case domain.ClearUI:
		s.clearLoading()
	case domain.Content:
		s.clearLoading()
		s.streamed = true
		fmt.Fprint(s.out, m.Token)
	case domain.Error:
		// The caller reports the run error once the loop returns.
		s.clearLoading()
	}
}

// Refresh implements relay.Sink.
func (s *StreamSink) Refresh(d *relay.Display) {
	s.clearLoading()
	if s.streamed {
		fmt.Fprintln(s.out)
	}
}

func (s *StreamSink) clearLoading() {
	s.stopSpinner()
	if s.bar != nil {
		s.bar.Clear()
		s.bar = nil
	}
}

func (s *StreamSink) stopSpinner() {
	if s.spinner != nil {
		s.spinner.Stop()
		s.spinner = nil
	}
}
