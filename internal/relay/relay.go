// Package relay applies analysis messages to presentation state on the
// foreground side of the worker channel.
package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spherical/doc-assistant/internal/domain"
)

const (
	// DefaultPollInterval is how long a single poll waits for a message.
	DefaultPollInterval = 100 * time.Millisecond
	// StreamCursor is appended to the output while tokens are still arriving.
	StreamCursor = "▌"
)

var (
	// ErrTimeout is returned by Poll when no message arrived in time.
	ErrTimeout = errors.New("relay: poll timed out")
	// ErrClosed is returned by Poll once the channel is closed and empty.
	ErrClosed = errors.New("relay: channel closed")
)

// Outcome is what a finished run leaves behind for the session.
type Outcome struct {
	Summary      string
	DocumentText string
	Err          error
}

// Display is the visible state of one run. The zero value is not ready for
// use; create it with NewDisplay.
type Display struct {
	Status     string
	Fraction   float64
	Loading    bool
	Processing bool
	Done       bool
	Err        error

	output       strings.Builder
	summary      string
	documentText string
}

// NewDisplay returns the state shown when a run starts.
func NewDisplay() *Display {
	return &Display{Loading: true, Processing: true}
}

// Apply updates the display with msg and reports whether the run is over.
func (d *Display) Apply(msg domain.Message) bool {
	switch m := msg.(type) {
	case domain.Status:
		d.Status = m.Text
	case domain.Progress:
		d.Fraction = max(0, min(m.Fraction, 1))
	case domain.ClearUI:
		d.Loading = false
	case domain.Content:
		d.output.WriteString(m.Token)
	case domain.Error:
		d.Err = m.Err
		d.Processing = false
	case domain.Complete:
		d.summary = d.output.String()
		d.documentText = m.DocumentText
		d.Processing = false
		d.Loading = false
		d.Done = true
	}
	return d.Done
}

// Rendered returns the output with the streaming cursor while the run is live.
func (d *Display) Rendered() string {
	if d.Done {
		return d.output.String()
	}
	return d.output.String() + StreamCursor
}

// Outcome returns the committed result. Summary is empty until Complete.
func (d *Display) Outcome() Outcome {
	return Outcome{Summary: d.summary, DocumentText: d.documentText, Err: d.Err}
}

// Sink renders display changes on a concrete surface.
type Sink interface {
	// Render is called after every applied message.
	Render(d *Display, msg domain.Message)
	// Refresh redraws the whole surface once the loop has exited.
	Refresh(d *Display)
}

// Poll waits up to timeout for the next message.
func Poll(ch <-chan domain.Message, timeout time.Duration) (domain.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Drain discards the rest of an abandoned run so its worker can finish. It
// returns the number of messages dropped.
func Drain(ch <-chan domain.Message) int {
	n := 0
	for range ch {
		n++
	}
	return n
}

// Loop relays messages from ch to sink until Complete arrives or the channel
// closes. When ctx is done first the rest of the run is drained in the
// background and the outcome carries a cancellation error.
func Loop(ctx context.Context, ch <-chan domain.Message, sink Sink, interval time.Duration) Outcome {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	d := NewDisplay()

	out := func() Outcome {
		for {
			if err := ctx.Err(); err != nil {
				go Drain(ch)
				o := d.Outcome()
				o.Summary = ""
				o.Err = domain.CancelledError("analysis abandoned", err)
				return o
			}

			msg, err := Poll(ch, interval)
			switch {
			case errors.Is(err, ErrTimeout):
				continue
			case errors.Is(err, ErrClosed):
				o := d.Outcome()
				if o.Err == nil {
					o.Err = domain.ExtractionError("analysis ended without completing", nil)
				}
				return o
			}

			done := d.Apply(msg)
			sink.Render(d, msg)
			if done {
				return d.Outcome()
			}
		}
	}()

	d.Processing = false
	sink.Refresh(d)
	return out
}
