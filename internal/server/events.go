package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spherical/doc-assistant/internal/domain"
	"github.com/spherical/doc-assistant/internal/relay"
)

// eventSink writes each relayed message as one Server-Sent Event named after
// the message kind.
type eventSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *domain.Logger
	gone    bool
}

func newEventSink(w http.ResponseWriter, flusher http.Flusher, logger *domain.Logger) *eventSink {
	return &eventSink{w: w, flusher: flusher, logger: logger}
}

// Render implements relay.Sink.
func (s *eventSink) Render(d *relay.Display, msg domain.Message) {
	var payload any
	switch m := msg.(type) {
	case domain.Error:
		payload = map[string]string{"error": m.Text()}
	case domain.Complete:
		payload = map[string]any{"summary": d.Outcome().Summary, "ok": d.Err == nil}
	default:
		payload = m
	}
	s.send(msg.Kind(), payload)
}

// Refresh implements relay.Sink.
func (s *eventSink) Refresh(*relay.Display) {}

func (s *eventSink) send(kind domain.MessageKind, payload any) {
	if s.gone {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", string(kind)).Msg("Failed to encode event")
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		// Keep relaying so the session still gets the outcome.
		s.logger.Warn().Err(err).Msg("Client disconnected from event stream")
		s.gone = true
		return
	}
	s.flusher.Flush()
}
