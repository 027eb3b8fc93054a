// Package stream owns one deployment run's poll loop and the push stream that
// relays its progress to a client.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// Sink receives the ordered events of one streaming session
type Sink interface {
	// Send delivers one event. An error means the client is gone.
	Send(ev models.Event) error

	// Close ends the stream. Closing an already-closed sink is a no-op.
	Close()
}

// SSESink delivers session events as named Server-Sent Events over an HTTP
// response
type SSESink struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	logger  *logger.Logger
	closed  bool
}

// NewSSESink builds a sink over a response writer. The writer must support
// flushing for events to reach the client without buffering.
func NewSSESink(w http.ResponseWriter, log *logger.Logger) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &SSESink{writer: w, flusher: flusher, logger: log}, nil
}

// Send implements Sink.Send
func (s *SSESink) Send(ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.EOF
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Name(), err)
	}
	if _, err := fmt.Fprintf(s.writer, "event: %s\ndata: %s\n\n", ev.Name(), data); err != nil {
		s.closed = true
		s.logger.Warn("sse send failed", "event", ev.Name(), "error", err)
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close implements Sink.Close
func (s *SSESink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
