package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// SSE event names used by /join/stream.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
	EventComplete = "complete"
)

// DefaultSSEKeepAlive is how often an idle stream gets a comment line.
// A meeting can wait on its end signal for an hour without a progress event.
const DefaultSSEKeepAlive = 15 * time.Second

// SSEWriter writes Server-Sent Events. It is safe for concurrent use.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter sends the stream headers and returns a writer for the events.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with data encoded as JSON.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", event, jsonData))
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(body any) {
	s.WriteEvent(EventError, body) //nolint:errcheck
}

// WriteComplete sends the final event and closes the writer; later writes are dropped.
func (s *SSEWriter) WriteComplete(runID, status string) {
	s.WriteEvent(EventComplete, map[string]string{ //nolint:errcheck
		"runId":  runID,
		"status": status,
	})
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// KeepAlive writes a comment line every interval until the returned stop func is called.
func (s *SSEWriter) KeepAlive(interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.write(": keep-alive\n\n"); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (s *SSEWriter) write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream already completed")
	}
	if _, err := fmt.Fprint(s.w, chunk); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
