package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// sseWriter escribe frames "data: <json>\n\n" y hace flush tras cada uno.
type sseWriter struct {
	mu      sync.Mutex
	w       gin.ResponseWriter
	started bool
}

func newSSEWriter(w gin.ResponseWriter) *sseWriter {
	return &sseWriter{w: w}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseWriter) WriteContent(delta string) error {
	return s.writeFrame(struct {
		Content string `json:"content"`
	}{Content: delta})
}

func (s *sseWriter) WriteError(message string) error {
	return s.writeFrame(struct {
		Error string `json:"error"`
	}{Error: message})
}

func (s *sseWriter) writeFrame(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse frame: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
