package llm

import (
	"context"
	"fmt"
	"io"

	"biopaper-tutor/internal/domain"
)

// Streamer abre un stream de completions. El caller lee el body crudo
// (frames "data: <json>" terminados en "data: [DONE]") y debe cerrarlo.
type Streamer interface {
	StreamChat(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error)
}

// UpstreamStatusError captura respuestas no-2xx del servicio de completions.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("llm http error: status=%d", e.StatusCode)
}
