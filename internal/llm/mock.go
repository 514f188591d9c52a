package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"biopaper-tutor/internal/domain"
)

const mockChunkRunes = 10

// MockClient permite desarrollar y testear sin llamar a un LLM real. Emite la
// respuesta en frames con el mismo formato que el upstream.
type MockClient struct {
	// Response fija; si está vacía se arma una respuesta de tutor con el último mensaje.
	Response string
	Err      error
	// Delay entre frames, cero en tests.
	Delay time.Duration
}

func (m *MockClient) StreamChat(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	text := m.Response
	if text == "" {
		text = mockTutorReply(messages)
	}

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		for _, chunk := range splitRunes(text, mockChunkRunes) {
			if err := writeMockFrame(pw, chunk); err != nil {
				return
			}
			if m.Delay > 0 {
				select {
				case <-ctx.Done():
					pw.CloseWithError(ctx.Err())
					return
				case <-time.After(m.Delay):
				}
			}
		}
		_, _ = io.WriteString(pw, "data: [DONE]\n\n")
	}()
	return pr, nil
}

func writeMockFrame(w io.Writer, chunk string) error {
	frame := openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}},
		},
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func splitRunes(text string, size int) []string {
	var chunks []string
	for len(text) > 0 {
		n, i := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		chunks = append(chunks, text[:i])
		text = text[i:]
	}
	return chunks
}

func mockTutorReply(messages []domain.ChatMessage) string {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return fmt.Sprintf(`Hi! I'm your biology paper tutor. You asked: "%s".

**Knowledge Card: The cell**
- The cell is the basic unit of life
- Every cell carries DNA, its genetic information
- Cells reproduce by dividing

Which concept would you like to explore next?`, last)
}
