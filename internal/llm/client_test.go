package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"biopaper-tutor/internal/domain"
)

func TestHTTPClientStreamChat_RequestShape(t *testing.T) {
	var (
		got     openai.ChatCompletionRequest
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{
		BaseURL:     srv.URL + "/",
		APIKey:      "sk-test",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   4000,
		Referer:     "http://localhost:8080",
		Title:       "BioPaper Education Assistant",
		HTTPClient:  srv.Client(),
	}, nil)

	body, err := c.StreamChat(context.Background(), []domain.ChatMessage{
		{Role: "system", Content: "be a tutor"},
		{Role: "user", Content: "what is DNA?"},
	})
	require.NoError(t, err)
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, "data: [DONE]\n\n", string(raw))

	require.True(t, got.Stream)
	require.Equal(t, "test-model", got.Model)
	require.InDelta(t, 0.7, got.Temperature, 0.0001)
	require.Equal(t, 4000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "what is DNA?", got.Messages[1].Content)

	require.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	require.Equal(t, "http://localhost:8080", headers.Get("HTTP-Referer"))
	require.Equal(t, "BioPaper Education Assistant", headers.Get("X-Title"))
}

func TestHTTPClientStreamChat_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"message":"no credits"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "k", Model: "m", HTTPClient: srv.Client()}, nil)
	_, err := c.StreamChat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}})

	var se *UpstreamStatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusPaymentRequired, se.StatusCode)
	require.Contains(t, se.Body, "no credits")
}

func TestMockClientStreamChat_FramesAndDone(t *testing.T) {
	m := &MockClient{Response: "细胞是生命的基本单位，DNA 携带遗传信息。"}
	body, err := m.StreamChat(context.Background(), nil)
	require.NoError(t, err)
	defer body.Close()

	var (
		sb   strings.Builder
		done bool
	)
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			done = true
			break
		}
		var frame openai.ChatCompletionStreamResponse
		require.NoError(t, json.Unmarshal([]byte(data), &frame))
		sb.WriteString(frame.Choices[0].Delta.Content)
	}
	require.True(t, done)
	require.Equal(t, m.Response, sb.String())
}

func TestMockClientStreamChat_Error(t *testing.T) {
	m := &MockClient{Err: errors.New("boom")}
	_, err := m.StreamChat(context.Background(), nil)
	require.EqualError(t, err, "boom")
}

func TestSplitRunes(t *testing.T) {
	require.Equal(t, []string{"abc", "de"}, splitRunes("abcde", 3))
	require.Equal(t, []string{"细胞", "生命"}, splitRunes("细胞生命", 2))
	require.Nil(t, splitRunes("", 3))
}
