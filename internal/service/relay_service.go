package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"biopaper-tutor/internal/domain"
	"biopaper-tutor/internal/llm"
	"biopaper-tutor/internal/observability"
)

const (
	sseDataPrefix = "data:"
	sseDoneMarker = "[DONE]"
)

var (
	ErrRelayNotConfigured = errors.New("relay service not configured")
	ErrUpstreamTruncated  = errors.New("upstream stream ended before [DONE]")
)

// EventWriter recibe los frames ya re-encodeados hacia el cliente.
type EventWriter interface {
	WriteContent(delta string) error
	WriteError(message string) error
}

// ChatRequest es el cuerpo de POST /api/chat.
type ChatRequest struct {
	ConversationID string               `json:"conversationId"`
	Messages       []domain.ChatMessage `json:"messages"`
}

// RelayService reenvía el historial al servicio de completions y guarda el
// intercambio completo cuando el stream termina con [DONE].
type RelayService struct {
	logger        *zap.Logger
	streamer      llm.Streamer
	conversations *ConversationService
	metrics       *observability.Metrics
	systemPrompt  string
}

func NewRelayService(logger *zap.Logger, streamer llm.Streamer, conversations *ConversationService, metrics *observability.Metrics) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		logger:        logger,
		streamer:      streamer,
		conversations: conversations,
		metrics:       metrics,
		systemPrompt:  tutorSystemPrompt,
	}
}

// ReplyStream es un stream upstream abierto, pendiente de bombear.
type ReplyStream struct {
	relay          *RelayService
	body           io.ReadCloser
	userID         string
	conversationID string
	prior          []domain.Message
	started        time.Time
}

// Start valida la petición y abre el stream upstream. Todo error aquí ocurre
// antes de enviar headers, así que el handler puede responder con JSON.
func (s *RelayService) Start(ctx context.Context, user domain.User, req ChatRequest) (*ReplyStream, error) {
	if s == nil || s.streamer == nil || s.conversations == nil {
		return nil, ErrRelayNotConfigured
	}
	userID, err := requireUser(user.ID)
	if err != nil {
		return nil, err
	}
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		return nil, domain.Validation("conversationId is required")
	}
	if len(req.Messages) == 0 {
		return nil, domain.Validation("messages must not be empty")
	}

	prior := make([]domain.Message, 0, len(req.Messages))
	upstream := make([]domain.ChatMessage, 0, len(req.Messages)+1)
	upstream = append(upstream, domain.ChatMessage{Role: domain.RoleSystem, Content: s.systemPrompt})
	for i, msg := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role != domain.RoleUser && role != domain.RoleAssistant {
			return nil, domain.Validation(fmt.Sprintf("messages[%d]: role must be user or assistant", i))
		}
		prior = append(prior, domain.Message{Role: role, Content: msg.Content})
		upstream = append(upstream, domain.ChatMessage{Role: role, Content: msg.Content})
	}

	conv, err := s.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	prior = carryTimestamps(conv.Messages, prior)

	body, err := s.streamer.StreamChat(ctx, upstream)
	if err != nil {
		var statusErr *llm.UpstreamStatusError
		if errors.As(err, &statusErr) {
			s.logger.Warn("completion service rejected request",
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body),
			)
			return nil, &domain.Error{
				Kind:    domain.KindUpstream,
				Message: fmt.Sprintf("completion service error: status %d", statusErr.StatusCode),
				Status:  statusErr.StatusCode,
				Err:     err,
			}
		}
		s.logger.Error("completion service unavailable", zap.Error(err))
		return nil, domain.NewError(domain.KindUpstream, "completion service unavailable", err)
	}

	s.metrics.StreamStarted()
	return &ReplyStream{
		relay:          s,
		body:           body,
		userID:         userID,
		conversationID: conversationID,
		prior:          prior,
		started:        time.Now(),
	}, nil
}

// Close libera el body upstream. Es seguro llamarlo después de Pump.
func (rs *ReplyStream) Close() error {
	if rs == nil || rs.body == nil {
		return nil
	}
	return rs.body.Close()
}

// Pump lee frames "data: <json>" y emite un frame por cada delta no vacío.
// Con [DONE] persiste el intercambio y retorna nil. Si el upstream falla o
// termina sin [DONE] se emite un frame de error y no se persiste nada. Si el
// cliente se desconecta se retorna sin escribir más.
func (rs *ReplyStream) Pump(ctx context.Context, w EventWriter) error {
	s := rs.relay
	logger := s.logger.With(
		zap.String("conversation_id", rs.conversationID),
		zap.String("user_id", rs.userID),
	)
	defer rs.Close()

	var reply strings.Builder
	reader := bufio.NewReader(rs.body)
	for {
		line, readErr := reader.ReadString('\n')
		if payload, ok := framePayload(line); ok {
			if payload == sseDoneMarker {
				return rs.finish(ctx, w, logger, reply.String())
			}
			delta, err := decodeDelta(payload)
			if err != nil {
				s.metrics.FrameMalformed()
				logger.Debug("skipping malformed upstream frame", zap.Error(err))
			} else if delta != "" {
				reply.WriteString(delta)
				if err := w.WriteContent(delta); err != nil {
					s.metrics.StreamFinished(observability.StatusClientCancelled, rs.started)
					return fmt.Errorf("write delta: %w", err)
				}
				s.metrics.DeltaForwarded()
			}
		}
		if readErr == nil {
			continue
		}

		if ctx.Err() != nil {
			s.metrics.StreamFinished(observability.StatusClientCancelled, rs.started)
			logger.Info("client disconnected during stream")
			return ctx.Err()
		}
		if errors.Is(readErr, io.EOF) {
			readErr = ErrUpstreamTruncated
		}
		logger.Error("upstream stream failed", zap.Error(readErr))
		s.metrics.StreamFinished(observability.StatusUpstreamError, rs.started)
		_ = w.WriteError("completion stream interrupted")
		return readErr
	}
}

func (rs *ReplyStream) finish(ctx context.Context, w EventWriter, logger *zap.Logger, reply string) error {
	s := rs.relay
	// La respuesta ya fue entregada: se guarda aunque el cliente corte ahora.
	saveCtx := context.WithoutCancel(ctx)
	if _, err := s.conversations.AppendExchange(saveCtx, rs.conversationID, rs.userID, rs.prior, reply); err != nil {
		logger.Error("failed to persist exchange", zap.Error(err))
		s.metrics.StreamFinished(observability.StatusPersistError, rs.started)
		_ = w.WriteError("failed to save conversation")
		return err
	}
	s.metrics.StreamFinished(observability.StatusSuccess, rs.started)
	logger.Info("stream completed", zap.Int("reply_length", len(reply)))
	return nil
}

// framePayload extrae el contenido tras "data:"; otras líneas (comentarios,
// event:, vacías) no son frames de datos.
func framePayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, sseDataPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(sseDataPrefix):]), true
}

func decodeDelta(payload string) (string, error) {
	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
