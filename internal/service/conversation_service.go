package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"biopaper-tutor/internal/domain"
	"biopaper-tutor/internal/repository"
)

const conversationListLimit = 50

var ErrConversationServiceNotConfigured = errors.New("conversation service not configured")

// ConversationService aplica las reglas de propiedad sobre el repositorio:
// toda operación recibe el id del usuario autenticado.
type ConversationService struct {
	logger *zap.Logger
	repo   repository.ConversationRepository
	now    func() time.Time
}

func NewConversationService(logger *zap.Logger, repo repository.ConversationRepository) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		logger: logger,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MessageView es un mensaje listo para el cliente, con tarjetas ya extraídas.
type MessageView struct {
	domain.Message
	Cards []domain.KnowledgeCard `json:"cards,omitempty"`
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if s == nil || s.repo == nil {
		return nil, ErrConversationServiceNotConfigured
	}
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	convs, err := s.repo.ListByUser(ctx, userID, conversationListLimit)
	if err != nil {
		return nil, storeError(err)
	}
	return convs, nil
}

func (s *ConversationService) Create(ctx context.Context, userID, title string) (domain.Conversation, error) {
	if s == nil || s.repo == nil {
		return domain.Conversation{}, ErrConversationServiceNotConfigured
	}
	userID, err := requireUser(userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	now := s.now()
	conv, err := s.repo.Create(ctx, domain.Conversation{
		UserID:    userID,
		Title:     title,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Conversation{}, storeError(err)
	}
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID), zap.String("user_id", userID))
	return conv, nil
}

func (s *ConversationService) Delete(ctx context.Context, id, userID string) error {
	if s == nil || s.repo == nil {
		return ErrConversationServiceNotConfigured
	}
	userID, err := requireUser(userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, strings.TrimSpace(id), userID); err != nil {
		return storeError(err)
	}
	return nil
}

// Get confirma que la conversación existe y es del usuario.
func (s *ConversationService) Get(ctx context.Context, id, userID string) (domain.Conversation, error) {
	if s == nil || s.repo == nil {
		return domain.Conversation{}, ErrConversationServiceNotConfigured
	}
	userID, err := requireUser(userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Conversation{}, domain.Validation("conversation id is required")
	}
	conv, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return domain.Conversation{}, storeError(err)
	}
	return conv, nil
}

func (s *ConversationService) GetMessages(ctx context.Context, id, userID string) ([]domain.Message, error) {
	conv, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		return []domain.Message{}, nil
	}
	return conv.Messages, nil
}

// GetMessageViews es GetMessages con las tarjetas de conocimiento adjuntas a
// los mensajes del asistente.
func (s *ConversationService) GetMessageViews(ctx context.Context, id, userID string) ([]MessageView, error) {
	messages, err := s.GetMessages(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		view := MessageView{Message: msg}
		if msg.Role == domain.RoleAssistant {
			if cards := ExtractKnowledgeCards(msg.Content); len(cards) > 0 {
				view.Cards = cards
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// AppendExchange reemplaza la lista de mensajes por prior + respuesta del
// asistente. La conversación debe existir; nunca se crea aquí.
func (s *ConversationService) AppendExchange(ctx context.Context, id, userID string, prior []domain.Message, reply string) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrConversationServiceNotConfigured
	}
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Validation("conversation id is required")
	}
	now := s.now()
	messages := make([]domain.Message, 0, len(prior)+1)
	for _, msg := range prior {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		messages = append(messages, msg)
	}
	messages = append(messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: now,
	})
	if err := s.repo.ReplaceMessages(ctx, id, userID, messages, now); err != nil {
		return nil, storeError(err)
	}
	s.logger.Info("conversation exchange saved",
		zap.String("conversation_id", id),
		zap.String("user_id", userID),
		zap.Int("message_count", len(messages)),
	)
	return messages, nil
}

// carryTimestamps copia el timestamp guardado a cada mensaje inicial de
// incoming que coincide en rol y contenido con el historial almacenado.
// Se corta en la primera divergencia; lo que sigue es nuevo.
func carryTimestamps(stored, incoming []domain.Message) []domain.Message {
	out := make([]domain.Message, len(incoming))
	copy(out, incoming)
	for i := range out {
		if i >= len(stored) {
			break
		}
		if out[i].Role != stored[i].Role || out[i].Content != stored[i].Content {
			break
		}
		out[i].Timestamp = stored[i].Timestamp
	}
	return out
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.NewError(domain.KindAuthorization, "unauthorized", domain.ErrUnauthorized)
	}
	return userID, nil
}

// storeError traduce los sentinels del repositorio a errores con mensaje para el cliente.
func storeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.NotFound("conversation not found")
	case errors.Is(err, domain.ErrInvalidID):
		return domain.NewError(domain.KindValidation, "invalid conversation id", err)
	default:
		return domain.NewError(domain.KindInternal, "storage failure", err)
	}
}
