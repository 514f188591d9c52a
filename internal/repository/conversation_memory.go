package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"biopaper-tutor/internal/domain"
)

// MemoryConversationRepository sirve para desarrollo local y tests.
type MemoryConversationRepository struct {
	mu    sync.Mutex
	items map[string]domain.Conversation
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		items: make(map[string]domain.Conversation),
	}
}

func (r *MemoryConversationRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Conversation, 0)
	for _, conv := range r.items {
		if conv.UserID == userID {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryConversationRepository) Create(_ context.Context, conv domain.Conversation) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	r.items[conv.ID] = cloneConversation(conv)
	return conv, nil
}

func (r *MemoryConversationRepository) Get(_ context.Context, id, userID string) (domain.Conversation, error) {
	if _, err := parseUUID(id); err != nil {
		return domain.Conversation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.items[id]
	if !ok || conv.UserID != userID {
		return domain.Conversation{}, domain.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *MemoryConversationRepository) Delete(_ context.Context, id, userID string) error {
	if _, err := parseUUID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.items[id]
	if !ok || conv.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryConversationRepository) ReplaceMessages(_ context.Context, id, userID string, messages []domain.Message, updatedAt time.Time) error {
	if _, err := parseUUID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.items[id]
	if !ok || conv.UserID != userID {
		return domain.ErrNotFound
	}
	conv.Messages = append([]domain.Message(nil), messages...)
	conv.UpdatedAt = updatedAt
	r.items[id] = conv
	return nil
}

func cloneConversation(conv domain.Conversation) domain.Conversation {
	conv.Messages = append([]domain.Message{}, conv.Messages...)
	return conv
}
