package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"biopaper-tutor/internal/domain"
)

// ConversationRepository filtra siempre por id y dueño: una conversación de
// otro usuario es indistinguible de una inexistente (domain.ErrNotFound).
type ConversationRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	Create(ctx context.Context, conv domain.Conversation) (domain.Conversation, error)
	Get(ctx context.Context, id, userID string) (domain.Conversation, error)
	Delete(ctx context.Context, id, userID string) error
	ReplaceMessages(ctx context.Context, id, userID string, messages []domain.Message, updatedAt time.Time) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func parseUUID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", domain.ErrInvalidID
	}
	return parsed.String(), nil
}

func (r *PgConversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	const query = `
		SELECT id::text, user_id, title, messages, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := make([]domain.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *PgConversationRepository) Create(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	const query = `
		INSERT INTO conversations (id, user_id, title, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	payload, err := json.Marshal(conv.Messages)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("marshal messages: %w", err)
	}
	_, err = r.pool.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		payload,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (r *PgConversationRepository) Get(ctx context.Context, id, userID string) (domain.Conversation, error) {
	const query = `
		SELECT id::text, user_id, title, messages, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`
	convID, err := parseUUID(id)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv, err := scanConversation(r.pool.QueryRow(ctx, query, convID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, domain.ErrNotFound
	}
	return conv, err
}

func (r *PgConversationRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM conversations WHERE id = $1 AND user_id = $2`
	convID, err := parseUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, query, convID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgConversationRepository) ReplaceMessages(ctx context.Context, id, userID string, messages []domain.Message, updatedAt time.Time) error {
	const query = `
		UPDATE conversations
		SET messages = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`
	convID, err := parseUUID(id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, convID, userID, payload, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var (
		conv    domain.Conversation
		payload []byte
	)
	if err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&payload,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return domain.Conversation{}, err
	}
	conv.Messages = []domain.Message{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &conv.Messages); err != nil {
			return domain.Conversation{}, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	return conv, nil
}
