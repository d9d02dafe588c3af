package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/recall/internal/core/domain"
)

// MessageRepo implements storage.MessageRepository using PostgreSQL.
type MessageRepo struct {
	db *DB
}

// NewMessageRepo creates a new PostgreSQL message repository.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Save appends a message to a ticket conversation.
func (r *MessageRepo) Save(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, ticket_id, user_id, sender, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.TicketID, msg.UserID, msg.Sender, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", classify(err))
	}
	return nil
}

// ListByTicket retrieves the most recent messages for a ticket, oldest
// first.
func (r *MessageRepo) ListByTicket(
	ctx context.Context,
	ticketID string,
	limit int,
) ([]*domain.ChatMessage, error) {
	var rows []*domain.ChatMessage
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, ticket_id, user_id, sender, content, created_at
		FROM (
			SELECT * FROM chat_messages
			WHERE ticket_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`,
		ticketID, limit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", classify(err))
	}
	return rows, nil
}
