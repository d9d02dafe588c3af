package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/recall/internal/core/domain"
	"github.com/vietddude/recall/internal/infra/storage"
)

// TicketRepo implements storage.TicketRepository using PostgreSQL.
type TicketRepo struct {
	db *DB
}

// NewTicketRepo creates a new PostgreSQL ticket repository.
func NewTicketRepo(db *DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// Save inserts or updates a ticket.
func (r *TicketRepo) Save(ctx context.Context, ticket *domain.Ticket) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (id, user_id, subject, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    priority = EXCLUDED.priority,
		    updated_at = EXCLUDED.updated_at`,
		ticket.ID, ticket.UserID, ticket.Subject, ticket.Status,
		ticket.Priority, ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save ticket: %w", classify(err))
	}
	return nil
}

// GetByID retrieves a ticket by id.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT id, user_id, subject, status, priority, created_at, updated_at
		FROM tickets
		WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", classify(err))
	}
	return &ticket, nil
}

// ListByStatus retrieves tickets in a given status, newest first.
func (r *TicketRepo) ListByStatus(
	ctx context.Context,
	status domain.TicketStatus,
	limit int,
) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT id, user_id, subject, status, priority, created_at, updated_at
		FROM tickets
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", classify(err))
	}
	return tickets, nil
}
