package storage

import (
	"context"
	"errors"

	"github.com/vietddude/recall/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("record not found")
)

// UserRepository handles user account storage
type UserRepository interface {
	// Save inserts or updates a user
	Save(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// TicketRepository handles support ticket storage
type TicketRepository interface {
	// Save inserts or updates a ticket
	Save(ctx context.Context, ticket *domain.Ticket) error

	// GetByID retrieves a ticket by id
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// ListByStatus retrieves tickets in a given status, newest first
	ListByStatus(ctx context.Context, status domain.TicketStatus, limit int) ([]*domain.Ticket, error)
}

// MessageRepository handles chat message storage
type MessageRepository interface {
	// Save appends a message to a ticket conversation
	Save(ctx context.Context, msg *domain.ChatMessage) error

	// ListByTicket retrieves the most recent messages for a ticket,
	// oldest first
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]*domain.ChatMessage, error)
}

// ToolUsageRepository handles tool usage analytics storage
type ToolUsageRepository interface {
	// Record stores a single tool invocation
	Record(ctx context.Context, usage *domain.ToolUsage) error

	// Stats aggregates usage per tool
	Stats(ctx context.Context) ([]*domain.ToolStats, error)
}
