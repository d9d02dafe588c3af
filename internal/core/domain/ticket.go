package domain

import (
	"time"
)

// Ticket represents a support ticket owning a conversation thread.
type Ticket struct {
	ID        string         `json:"id"         db:"id"`
	UserID    string         `json:"user_id"    db:"user_id"`
	Subject   string         `json:"subject"    db:"subject"`
	Status    TicketStatus   `json:"status"     db:"status"`
	Priority  TicketPriority `json:"priority"   db:"priority"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)
