package domain

import (
	"time"
)

// ChatMessage represents a single message in a ticket conversation.
type ChatMessage struct {
	ID        string        `json:"id"         db:"id"`
	TicketID  string        `json:"ticket_id"  db:"ticket_id"`
	UserID    string        `json:"user_id"    db:"user_id"`
	Sender    MessageSender `json:"sender"     db:"sender"`
	Content   string        `json:"content"    db:"content"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

type MessageSender string

const (
	SenderCustomer  MessageSender = "customer"
	SenderAgent     MessageSender = "agent"
	SenderAssistant MessageSender = "assistant"
)
