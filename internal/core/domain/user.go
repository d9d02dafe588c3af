package domain

import (
	"time"
)

// User represents a support-platform account (customer or agent).
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	Name      string    `json:"name"       db:"name"`
	Role      UserRole  `json:"role"       db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAgent    UserRole = "agent"
	UserRoleAdmin    UserRole = "admin"
)
