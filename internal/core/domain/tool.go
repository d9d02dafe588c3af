package domain

import (
	"time"
)

// ToolUsage records a single invocation of a support tool
// (knowledge-base lookup, escalation, refund workflow, ...).
type ToolUsage struct {
	ID        string    `json:"id"         db:"id"`
	TicketID  string    `json:"ticket_id"  db:"ticket_id"`
	ToolName  string    `json:"tool_name"  db:"tool_name"`
	Success   bool      `json:"success"    db:"success"`
	LatencyMs int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ToolStats is an aggregate over ToolUsage rows for one tool.
type ToolStats struct {
	ToolName     string  `json:"tool_name"      db:"tool_name"`
	TotalCalls   int64   `json:"total_calls"    db:"total_calls"`
	SuccessRate  float64 `json:"success_rate"   db:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms" db:"avg_latency_ms"`
}
