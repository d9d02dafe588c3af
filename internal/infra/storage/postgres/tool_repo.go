package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/recall/internal/core/domain"
)

// ToolUsageRepo implements storage.ToolUsageRepository using PostgreSQL.
type ToolUsageRepo struct {
	db *DB
}

// NewToolUsageRepo creates a new PostgreSQL tool usage repository.
func NewToolUsageRepo(db *DB) *ToolUsageRepo {
	return &ToolUsageRepo{db: db}
}

// Record stores a single tool invocation.
func (r *ToolUsageRepo) Record(ctx context.Context, usage *domain.ToolUsage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_usage (id, ticket_id, tool_name, success, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.ID, usage.TicketID, usage.ToolName, usage.Success,
		usage.LatencyMs, usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record tool usage: %w", classify(err))
	}
	return nil
}

// Stats aggregates usage per tool.
func (r *ToolUsageRepo) Stats(ctx context.Context) ([]*domain.ToolStats, error) {
	var stats []*domain.ToolStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT tool_name,
		       COUNT(*) AS total_calls,
		       AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END) AS success_rate,
		       AVG(latency_ms) AS avg_latency_ms
		FROM tool_usage
		GROUP BY tool_name
		ORDER BY total_calls DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tool usage: %w", classify(err))
	}
	return stats, nil
}
