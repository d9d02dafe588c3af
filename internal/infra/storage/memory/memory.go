package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/recall/internal/core/domain"
	"github.com/vietddude/recall/internal/infra/storage"
)

// MemoryStorage backs the repositories when no database is configured.
type MemoryStorage struct {
	users    map[string]*domain.User
	tickets  map[string]*domain.Ticket
	messages map[string][]*domain.ChatMessage
	usage    []*domain.ToolUsage
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]*domain.User),
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]*domain.ChatMessage),
	}
}

// -----------------------------------------------------------------------------
// User Repository
// -----------------------------------------------------------------------------

type UserRepo struct {
	store *MemoryStorage
}

func NewUserRepo(store *MemoryStorage) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.users[user.ID] = user
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

// -----------------------------------------------------------------------------
// Ticket Repository
// -----------------------------------------------------------------------------

type TicketRepo struct {
	store *MemoryStorage
}

func NewTicketRepo(store *MemoryStorage) *TicketRepo {
	return &TicketRepo{store: store}
}

func (r *TicketRepo) Save(ctx context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.tickets[ticket.ID] = ticket
	return nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ticket, nil
}

func (r *TicketRepo) ListByStatus(
	ctx context.Context,
	status domain.TicketStatus,
	limit int,
) ([]*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var tickets []*domain.Ticket
	for _, t := range r.store.tickets {
		if t.Status == status {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt)
	})
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

// -----------------------------------------------------------------------------
// Message Repository
// -----------------------------------------------------------------------------

type MessageRepo struct {
	store *MemoryStorage
}

func NewMessageRepo(store *MemoryStorage) *MessageRepo {
	return &MessageRepo{store: store}
}

func (r *MessageRepo) Save(ctx context.Context, msg *domain.ChatMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.messages[msg.TicketID] = append(r.store.messages[msg.TicketID], msg)
	return nil
}

func (r *MessageRepo) ListByTicket(
	ctx context.Context,
	ticketID string,
	limit int,
) ([]*domain.ChatMessage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	msgs := r.store.messages[ticketID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// -----------------------------------------------------------------------------
// Tool Usage Repository
// -----------------------------------------------------------------------------

type ToolUsageRepo struct {
	store *MemoryStorage
}

func NewToolUsageRepo(store *MemoryStorage) *ToolUsageRepo {
	return &ToolUsageRepo{store: store}
}

func (r *ToolUsageRepo) Record(ctx context.Context, usage *domain.ToolUsage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.usage = append(r.store.usage, usage)
	return nil
}

func (r *ToolUsageRepo) Stats(ctx context.Context) ([]*domain.ToolStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	type agg struct {
		calls      int64
		successes  int64
		latencySum int64
	}
	byTool := make(map[string]*agg)
	for _, u := range r.store.usage {
		a, ok := byTool[u.ToolName]
		if !ok {
			a = &agg{}
			byTool[u.ToolName] = a
		}
		a.calls++
		if u.Success {
			a.successes++
		}
		a.latencySum += u.LatencyMs
	}

	var stats []*domain.ToolStats
	for name, a := range byTool {
		stats = append(stats, &domain.ToolStats{
			ToolName:     name,
			TotalCalls:   a.calls,
			SuccessRate:  float64(a.successes) / float64(a.calls),
			AvgLatencyMs: float64(a.latencySum) / float64(a.calls),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TotalCalls > stats[j].TotalCalls
	})
	return stats, nil
}
