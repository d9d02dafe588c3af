// Package memory implements the support-conversation memory service:
// message storage, context retrieval, and tool analytics, with all
// dependency access routed through the resilience layer.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/recall/internal/core/domain"
	"github.com/vietddude/recall/internal/infra/insights"
	"github.com/vietddude/recall/internal/infra/storage"
	"github.com/vietddude/recall/internal/resilience"
)

// DefaultContextLimit bounds how many recent messages make up a
// conversation context.
const DefaultContextLimit = 50

// ContextCache caches recent conversations per ticket.
type ContextCache interface {
	GetContext(ctx context.Context, ticketID string) ([]*domain.ChatMessage, bool, error)
	StoreContext(ctx context.Context, ticketID string, messages []*domain.ChatMessage) error
	InvalidateContext(ctx context.Context, ticketID string) error
}

// SentimentScorer analyzes a conversation via the external API.
type SentimentScorer interface {
	Score(ctx context.Context, messages []*domain.ChatMessage) (*insights.Sentiment, error)
}

// Service is the application layer over the durable store and the
// context cache. Every dependency call goes through the resilience
// handler's circuit breakers, and failures are degraded according to the
// fallback strategy the handler selects.
type Service struct {
	messages     storage.MessageRepository
	tickets      storage.TicketRepository
	users        storage.UserRepository
	tools        storage.ToolUsageRepository
	cache        ContextCache    // nil when no cache is configured
	insights     SentimentScorer // nil when sentiment analysis is disabled
	handler      *resilience.Handler
	contextLimit int
	maxRetries   int
	log          *slog.Logger
}

// Config holds the service dependencies.
type Config struct {
	Messages     storage.MessageRepository
	Tickets      storage.TicketRepository
	Users        storage.UserRepository
	Tools        storage.ToolUsageRepository
	Cache        ContextCache
	Insights     SentimentScorer
	Handler      *resilience.Handler
	ContextLimit int
	MaxRetries   int
}

// NewService creates a memory service.
func NewService(cfg Config) *Service {
	limit := cfg.ContextLimit
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = resilience.DefaultMaxRetries
	}
	handler := cfg.Handler
	if handler == nil {
		handler = resilience.NewHandler()
	}
	return &Service{
		messages:     cfg.Messages,
		tickets:      cfg.Tickets,
		users:        cfg.Users,
		tools:        cfg.Tools,
		cache:        cfg.Cache,
		insights:     cfg.Insights,
		handler:      handler,
		contextLimit: limit,
		maxRetries:   retries,
		log:          slog.Default(),
	}
}

// Handler exposes the resilience handler for health reporting.
func (s *Service) Handler() *resilience.Handler {
	return s.handler
}

// StoreMessage persists a chat message. Transient database failures are
// retried with backoff; the ticket's cached context is invalidated on
// success.
func (s *Service) StoreMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)
	save := func(ctx context.Context) error {
		return s.messages.Save(ctx, msg)
	}

	err := db.Call(ctx, save)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return fmt.Errorf("message store unavailable: %w", err)
		}
		strategy := s.handler.HandleDatabaseError(err, "store_message")
		if strategy != resilience.FallbackRetryWithBackoff {
			return fmt.Errorf("failed to store message: %w", err)
		}
		err = s.handler.RetryOperation(ctx, "store_message", s.maxRetries,
			func(ctx context.Context) error {
				return db.Call(ctx, save)
			})
		if err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
	}

	s.invalidateContext(ctx, msg.TicketID)
	return nil
}

// Context returns the recent conversation for a ticket. The cache is
// consulted first; a cache failure degrades to the database, and a
// database failure degrades to stale cache or an empty context depending
// on the handler's strategy.
func (s *Service) Context(ctx context.Context, ticketID string) ([]*domain.ChatMessage, error) {
	if msgs, ok := s.contextFromCache(ctx, ticketID); ok {
		return msgs, nil
	}

	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)
	msgs, err := resilience.Call(ctx, db, func(ctx context.Context) ([]*domain.ChatMessage, error) {
		return s.messages.ListByTicket(ctx, ticketID, s.contextLimit)
	})
	if err != nil {
		return s.degradedContext(ctx, ticketID, err)
	}

	s.backfillCache(ctx, ticketID, msgs)
	return msgs, nil
}

// contextFromCache reads through the cache breaker. Any failure is
// handled and reported as a miss so the caller falls through to the
// database.
func (s *Service) contextFromCache(ctx context.Context, ticketID string) ([]*domain.ChatMessage, bool) {
	if s.cache == nil {
		return nil, false
	}

	cb := s.handler.CircuitBreaker(resilience.BreakerCache)
	var (
		msgs []*domain.ChatMessage
		hit  bool
	)
	err := cb.Call(ctx, func(ctx context.Context) error {
		var err error
		msgs, hit, err = s.cache.GetContext(ctx, ticketID)
		return err
	})
	if err != nil {
		if !resilience.IsCircuitOpen(err) {
			s.handler.HandleCacheError(err, "get_context")
		}
		return nil, false
	}
	return msgs, hit
}

// degradedContext applies the fallback strategy for a failed context
// load.
func (s *Service) degradedContext(
	ctx context.Context,
	ticketID string,
	err error,
) ([]*domain.ChatMessage, error) {
	if resilience.IsCircuitOpen(err) {
		// The breaker already refused the call; serve whatever the cache
		// still holds.
		if msgs, _, cacheErr := s.cacheGet(ctx, ticketID); cacheErr == nil && msgs != nil {
			return msgs, nil
		}
		return []*domain.ChatMessage{}, nil
	}

	switch s.handler.HandleDatabaseError(err, "get_context") {
	case resilience.FallbackUseCache:
		if msgs, hit, cacheErr := s.cacheGet(ctx, ticketID); cacheErr == nil && hit {
			s.log.Info("Serving stale context from cache", "ticket_id", ticketID)
			return msgs, nil
		}
		return []*domain.ChatMessage{}, nil
	case resilience.FallbackRetryWithBackoff:
		msgs, retryErr := resilience.Retry(ctx, s.handler, "get_context", s.maxRetries,
			func(ctx context.Context) ([]*domain.ChatMessage, error) {
				return s.messages.ListByTicket(ctx, ticketID, s.contextLimit)
			})
		if retryErr != nil {
			return []*domain.ChatMessage{}, nil
		}
		return msgs, nil
	default:
		return []*domain.ChatMessage{}, nil
	}
}

func (s *Service) cacheGet(ctx context.Context, ticketID string) ([]*domain.ChatMessage, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	return s.cache.GetContext(ctx, ticketID)
}

func (s *Service) backfillCache(ctx context.Context, ticketID string, msgs []*domain.ChatMessage) {
	if s.cache == nil || len(msgs) == 0 {
		return
	}
	cb := s.handler.CircuitBreaker(resilience.BreakerCache)
	err := cb.Call(ctx, func(ctx context.Context) error {
		return s.cache.StoreContext(ctx, ticketID, msgs)
	})
	if err != nil && !resilience.IsCircuitOpen(err) {
		s.handler.HandleCacheError(err, "backfill_context")
	}
}

func (s *Service) invalidateContext(ctx context.Context, ticketID string) {
	if s.cache == nil {
		return
	}
	cb := s.handler.CircuitBreaker(resilience.BreakerCache)
	err := cb.Call(ctx, func(ctx context.Context) error {
		return s.cache.InvalidateContext(ctx, ticketID)
	})
	if err != nil && !resilience.IsCircuitOpen(err) {
		s.handler.HandleCacheError(err, "invalidate_context")
	}
}

// RecordToolUsage stores one tool invocation. Analytics are best-effort:
// failures degrade to a no-op.
func (s *Service) RecordToolUsage(ctx context.Context, usage *domain.ToolUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.New().String()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now()
	}

	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)
	err := db.Call(ctx, func(ctx context.Context) error {
		return s.tools.Record(ctx, usage)
	})
	if err != nil {
		if !resilience.IsCircuitOpen(err) {
			s.handler.HandleToolAnalyticsError(err, usage.ToolName)
		}
		s.log.Warn("Dropped tool usage record", "tool", usage.ToolName, "error", err)
	}
	return nil
}

// ToolAnalytics aggregates usage per tool. Failures degrade to empty
// stats.
func (s *Service) ToolAnalytics(ctx context.Context) ([]*domain.ToolStats, error) {
	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)
	stats, err := resilience.Call(ctx, db, func(ctx context.Context) ([]*domain.ToolStats, error) {
		return s.tools.Stats(ctx)
	})
	if err != nil {
		if !resilience.IsCircuitOpen(err) {
			s.handler.HandleToolAnalyticsError(err, "all")
		}
		return []*domain.ToolStats{}, nil
	}
	return stats, nil
}

// OpenTickets lists open tickets for the dashboard. Failures degrade per
// the handler's strategy; degraded results are empty.
func (s *Service) OpenTickets(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	r := resilience.Guard(s.handler, "list_open_tickets", func() ([]*domain.Ticket, error) {
		db := s.handler.CircuitBreaker(resilience.BreakerDatabase)
		return resilience.Call(ctx, db, func(ctx context.Context) ([]*domain.Ticket, error) {
			return s.tickets.ListByStatus(ctx, domain.TicketStatusOpen, limit)
		})
	})
	if r.Degraded() {
		return []*domain.Ticket{}, nil
	}
	return r.Value, r.Err
}

// ConversationSentiment scores the ticket's recent conversation via the
// external analysis API. The call goes through the external_api breaker
// and degrades to a neutral score when the API is unavailable.
func (s *Service) ConversationSentiment(ctx context.Context, ticketID string) (insights.Sentiment, error) {
	if s.insights == nil {
		return insights.Neutral, nil
	}

	msgs, err := s.Context(ctx, ticketID)
	if err != nil || len(msgs) == 0 {
		return insights.Neutral, nil
	}

	api := s.handler.CircuitBreaker(resilience.BreakerExternalAPI)
	result, err := resilience.Call(ctx, api, func(ctx context.Context) (*insights.Sentiment, error) {
		return s.insights.Score(ctx, msgs)
	})
	if err != nil {
		if !resilience.IsCircuitOpen(err) {
			s.handler.HandleToolAnalyticsError(err, "sentiment")
		}
		s.log.Warn("Sentiment analysis unavailable, using default", "ticket_id", ticketID, "error", err)
		return insights.Neutral, nil
	}
	return *result, nil
}

// Ticket retrieves one ticket by id. A missing ticket is not a
// dependency failure and must not trip the breaker.
func (s *Service) Ticket(ctx context.Context, id string) (*domain.Ticket, error) {
	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)

	var notFound bool
	ticket, err := resilience.Call(ctx, db, func(ctx context.Context) (*domain.Ticket, error) {
		t, err := s.tickets.GetByID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			notFound = true
			return nil, nil
		}
		return t, err
	})
	if notFound {
		return nil, storage.ErrNotFound
	}
	return ticket, err
}

// TicketOwner resolves the user who opened a ticket. A missing ticket or
// user surfaces as ErrNotFound without counting against the breaker.
func (s *Service) TicketOwner(ctx context.Context, ticketID string) (*domain.User, error) {
	ticket, err := s.Ticket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	db := s.handler.CircuitBreaker(resilience.BreakerDatabase)

	var notFound bool
	user, err := resilience.Call(ctx, db, func(ctx context.Context) (*domain.User, error) {
		u, err := s.users.GetByID(ctx, ticket.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			notFound = true
			return nil, nil
		}
		return u, err
	})
	if notFound {
		return nil, storage.ErrNotFound
	}
	return user, err
}
