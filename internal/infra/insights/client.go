// Package insights calls the external conversation-analysis API used to
// score sentiment for support conversations.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/recall/internal/core/domain"
)

// DefaultTimeout bounds a single scoring request.
const DefaultTimeout = 10 * time.Second

// Sentiment is the analysis result for one conversation.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Neutral is the default result when analysis is unavailable.
var Neutral = Sentiment{Label: "neutral", Score: 0.5}

// HealthStatus reports the client's recent request outcomes.
type HealthStatus struct {
	Available     bool          `json:"available"`
	ErrorRate     float64       `json:"error_rate"`
	Latency       time.Duration `json:"latency"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// Client is a JSON-over-HTTP client for the analysis service.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewClient creates a client for the given endpoint. A zero timeout
// falls back to DefaultTimeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

// Score analyzes the conversation and returns its sentiment.
func (c *Client) Score(ctx context.Context, messages []*domain.ChatMessage) (*Sentiment, error) {
	start := time.Now()

	type turn struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	turns := make([]turn, len(messages))
	for i, m := range messages {
		turns[i] = turn{Sender: string(m.Sender), Content: m.Content}
	}

	jsonData, err := json.Marshal(map[string]any{"messages": turns})
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/sentiment", bytes.NewReader(jsonData))
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("sentiment call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.recordFailure()
		return nil, fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var result Sentiment
	if err := json.Unmarshal(body, &result); err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	c.recordSuccess(time.Since(start))
	return &result, nil
}

// GetHealth returns the client's health status.
func (c *Client) GetHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Close cleans up idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successCount++
	c.requestCount++
	c.totalLatency += latency
	c.health.LastSuccessAt = time.Now()
	c.health.Available = true

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}
	if c.successCount > 0 {
		c.health.Latency = c.totalLatency / time.Duration(c.successCount)
	}
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.requestCount++
	c.health.LastFailureAt = time.Now()

	if c.requestCount > 0 {
		c.health.ErrorRate = float64(c.failureCount) / float64(c.requestCount)
	}

	if c.health.ErrorRate > 0.5 {
		c.health.Available = false
	}
}
