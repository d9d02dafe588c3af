package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/recall/internal/core/domain"
)

func TestScore_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sentiment" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("Authorization = %q, want Bearer key123", got)
		}

		var req struct {
			Messages []struct {
				Sender  string `json:"sender"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("Got %d messages, want 2", len(req.Messages))
		}

		json.NewEncoder(w).Encode(Sentiment{Label: "negative", Score: 0.12})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123", time.Second)
	defer c.Close()

	msgs := []*domain.ChatMessage{
		{Sender: domain.SenderCustomer, Content: "My order never arrived"},
		{Sender: domain.SenderAgent, Content: "Let me check that for you"},
	}

	result, err := c.Score(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if result.Label != "negative" || result.Score != 0.12 {
		t.Errorf("Got %+v, want negative/0.12", result)
	}

	health := c.GetHealth()
	if !health.Available {
		t.Error("Expected client to be available after success")
	}
	if health.ErrorRate != 0 {
		t.Errorf("ErrorRate = %f, want 0", health.ErrorRate)
	}
}

func TestScore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	defer c.Close()

	_, err := c.Score(context.Background(), []*domain.ChatMessage{{Content: "hi"}})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}

	// A single failure out of one request pushes the error rate past
	// the availability cutoff.
	if c.GetHealth().Available {
		t.Error("Expected client to be unavailable after failure")
	}
}

func TestScore_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	defer c.Close()

	_, err := c.Score(context.Background(), []*domain.ChatMessage{{Content: "hi"}})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
}
