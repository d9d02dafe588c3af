package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/recall/internal/control"
	"github.com/vietddude/recall/internal/core/config"
	"github.com/vietddude/recall/internal/core/domain"
)

func TestGracefulShutdown(t *testing.T) {
	// Memory storage, no cache: enough to start every component without
	// external services.
	cfg := &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
	}

	app, err := control.NewApp(cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The service works against the in-memory store while running.
	err = app.Service().StoreMessage(ctx, &domain.ChatMessage{
		TicketID: "t1",
		UserID:   "u1",
		Sender:   domain.SenderCustomer,
		Content:  "hello",
	})
	if err != nil {
		t.Errorf("StoreMessage failed: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
