package run

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_FirstErrorWins(t *testing.T) {
	r := New(zap.NewNop())
	code := r.run(context.Background(),
		func(ctx context.Context) error { <-ctx.Done(); return nil },
		func(context.Context) error { return errors.New("listen failed") },
	)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRun_ServerClosedIsClean(t *testing.T) {
	r := New(zap.NewNop())
	code := r.run(context.Background(), func(context.Context) error { return http.ErrServerClosed })
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r := New(zap.NewNop())
	code := r.run(ctx, func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestGraceful_UsesTimeout(t *testing.T) {
	r := &Runner{Logger: zap.NewNop(), ShutdownTimeout: 20 * time.Millisecond}
	var deadline bool
	r.Graceful(func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})
	if !deadline {
		t.Fatal("expected shutdown context to carry a deadline")
	}
}
