package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/media-platform/services/gateway/internal/progress"
)

// ─── Stubs ───

type fakeMsg struct {
	acked   bool
	termed  bool
	nakWith time.Duration
	naked   bool
}

func (m *fakeMsg) Ack(...nats.AckOpt) error {
	m.acked = true
	return nil
}
func (m *fakeMsg) Term(...nats.AckOpt) error {
	m.termed = true
	return nil
}
func (m *fakeMsg) NakWithDelay(d time.Duration, _ ...nats.AckOpt) error {
	m.naked = true
	m.nakWith = d
	return nil
}

type applierFunc func(ctx context.Context, payload []byte) error

func (f applierFunc) Put(ctx context.Context, payload []byte) error { return f(ctx, payload) }

func newTestConsumer(f applierFunc) *ProgressConsumer {
	return NewProgressConsumer(nil, nil, "progress.messages", f)
}

// ─── Handle ───

func TestHandle_AcksOnSuccess(t *testing.T) {
	var got string
	c := newTestConsumer(func(_ context.Context, p []byte) error {
		got = string(p)
		return nil
	})
	m := &fakeMsg{}
	c.handle(context.Background(), []byte(`{"id":"m1","timestamp":12}`), 1, m)

	if !m.acked {
		t.Fatal("expected ack")
	}
	if got != `{"id":"m1","timestamp":12}` {
		t.Fatalf("expected payload passed through, got %s", got)
	}
}

func TestHandle_AcksIgnoredMessages(t *testing.T) {
	c := newTestConsumer(func(context.Context, []byte) error {
		return fmt.Errorf("wrap: %w", progress.ErrIgnored)
	})
	m := &fakeMsg{}
	c.handle(context.Background(), []byte(`"noise"`), 1, m)

	if !m.acked || m.naked {
		t.Fatalf("expected ack without nak, got acked=%v naked=%v", m.acked, m.naked)
	}
}

func TestHandle_NaksWithBackoffOnFailure(t *testing.T) {
	c := newTestConsumer(func(context.Context, []byte) error {
		return errors.New("redis down")
	})
	m := &fakeMsg{}
	c.handle(context.Background(), []byte(`{"id":"m1","timestamp":1}`), 3, m)

	if !m.naked {
		t.Fatal("expected nak")
	}
	if m.nakWith != 4*time.Second {
		t.Fatalf("expected 4s delay, got %s", m.nakWith)
	}
}

func TestHandle_TermsAfterMaxDeliver(t *testing.T) {
	called := false
	c := newTestConsumer(func(context.Context, []byte) error {
		called = true
		return nil
	})
	m := &fakeMsg{}
	c.handle(context.Background(), []byte(`{}`), 6, m)

	if !m.termed {
		t.Fatal("expected term")
	}
	if called {
		t.Fatal("store should not be called after max deliveries")
	}
}

// ─── Backoff ───

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		n    uint64
		want time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.n); got != tc.want {
			t.Fatalf("backoffDelay(%d): expected %s, got %s", tc.n, tc.want, got)
		}
	}
}
