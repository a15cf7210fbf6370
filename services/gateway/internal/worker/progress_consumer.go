// Package worker drains player progress messages queued by the gateway
// when asynchronous writes are enabled.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/services/gateway/internal/progress"
)

const (
	StreamName   = "PROGRESS"
	DurableName  = "gateway_progress"
	fetchWait    = 2 * time.Second
	defaultBatch = 32
)

// Applier persists one raw progress message.
type Applier interface {
	Put(ctx context.Context, payload []byte) error
}

type acker interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

type ProgressConsumer struct {
	Log     *zap.Logger
	JS      nats.JetStreamContext
	Subject string
	Store   Applier

	Batch      int
	MaxDeliver int
}

func NewProgressConsumer(log *zap.Logger, js nats.JetStreamContext, subject string, store Applier) *ProgressConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressConsumer{
		Log:        log,
		JS:         js,
		Subject:    subject,
		Store:      store,
		Batch:      defaultBatch,
		MaxDeliver: 5,
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (c *ProgressConsumer) Run(ctx context.Context) error {
	if err := natsconn.EnsureStream(c.JS, StreamName, c.Subject); err != nil {
		return err
	}
	sub, err := c.JS.PullSubscribe(c.Subject, DurableName)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.Log.Info("progress consumer started", zap.String("subject", c.Subject))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(c.Batch, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			c.Log.Warn("progress fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, m := range msgs {
			numDelivered := uint64(1)
			if md, err := m.Metadata(); err == nil && md != nil {
				numDelivered = md.NumDelivered
			}
			c.handle(ctx, m.Data, numDelivered, m)
		}
	}
}

func (c *ProgressConsumer) handle(ctx context.Context, data []byte, numDelivered uint64, m acker) {
	if c.MaxDeliver > 0 && int(numDelivered) > c.MaxDeliver {
		c.Log.Error("progress message dropped",
			zap.Uint64("attempt", numDelivered), zap.ByteString("payload", data))
		_ = m.Term()
		return
	}

	err := c.Store.Put(ctx, data)
	switch {
	case err == nil:
		_ = m.Ack()
	case errors.Is(err, progress.ErrIgnored):
		c.Log.Debug("progress message ignored", zap.ByteString("payload", data))
		_ = m.Ack()
	default:
		c.Log.Warn("progress write failed", zap.Uint64("attempt", numDelivered), zap.Error(err))
		_ = m.NakWithDelay(backoffDelay(numDelivered))
	}
}
