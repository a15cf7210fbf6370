package handlers

import (
	"errors"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectProgressMessages carries raw player progress messages to the
// progress worker.
const SubjectProgressMessages = "progress.messages"

var ErrAsyncPublishDisabled = errors.New("async publish is disabled")

type EventPublisher struct {
	js          nats.JetStreamContext
	asyncWrites bool
}

func NewEventPublisher(js nats.JetStreamContext, asyncWrites bool) *EventPublisher {
	return &EventPublisher{js: js, asyncWrites: asyncWrites}
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.js != nil && p.asyncWrites
}

// PublishRaw queues body unchanged. The event id travels in the
// Nats-Msg-Id header so JetStream drops duplicate publishes.
func (p *EventPublisher) PublishRaw(subject string, body []byte) (string, error) {
	if !p.Enabled() {
		return "", ErrAsyncPublishDisabled
	}
	eventID := uuid.NewString()
	msg := nats.NewMsg(subject)
	msg.Header.Set(nats.MsgIdHdr, eventID)
	msg.Data = body
	if _, err := p.js.PublishMsg(msg); err != nil {
		return "", err
	}
	return eventID, nil
}
