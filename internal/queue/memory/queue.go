// Package memory provides an in-process queue used by the local demo and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// Queue records every sent message in order.
type Queue struct {
	mu       sync.Mutex
	messages []models.OutboundMessage
	err      error
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// FailWith makes subsequent sends return err. A nil err restores sending.
func (q *Queue) FailWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

// Send implements dispatch.Queue.
func (q *Queue) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, cloneMessage(msg))
	return nil
}

// Messages returns a snapshot of the sent messages.
func (q *Queue) Messages() []models.OutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.OutboundMessage, len(q.messages))
	for i, m := range q.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Receive pops the oldest message, reporting false when the queue is empty.
func (q *Queue) Receive() (models.OutboundMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return models.OutboundMessage{}, false
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, true
}

func cloneMessage(m models.OutboundMessage) models.OutboundMessage {
	out := models.OutboundMessage{Key: m.Key, Body: append([]byte(nil), m.Body...)}
	if m.Attributes != nil {
		out.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
