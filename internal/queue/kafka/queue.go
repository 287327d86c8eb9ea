// Package kafka publishes cancellation messages to a Kafka topic. Messages
// are keyed by document id so all requests for one document land on the same
// partition in order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// SyncProducer captures the subset of producer behaviour the queue needs.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// readiness is implemented by producers that track broker reachability.
type readiness interface {
	IsReady() bool
}

// Queue sends messages to one topic through a SyncProducer.
type Queue struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// New constructs a Queue.
func New(producer SyncProducer, topic string, logger zerolog.Logger) (*Queue, error) {
	if producer == nil {
		return nil, errors.New("kafka queue: producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka queue: topic is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Queue{producer: producer, topic: topic, logger: logger}, nil
}

// Ready reports whether the producer currently reaches the cluster.
// Producers without readiness tracking count as ready.
func (q *Queue) Ready() bool {
	if r, ok := q.producer.(readiness); ok {
		return r.IsReady()
	}
	return true
}

// Send implements dispatch.Queue. Attributes become record headers.
func (q *Queue) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}
	for k, v := range msg.Attributes {
		headers[k] = []byte(v)
	}

	if err := q.producer.PublishSync(q.topic, []byte(msg.Key), headers, msg.Body); err != nil {
		return fmt.Errorf("kafka queue: publish: %w", err)
	}
	q.logger.Debug().Str("topic", q.topic).Str("key", msg.Key).Msg("message published")
	return nil
}
