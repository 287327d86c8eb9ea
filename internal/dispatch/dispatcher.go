package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/models"
	"github.com/fiscaldocs/dce-cancel/internal/validation"
)

// MsgDispatchFailed is the caller-facing message for queue failures.
const MsgDispatchFailed = "Failed to dispatch cancellation event"

// Queue sends a message to the cancellation queue.
type Queue interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// StatusStore upserts the live status record of a document, overwriting any
// previous record unconditionally.
type StatusStore interface {
	Upsert(ctx context.Context, record models.StatusRecord) error
}

// Dispatcher enqueues validated cancellations and records their status.
type Dispatcher struct {
	queue  Queue
	store  StatusStore
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Dispatcher. A nil now defaults to time.Now.
func New(queue Queue, store StatusStore, logger zerolog.Logger, now func() time.Time) (*Dispatcher, error) {
	if queue == nil {
		return nil, errors.New("dispatch: queue is required")
	}
	if store == nil {
		return nil, errors.New("dispatch: status store is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{queue: queue, store: store, logger: logger, now: now}, nil
}

// Dispatch sends the cancellation to the queue and then upserts its status
// record. The store is not written when the send fails. A failed store write
// after a successful send leaves the message enqueued; the queue is the
// source of truth and the record a best-effort projection.
func (d *Dispatcher) Dispatch(ctx context.Context, c validation.Cancellation, correlationID string) error {
	if c.ClientID() == "" {
		return apperrors.Unexpected("cancellation reached dispatch without client id", nil)
	}

	body, err := json.Marshal(BuildMessage(c, correlationID))
	if err != nil {
		return apperrors.Unexpected("marshal queue message", err)
	}

	log := d.logger.With().
		Str("dceId", c.DocumentID()).
		Str("correlationId", correlationID).
		Str("clientId", c.ClientID()).
		Logger()

	err = d.queue.Send(ctx, models.OutboundMessage{
		Key:        c.DocumentID(),
		Body:       body,
		Attributes: map[string]string{models.AttributeCorrelationID: correlationID},
	})
	if err != nil {
		log.Error().Err(err).Msg("queue send failed")
		return apperrors.Transport(MsgDispatchFailed, err)
	}

	if err := d.store.Upsert(ctx, BuildStatusRecord(c, correlationID, d.now().UTC())); err != nil {
		log.Error().Err(err).Msg("status upsert failed after message was enqueued")
		return apperrors.Unexpected("status record write failed", err)
	}

	log.Debug().Msg("cancellation dispatched")
	return nil
}

// BuildMessage assembles the queue message body for c.
func BuildMessage(c validation.Cancellation, correlationID string) models.QueueMessage {
	return models.QueueMessage{
		ID:              c.DocumentID(),
		EventCancelDate: c.EventTimestamp(),
		CancelReason:    c.CancelReason(),
		ClientID:        c.ClientID(),
		EventCode:       c.EventCode(),
		CorrelationID:   correlationID,
		EnvelopeDetails: c.Envelope(),
	}
}

// BuildStatusRecord assembles the status record for c requested at now.
func BuildStatusRecord(c validation.Cancellation, correlationID string, now time.Time) models.StatusRecord {
	return models.StatusRecord{
		DocumentID:         c.DocumentID(),
		Status:             models.StatusCancellationRequested,
		CorrelationID:      correlationID,
		EventCode:          c.EventCode(),
		UpdatedAt:          now,
		EventTimestamp:     c.EventTimestamp(),
		RequestedAt:        now,
		CancellationReason: c.CancelReason(),
		OperationStatus:    models.OperationStatusReceived,
		ClientID:           c.ClientID(),
	}
}
