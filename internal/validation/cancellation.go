package validation

import (
	"time"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// Cancellation is a cancellation request that passed validation. Its fields
// are only set by the validators in this package; callers read them through
// accessors and may only attach the authenticated client id.
type Cancellation struct {
	documentID     string
	cancelReason   string
	eventTimestamp time.Time
	clientID       string
	contract       models.Contract
	envelope       *models.EnvelopeDetails
}

// DocumentID returns the id of the DCe being cancelled.
func (c Cancellation) DocumentID() string { return c.documentID }

// CancelReason returns the free text reason supplied by the caller.
func (c Cancellation) CancelReason() string { return c.cancelReason }

// EventTimestamp returns the instant of the cancellation event in UTC.
func (c Cancellation) EventTimestamp() time.Time { return c.eventTimestamp }

// ClientID returns the authenticated client id, empty until WithClientID.
func (c Cancellation) ClientID() string { return c.clientID }

// EventCode returns the fiscal event code of a cancellation.
func (c Cancellation) EventCode() string { return models.EventCodeCancellation }

// Contract returns the wire contract the request was validated against.
func (c Cancellation) Contract() models.Contract { return c.contract }

// Envelope returns the envelope-only fields, nil for the minimal contract.
func (c Cancellation) Envelope() *models.EnvelopeDetails { return c.envelope }

// WithClientID returns a copy carrying the authenticated client id.
func (c Cancellation) WithClientID(clientID string) Cancellation {
	c.clientID = clientID
	return c
}
