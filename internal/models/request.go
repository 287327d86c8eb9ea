package models

import "time"

// EventCodeCancellation is the fiscal event code for a DCe cancellation.
const EventCodeCancellation = "110111"

// Contract names the wire shape a deployment accepts for cancellation requests.
type Contract string

const (
	// ContractMinimal is the current contract: {"id", "cancelReason"}.
	ContractMinimal Contract = "minimal"
	// ContractEnvelope is the legacy contract carrying a nested event object,
	// issuer, metadata and a caller supplied timestamp.
	ContractEnvelope Contract = "envelope"
)

// EnvelopeDetails holds the fields only present in the envelope contract.
type EnvelopeDetails struct {
	SchemaVersion  string         `json:"schemaVersion"`
	SequenceNumber int64          `json:"sequenceNumber"`
	Protocol       string         `json:"protocol"`
	Issuer         map[string]any `json:"issuer"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// QueueMessage is the body enqueued for the downstream cancellation worker.
type QueueMessage struct {
	ID              string    `json:"id"`
	EventCancelDate time.Time `json:"eventCancelDate"`
	CancelReason    string    `json:"cancelReason"`
	ClientID        string    `json:"clientId"`
	EventCode       string    `json:"eventCode"`
	CorrelationID   string    `json:"correlationId"`

	*EnvelopeDetails
}

// OutboundMessage is a serialized queue message. Key orders messages for one
// document on backends that support keyed partitions; Attributes travel
// outside the body so consumers can filter without decoding it.
type OutboundMessage struct {
	Key        string
	Body       []byte
	Attributes map[string]string
}
