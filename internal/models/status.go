package models

import "time"

// Status values written to the status record.
const (
	StatusCancellationRequested = "CANCELLATION_REQUESTED"
	OperationStatusReceived     = "RECEIVED"
)

// Key layout of the status record.
const (
	PartitionKeyPrefix = "DCE#"
	SortKeyLatest      = "LATEST"
)

// AttributeCorrelationID is the message attribute (SQS) or header (Kafka)
// carrying the correlation id.
const AttributeCorrelationID = "CorrelationId"

// StatusRecord is the durable projection of a cancellation request. There is
// one live record per document; every new request overwrites it.
type StatusRecord struct {
	DocumentID         string    `json:"-" dynamodbav:"-"`
	Status             string    `json:"status" dynamodbav:"status"`
	CorrelationID      string    `json:"correlationId" dynamodbav:"correlationId"`
	EventCode          string    `json:"eventCode" dynamodbav:"eventCode"`
	UpdatedAt          time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
	EventTimestamp     time.Time `json:"eventTimestamp" dynamodbav:"eventTimestamp"`
	RequestedAt        time.Time `json:"requestedAt" dynamodbav:"requestedAt"`
	CancellationReason string    `json:"cancellationReason" dynamodbav:"cancellationReason"`
	OperationStatus    string    `json:"operationStatus" dynamodbav:"operationStatus"`
	ClientID           string    `json:"clientId" dynamodbav:"clientId"`
}

// PartitionKey returns the partition key value for the record's document.
func (r StatusRecord) PartitionKey() string { return PartitionKeyFor(r.DocumentID) }

// SortKey returns the sort key value of the live record.
func (r StatusRecord) SortKey() string { return SortKeyLatest }

// PartitionKeyFor builds the partition key value for a document id.
func PartitionKeyFor(documentID string) string { return PartitionKeyPrefix + documentID }
