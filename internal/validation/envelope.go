package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/models"
)

var (
	allowedEventCodes     = map[string]struct{}{models.EventCodeCancellation: {}}
	allowedSchemaVersions = map[string]struct{}{"1.00": {}, "1.01": {}}
)

// Envelope validates the legacy contract where the caller sends a nested
// event object and its own ISO-8601 timestamp:
//
//	{"dceId": "...", "event": {"code", "schemaVersion", "sequenceNumber",
//	 "reason", "protocol"}, "timestamp": "...", "issuer": {...}, "metadata": {...}}
type Envelope struct {
	window window
}

// NewEnvelope constructs an Envelope validator.
func NewEnvelope(deadline time.Duration, now func() time.Time) *Envelope {
	return &Envelope{window: newWindow(deadline, now)}
}

// Contract implements Validator.
func (v *Envelope) Contract() models.Contract { return models.ContractEnvelope }

// Validate implements Validator.
func (v *Envelope) Validate(raw map[string]any) (Cancellation, error) {
	if raw == nil {
		return Cancellation{}, apperrors.Validation("payload must be a JSON object")
	}

	rawID := raw["dceId"]
	if isBlank(rawID) {
		return Cancellation{}, apperrors.Validation("dceId is required")
	}
	documentID, ok := scalarString(rawID)
	if !ok {
		return Cancellation{}, apperrors.Validation("dceId must be a string")
	}

	event, ok := raw["event"].(map[string]any)
	if !ok {
		return Cancellation{}, apperrors.Validation("event must be an object")
	}

	if isBlank(raw["timestamp"]) {
		return Cancellation{}, apperrors.Validation("timestamp is required")
	}
	ts, err := parseTimestamp(raw["timestamp"])
	if err != nil {
		return Cancellation{}, err
	}

	code, _ := scalarString(event["code"])
	if _, ok := allowedEventCodes[code]; !ok {
		return Cancellation{}, apperrors.Validation("event.code must be one of " + joinKeys(allowedEventCodes))
	}

	schemaVersion, _ := event["schemaVersion"].(string)
	if _, ok := allowedSchemaVersions[schemaVersion]; !ok {
		return Cancellation{}, apperrors.Validation("event.schemaVersion must be one of " + joinKeys(allowedSchemaVersions))
	}

	sequence, ok := positiveInt(event["sequenceNumber"])
	if !ok {
		return Cancellation{}, apperrors.Validation("event.sequenceNumber must be a positive integer")
	}

	if isBlank(event["reason"]) {
		return Cancellation{}, apperrors.Validation("event.reason is required")
	}
	if isBlank(event["protocol"]) {
		return Cancellation{}, apperrors.Validation("event.protocol is required")
	}

	issuer, ok := raw["issuer"].(map[string]any)
	if !ok {
		return Cancellation{}, apperrors.Validation("issuer must be an object")
	}

	metadata := map[string]any{}
	if m, present := raw["metadata"]; present && !isBlank(m) {
		md, ok := m.(map[string]any)
		if !ok {
			return Cancellation{}, apperrors.Validation("metadata, when provided, must be an object")
		}
		metadata = md
	}

	if err := v.window.check(ts); err != nil {
		return Cancellation{}, err
	}

	return Cancellation{
		documentID:     documentID,
		cancelReason:   textOf(event["reason"]),
		eventTimestamp: ts.UTC(),
		contract:       models.ContractEnvelope,
		envelope: &models.EnvelopeDetails{
			SchemaVersion:  schemaVersion,
			SequenceNumber: sequence,
			Protocol:       textOf(event["protocol"]),
			Issuer:         issuer,
			Metadata:       metadata,
		},
	}, nil
}

// timestampLayouts are the ISO 8601 forms accepted for the event timestamp.
// Each requires a zone: extended (+03:00, Z) or basic (+0300) offsets.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999Z0700",
}

func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, apperrors.Validation("timestamp must be ISO 8601 with timezone information")
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, apperrors.Validation("timestamp must be ISO 8601 with timezone information")
}

func positiveInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil && n >= 1
	case float64:
		n := int64(t)
		return n, float64(n) == t && n >= 1
	default:
		return 0, false
	}
}

func textOf(v any) string {
	if s, ok := scalarString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

func joinKeys(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
