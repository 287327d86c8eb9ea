package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// Validator turns a decoded request body into a Cancellation. A deployment
// runs exactly one validator, matching the contract it publishes.
type Validator interface {
	Validate(raw map[string]any) (Cancellation, error)
	Contract() models.Contract
}

// MsgWindowExpired is returned when the event is older than the cancellation deadline.
const MsgWindowExpired = "cancellation window expired"

// New returns the validator for contract. A non-positive deadline disables
// the cancellation window check; a nil now defaults to time.Now.
func New(contract models.Contract, deadline time.Duration, now func() time.Time) (Validator, error) {
	switch contract {
	case models.ContractMinimal, "":
		return NewMinimal(deadline, now), nil
	case models.ContractEnvelope:
		return NewEnvelope(deadline, now), nil
	default:
		return nil, fmt.Errorf("validation: unknown payload contract %q", contract)
	}
}

type window struct {
	deadline time.Duration
	now      func() time.Time
}

func newWindow(deadline time.Duration, now func() time.Time) window {
	if now == nil {
		now = time.Now
	}
	return window{deadline: deadline, now: now}
}

func (w window) check(ts time.Time) error {
	if w.deadline <= 0 {
		return nil
	}
	if ts.Before(w.now().UTC().Add(-w.deadline)) {
		return apperrors.Validation(MsgWindowExpired)
	}
	return nil
}

// isBlank reports whether v is absent or an empty/zero JSON value.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// scalarString renders a JSON string or number as text.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
