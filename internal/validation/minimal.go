package validation

import (
	"time"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// Minimal validates the current contract: {"id": "...", "cancelReason": "..."}.
// The event timestamp is never taken from the caller; it is the validation
// time in UTC, which is the only wall-clock dependency of validation.
type Minimal struct {
	window window
}

// NewMinimal constructs a Minimal validator.
func NewMinimal(deadline time.Duration, now func() time.Time) *Minimal {
	return &Minimal{window: newWindow(deadline, now)}
}

// Contract implements Validator.
func (v *Minimal) Contract() models.Contract { return models.ContractMinimal }

// Validate implements Validator.
func (v *Minimal) Validate(raw map[string]any) (Cancellation, error) {
	if raw == nil {
		return Cancellation{}, apperrors.Validation("payload must be a JSON object")
	}

	rawID := raw["id"]
	rawReason := raw["cancelReason"]

	if isBlank(rawID) {
		return Cancellation{}, apperrors.Validation("id is required")
	}
	documentID, ok := scalarString(rawID)
	if !ok {
		return Cancellation{}, apperrors.Validation("id must be a string")
	}
	if isBlank(rawReason) {
		return Cancellation{}, apperrors.Validation("cancelReason is required")
	}
	reason, ok := rawReason.(string)
	if !ok {
		return Cancellation{}, apperrors.Validation("cancelReason must be a string")
	}

	ts := v.window.now().UTC()
	if err := v.window.check(ts); err != nil {
		return Cancellation{}, err
	}

	return Cancellation{
		documentID:     documentID,
		cancelReason:   reason,
		eventTimestamp: ts,
		contract:       models.ContractMinimal,
	}, nil
}
