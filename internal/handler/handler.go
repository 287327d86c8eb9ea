package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/access"
	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/validation"
)

// HeaderCorrelationID carries the correlation id in and out of the service.
const HeaderCorrelationID = "X-Correlation-Id"

// MsgAccepted is the success message returned to callers.
const MsgAccepted = "Cancellation received"

// Dispatcher hands a validated cancellation to the processing pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, c validation.Cancellation, correlationID string) error
}

// Config holds the request-level settings of the handler.
type Config struct {
	// AuthToken is the expected bearer token. Empty disables authentication.
	AuthToken string
}

// Dependencies are the collaborators the handler sequences.
type Dependencies struct {
	Validator  validation.Validator
	Authorizer access.Authorizer
	Dispatcher Dispatcher
	Logger     zerolog.Logger
	// NewID generates correlation ids; defaults to random UUIDs.
	NewID func() string
}

// Handler runs one cancellation request through authentication, validation,
// authorization and dispatch, and maps any failure to a response code.
type Handler struct {
	cfg        Config
	validator  validation.Validator
	authorizer access.Authorizer
	dispatcher Dispatcher
	logger     zerolog.Logger
	newID      func() string
}

// New constructs a Handler.
func New(cfg Config, deps Dependencies) (*Handler, error) {
	if deps.Validator == nil {
		return nil, errors.New("handler: validator is required")
	}
	if deps.Authorizer == nil {
		return nil, errors.New("handler: authorizer is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("handler: dispatcher is required")
	}
	if reflect.ValueOf(deps.Logger).IsZero() {
		deps.Logger = zerolog.Nop()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Handler{
		cfg:        cfg,
		validator:  deps.Validator,
		authorizer: deps.Authorizer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		newID:      deps.NewID,
	}, nil
}

// requestState accumulates what is known about a request for logging.
type requestState struct {
	correlationID string
	clientID      string
	documentID    string
}

// Handle processes req. It never returns an error: every outcome is a
// Response.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	state := &requestState{}

	defer func() {
		if rec := recover(); rec != nil {
			resp = h.fail(state, apperrors.Unexpected("panic while handling cancellation", fmt.Errorf("%v", rec)))
		}
	}()

	payload, parseErr := parseBody(req)
	state.correlationID = h.correlationID(req.Headers, payload)

	h.logger.Info().
		Str("correlationId", state.correlationID).
		Int("bodyBytes", len(req.Body)).
		Msg("cancellation request received")

	if err := access.Authenticate(req.Headers, h.cfg.AuthToken); err != nil {
		return h.fail(state, err)
	}

	clientID, err := access.ExtractClientID(req.Headers)
	if err != nil {
		return h.fail(state, err)
	}
	state.clientID = clientID

	if parseErr != nil {
		return h.fail(state, parseErr)
	}
	validated, err := h.validator.Validate(payload)
	if err != nil {
		return h.fail(state, err)
	}
	validated = validated.WithClientID(clientID)
	state.documentID = validated.DocumentID()

	if err := h.authorizer.Authorize(ctx, clientID, validated.DocumentID()); err != nil {
		return h.fail(state, err)
	}

	if err := h.dispatcher.Dispatch(ctx, validated, state.correlationID); err != nil {
		return h.fail(state, err)
	}

	h.logger.Info().
		Str("dceId", state.documentID).
		Str("correlationId", state.correlationID).
		Str("clientId", state.clientID).
		Msg("cancellation request recorded")

	return jsonResponse(http.StatusCreated, state.correlationID, SuccessBody{
		Message:       MsgAccepted,
		DceID:         validated.DocumentID(),
		CorrelationID: state.correlationID,
	})
}

// correlationID resolves the request's correlation id: header, then payload
// field, then a fresh id.
func (h *Handler) correlationID(headers map[string]string, payload map[string]any) string {
	if v, ok := access.Header(headers, HeaderCorrelationID); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v, ok := payload["correlationId"].(string); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return h.newID()
}

func (h *Handler) fail(state *requestState, err error) Response {
	kind := apperrors.KindOf(err)
	status := apperrors.StatusCode(kind)

	var evt *zerolog.Event
	if status >= http.StatusInternalServerError {
		evt = h.logger.Error()
	} else {
		evt = h.logger.Warn()
	}
	evt = evt.Err(err).
		Str("kind", kind.String()).
		Int("statusCode", status).
		Str("correlationId", state.correlationID)
	if state.documentID != "" {
		evt = evt.Str("dceId", state.documentID)
	}
	if state.clientID != "" {
		evt = evt.Str("clientId", state.clientID)
	}
	evt.Msg("cancellation request rejected")

	var message string
	switch kind {
	case apperrors.KindValidation, apperrors.KindAuthentication, apperrors.KindAuthorization, apperrors.KindTransport:
		message = apperrors.MessageOf(err)
	case apperrors.KindUnexpected:
		var typed *apperrors.Error
		if errors.As(err, &typed) {
			message = typed.Message
		} else {
			message = "internal error"
		}
	}
	return jsonResponse(status, state.correlationID, ErrorBody{Error: message})
}
