package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
)

// Request is the transport-neutral inbound request.
type Request struct {
	Body            []byte
	Headers         map[string]string
	IsBase64Encoded bool
}

// Response is the transport-neutral response envelope.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// SuccessBody is returned when a cancellation is accepted.
type SuccessBody struct {
	Message       string `json:"message"`
	DceID         string `json:"dceId"`
	CorrelationID string `json:"correlationId"`
}

// ErrorBody is returned for every rejected request.
type ErrorBody struct {
	Error string `json:"error"`
}

// parseBody decodes the request body into a JSON object. An empty body is an
// empty object; anything that is not a JSON object is a validation failure.
func parseBody(req Request) (map[string]any, error) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, apperrors.Validation("request body is not valid base64")
		}
		body = decoded
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, apperrors.Validation("request body is not valid JSON")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, apperrors.Validation("request body is not valid JSON")
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, apperrors.Validation("payload must be a JSON object")
	}
	return obj, nil
}

func jsonResponse(status int, correlationID string, body any) Response {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"internal error"}`)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if correlationID != "" {
		headers[HeaderCorrelationID] = correlationID
	}
	return Response{StatusCode: status, Headers: headers, Body: string(raw)}
}
