package access

import (
	"crypto/subtle"
	"strings"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
)

const bearerPrefix = "Bearer "

// Caller-facing messages for authentication failures.
const (
	MsgUnauthorized     = "Unauthorized"
	MsgClientIDRequired = "clientId header is required"
)

// ClientIDHeaders are the accepted aliases for the client id header, in
// lookup order. Matching is case-insensitive.
var ClientIDHeaders = []string{"client-id", "client_id", "clientid", "x-client-id"}

// Authenticate checks the shared-secret bearer token. An empty expected token
// disables authentication.
func Authenticate(headers map[string]string, expectedToken string) error {
	if expectedToken == "" {
		return nil
	}

	header, _ := Header(headers, "Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return apperrors.Authentication(MsgUnauthorized)
	}
	provided := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expectedToken)) != 1 {
		return apperrors.Authentication(MsgUnauthorized)
	}
	return nil
}

// ExtractClientID returns the caller's client id from the first alias header
// present.
func ExtractClientID(headers map[string]string) (string, error) {
	for _, name := range ClientIDHeaders {
		if value, ok := Header(headers, name); ok {
			value = strings.TrimSpace(value)
			if value == "" {
				break
			}
			return value, nil
		}
	}
	return "", apperrors.Authentication(MsgClientIDRequired)
}

// Header looks up name in headers ignoring case. An exact-case match wins
// over a case-folded one.
func Header(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
