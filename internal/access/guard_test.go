package access

import (
	"context"
	"errors"
	"testing"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
)

func TestAuthenticateOpenMode(t *testing.T) {
	if err := Authenticate(nil, ""); err != nil {
		t.Fatalf("expected open mode to accept any request, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{"valid", map[string]string{"Authorization": "Bearer secret"}, false},
		{"lowercase header name", map[string]string{"authorization": "Bearer secret"}, false},
		{"padded token", map[string]string{"Authorization": "Bearer  secret "}, false},
		{"missing header", map[string]string{}, true},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, true},
		{"wrong scheme", map[string]string{"Authorization": "Basic secret"}, true},
		{"lowercase scheme", map[string]string{"Authorization": "bearer secret"}, true},
		{"bare token", map[string]string{"Authorization": "secret"}, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := Authenticate(tc.headers, "secret")
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if apperrors.KindOf(err) != apperrors.KindAuthentication {
				t.Fatalf("expected authentication error, got %v", err)
			}
		})
	}
}

func TestExtractClientID(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"canonical", map[string]string{"Client-Id": "partner-123"}, "partner-123"},
		{"underscore", map[string]string{"CLIENT_ID": "partner-123"}, "partner-123"},
		{"joined", map[string]string{"clientid": "partner-123"}, "partner-123"},
		{"x-prefixed", map[string]string{"X-Client-Id": "partner-123"}, "partner-123"},
		{"alias order", map[string]string{"x-client-id": "second", "client-id": "first"}, "first"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractClientID(tc.headers)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractClientIDMissing(t *testing.T) {
	for _, headers := range []map[string]string{
		nil,
		{"Authorization": "Bearer x"},
		{"client-id": "   "},
	} {
		_, err := ExtractClientID(headers)
		if apperrors.KindOf(err) != apperrors.KindAuthentication || apperrors.MessageOf(err) != MsgClientIDRequired {
			t.Fatalf("expected %q for %v, got %v", MsgClientIDRequired, headers, err)
		}
	}
}

func TestAllowList(t *testing.T) {
	list := NewAllowList([]string{"partner-123", " ", "partner-456 "})

	if err := list.Authorize(context.Background(), "partner-456", "doc"); err != nil {
		t.Fatalf("expected member to be authorized, got %v", err)
	}
	err := list.Authorize(context.Background(), "intruder", "doc")
	if apperrors.KindOf(err) != apperrors.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

type fakeChecker struct {
	allowed   bool
	err       error
	accessKey string
	clientID  string
}

func (f *fakeChecker) HasAccess(_ context.Context, accessKey, clientID string) (bool, error) {
	f.accessKey = accessKey
	f.clientID = clientID
	return f.allowed, f.err
}

func TestStoreLookup(t *testing.T) {
	checker := &fakeChecker{allowed: true}
	if err := NewStoreLookup(checker).Authorize(context.Background(), "partner-123", "1234567890"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker.accessKey != "1234567890" || checker.clientID != "partner-123" {
		t.Fatalf("unexpected lookup arguments %+v", checker)
	}

	checker.allowed = false
	err := NewStoreLookup(checker).Authorize(context.Background(), "partner-123", "1234567890")
	if apperrors.KindOf(err) != apperrors.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}

	cause := errors.New("throttled")
	checker.err = cause
	err = NewStoreLookup(checker).Authorize(context.Background(), "partner-123", "1234567890")
	if apperrors.KindOf(err) != apperrors.KindTransport || !errors.Is(err, cause) {
		t.Fatalf("expected transport error wrapping cause, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" AllowList "); err != nil || m != ModeAllowList {
		t.Fatalf("expected allowlist, got %q %v", m, err)
	}
	if _, err := ParseMode("ldap"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
