package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
)

// MsgNotAuthorized is returned when a client may not cancel a document.
const MsgNotAuthorized = "clientId is not authorized to cancel this DCe"

// Mode selects the authorization strategy of a deployment.
type Mode string

const (
	ModeAllowList Mode = "allowlist"
	ModeStore     Mode = "store"
	ModeNone      Mode = "none"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAllowList, ModeStore, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("access: unknown authorization mode %q", s)
	}
}

// Authorizer decides whether a client may cancel a document.
type Authorizer interface {
	Authorize(ctx context.Context, clientID, documentID string) error
}

// AccessChecker reports whether the access index holds a record for
// accessKey owned by clientID.
type AccessChecker interface {
	HasAccess(ctx context.Context, accessKey, clientID string) (bool, error)
}

// AllowList authorizes clients by membership in a configured set.
type AllowList struct {
	allowed map[string]struct{}
}

// NewAllowList builds an AllowList from ids, ignoring blanks.
func NewAllowList(ids []string) *AllowList {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return &AllowList{allowed: allowed}
}

// Authorize implements Authorizer.
func (a *AllowList) Authorize(_ context.Context, clientID, _ string) error {
	if _, ok := a.allowed[clientID]; !ok {
		return apperrors.Authorization(MsgNotAuthorized)
	}
	return nil
}

// StoreLookup authorizes clients by querying the store's access index with
// the document id as access key.
type StoreLookup struct {
	checker AccessChecker
}

// NewStoreLookup constructs a StoreLookup authorizer.
func NewStoreLookup(checker AccessChecker) *StoreLookup {
	return &StoreLookup{checker: checker}
}

// Authorize implements Authorizer. Lookup failures are transport errors.
func (s *StoreLookup) Authorize(ctx context.Context, clientID, documentID string) error {
	ok, err := s.checker.HasAccess(ctx, documentID, clientID)
	if err != nil {
		return apperrors.Transport("access lookup failed", err)
	}
	if !ok {
		return apperrors.Authorization(MsgNotAuthorized)
	}
	return nil
}

// AllowAll authorizes every authenticated client.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(context.Context, string, string) error { return nil }
