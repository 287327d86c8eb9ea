// Package redis keeps cancellation status records as Redis hashes and the
// access index as Redis sets.
package redis

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

const (
	fieldStatus             = "status"
	fieldCorrelationID      = "correlationId"
	fieldEventCode          = "eventCode"
	fieldUpdatedAt          = "updatedAt"
	fieldEventTimestamp     = "eventTimestamp"
	fieldRequestedAt        = "requestedAt"
	fieldCancellationReason = "cancellationReason"
	fieldOperationStatus    = "operationStatus"
	fieldClientID           = "clientId"
)

// Connect builds a client from a redis:// URL or a host:port address.
func Connect(addr string) (*goredis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return goredis.NewClient(opt), nil
	}
	return goredis.NewClient(&goredis.Options{Addr: addr}), nil
}

// Store implements dispatch.StatusStore and access.AccessChecker.
// Records live under "<table>:DCE#<id>:LATEST"; access sets under
// "<accessTable>:<accessKey>".
type Store struct {
	client      goredis.Cmdable
	table       string
	accessTable string
	logger      zerolog.Logger
}

// New constructs a Store.
func New(client goredis.Cmdable, table, accessTable string, logger zerolog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis store: client is required")
	}
	if table == "" {
		return nil, errors.New("redis store: table name is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Store{client: client, table: table, accessTable: accessTable, logger: logger}, nil
}

// Upsert implements dispatch.StatusStore. The hash is replaced atomically.
func (s *Store) Upsert(ctx context.Context, rec models.StatusRecord) error {
	key := s.recordKey(rec.DocumentID)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, map[string]any{
			fieldStatus:             rec.Status,
			fieldCorrelationID:      rec.CorrelationID,
			fieldEventCode:          rec.EventCode,
			fieldUpdatedAt:          formatTime(rec.UpdatedAt),
			fieldEventTimestamp:     formatTime(rec.EventTimestamp),
			fieldRequestedAt:        formatTime(rec.RequestedAt),
			fieldCancellationReason: rec.CancellationReason,
			fieldOperationStatus:    rec.OperationStatus,
			fieldClientID:           rec.ClientID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: upsert %s: %w", key, err)
	}
	return nil
}

// Get returns the live status record of documentID.
func (s *Store) Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error) {
	key := s.recordKey(documentID)
	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("redis store: get %s: %w", key, err)
	}
	if len(data) == 0 {
		return models.StatusRecord{}, false, nil
	}

	rec := models.StatusRecord{
		DocumentID:         documentID,
		Status:             data[fieldStatus],
		CorrelationID:      data[fieldCorrelationID],
		EventCode:          data[fieldEventCode],
		CancellationReason: data[fieldCancellationReason],
		OperationStatus:    data[fieldOperationStatus],
		ClientID:           data[fieldClientID],
	}
	for field, dst := range map[string]*time.Time{
		fieldUpdatedAt:      &rec.UpdatedAt,
		fieldEventTimestamp: &rec.EventTimestamp,
		fieldRequestedAt:    &rec.RequestedAt,
	} {
		raw, ok := data[field]
		if !ok || raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return models.StatusRecord{}, false, fmt.Errorf("redis store: parse %s of %s: %w", field, key, err)
		}
		*dst = t
	}
	return rec, true, nil
}

// HasAccess implements access.AccessChecker.
func (s *Store) HasAccess(ctx context.Context, accessKey, clientID string) (bool, error) {
	if s.accessTable == "" {
		return false, errors.New("redis store: access table is not configured")
	}
	ok, err := s.client.SIsMember(ctx, s.accessKey(accessKey), clientID).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: access lookup: %w", err)
	}
	return ok, nil
}

// Grant adds clientID to the access set of accessKey.
func (s *Store) Grant(ctx context.Context, accessKey, clientID string) error {
	if s.accessTable == "" {
		return errors.New("redis store: access table is not configured")
	}
	return s.client.SAdd(ctx, s.accessKey(accessKey), clientID).Err()
}

func (s *Store) recordKey(documentID string) string {
	return s.table + ":" + models.PartitionKeyFor(documentID) + ":" + models.SortKeyLatest
}

func (s *Store) accessKey(accessKey string) string {
	return s.accessTable + ":" + accessKey
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
