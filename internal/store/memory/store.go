// Package memory provides an in-process status store and access index used
// by the local demo and tests.
package memory

import (
	"context"
	"sync"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

type recordKey struct {
	pk string
	sk string
}

// Store keeps status records keyed by (pk, sk) and an access index of
// access key to client ids.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]models.StatusRecord
	access  map[string]map[string]struct{}
	writes  int
	err     error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		records: make(map[recordKey]models.StatusRecord),
		access:  make(map[string]map[string]struct{}),
	}
}

// FailWith makes subsequent operations return err. A nil err restores them.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Upsert implements dispatch.StatusStore.
func (s *Store) Upsert(ctx context.Context, record models.StatusRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[recordKey{pk: record.PartitionKey(), sk: record.SortKey()}] = record
	s.writes++
	return nil
}

// Get returns the live record of documentID.
func (s *Store) Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.StatusRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return models.StatusRecord{}, false, s.err
	}
	rec, ok := s.records[recordKey{pk: models.PartitionKeyFor(documentID), sk: models.SortKeyLatest}]
	return rec, ok, nil
}

// Writes returns the number of successful upserts.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Grant adds clientID to the access index under accessKey.
func (s *Store) Grant(accessKey, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients, ok := s.access[accessKey]
	if !ok {
		clients = make(map[string]struct{})
		s.access[accessKey] = clients
	}
	clients[clientID] = struct{}{}
}

// HasAccess implements access.AccessChecker.
func (s *Store) HasAccess(ctx context.Context, accessKey, clientID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.access[accessKey][clientID]
	return ok, nil
}
