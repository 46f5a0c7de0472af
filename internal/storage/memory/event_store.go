package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionEvent // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.TransactionEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.TransactionEvent) error {
	if e == nil || e.EventID == "" || e.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[e.EventID] = &copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.TransactionEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(events))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Wallet == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		copy := *e
		s.data[e.EventID] = &copy
	}

	return nil
}

// GetByScope retrieves all events for a scope, ordered by timestamp ASC.
func (s *EventStore) GetByScope(_ context.Context, scope domain.Scope) ([]*domain.TransactionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionEvent
	for _, e := range s.data {
		if e.InScope(scope) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortEvents(result)
	return result, nil
}

// GetSince retrieves scope events with timestamp >= since, ordered by timestamp ASC.
func (s *EventStore) GetSince(_ context.Context, scope domain.Scope, since int64) ([]*domain.TransactionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionEvent
	for _, e := range s.data {
		if e.InScope(scope) && e.Timestamp >= since {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortEvents(result)
	return result, nil
}

// Accounts retrieves the distinct non-empty account IDs seen for a wallet.
func (s *EventStore) Accounts(_ context.Context, wallet string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.data {
		if e.Wallet == wallet && e.Account != "" {
			seen[e.Account] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for acct := range seen {
		result = append(result, acct)
	}
	sort.Strings(result)
	return result, nil
}

// LastBlock retrieves the highest block number stored for a wallet, 0 when none.
func (s *EventStore) LastBlock(_ context.Context, wallet string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for _, e := range s.data {
		if e.Wallet == wallet && e.BlockNumber > 0 && uint64(e.BlockNumber) > last {
			last = uint64(e.BlockNumber)
		}
	}
	return last, nil
}

func sortEvents(events []*domain.TransactionEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}

var _ storage.EventStore = (*EventStore)(nil)
