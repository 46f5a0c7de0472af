package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// DailyRecordStore is an in-memory implementation of storage.DailyRecordStore.
type DailyRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyRecord // keyed by composite key
}

// NewDailyRecordStore creates a new in-memory daily record store.
func NewDailyRecordStore() *DailyRecordStore {
	return &DailyRecordStore{
		data: make(map[string]*domain.DailyRecord),
	}
}

// dailyKey generates a unique key for a (scope, date) row.
func dailyKey(wallet, account string, date domain.Date) string {
	return fmt.Sprintf("%s|%s|%s", wallet, account, date)
}

// Upsert inserts or replaces the record for (scope, date).
func (s *DailyRecordStore) Upsert(_ context.Context, r *domain.DailyRecord) error {
	if r == nil || r.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.data[dailyKey(r.Wallet, r.Account, r.Date)] = &copy
	return nil
}

// UpsertBulk inserts or replaces multiple records.
func (s *DailyRecordStore) UpsertBulk(_ context.Context, records []*domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.Wallet == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, r := range records {
		copy := *r
		s.data[dailyKey(r.Wallet, r.Account, r.Date)] = &copy
	}
	return nil
}

// GetByScope retrieves all records for a scope, ordered by date ASC.
func (s *DailyRecordStore) GetByScope(_ context.Context, scope domain.Scope) ([]*domain.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyRecord
	for _, r := range s.data {
		if r.Scope() == scope {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetByDate retrieves the record for (scope, date). Returns ErrNotFound if not exists.
func (s *DailyRecordStore) GetByDate(_ context.Context, scope domain.Scope, date domain.Date) (*domain.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[dailyKey(scope.Wallet, scope.Account, date)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// DeleteByScope removes all records for a scope.
func (s *DailyRecordStore) DeleteByScope(_ context.Context, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, r := range s.data {
		if r.Scope() == scope {
			delete(s.data, key)
		}
	}
	return nil
}

var _ storage.DailyRecordStore = (*DailyRecordStore)(nil)
