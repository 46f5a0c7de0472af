package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// PeriodAggregateStore is an in-memory implementation of storage.PeriodAggregateStore.
type PeriodAggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PeriodAggregate // keyed by composite key
}

// NewPeriodAggregateStore creates a new in-memory period aggregate store.
func NewPeriodAggregateStore() *PeriodAggregateStore {
	return &PeriodAggregateStore{
		data: make(map[string]*domain.PeriodAggregate),
	}
}

// periodKey generates a unique key for a (scope, granularity, period_key) row.
func periodKey(wallet, account string, g domain.Granularity, key string) string {
	return fmt.Sprintf("%s|%s|%s|%s", wallet, account, g, key)
}

// Upsert inserts or replaces the aggregate for (scope, granularity, period_key).
func (s *PeriodAggregateStore) Upsert(_ context.Context, a *domain.PeriodAggregate) error {
	if a == nil || a.Wallet == "" || !a.Granularity.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *a
	s.data[periodKey(a.Wallet, a.Account, a.Granularity, a.PeriodKey)] = &copy
	return nil
}

// UpsertBulk inserts or replaces multiple aggregates.
func (s *PeriodAggregateStore) UpsertBulk(_ context.Context, aggregates []*domain.PeriodAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range aggregates {
		if a == nil || a.Wallet == "" || !a.Granularity.IsValid() {
			return storage.ErrInvalidInput
		}
	}
	for _, a := range aggregates {
		copy := *a
		s.data[periodKey(a.Wallet, a.Account, a.Granularity, a.PeriodKey)] = &copy
	}
	return nil
}

// GetByScopeGranularity retrieves scope aggregates of one granularity, ordered by period_key ASC.
func (s *PeriodAggregateStore) GetByScopeGranularity(_ context.Context, scope domain.Scope, g domain.Granularity) ([]*domain.PeriodAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PeriodAggregate
	for _, a := range s.data {
		if a.Scope() == scope && a.Granularity == g {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PeriodKey < result[j].PeriodKey
	})
	return result, nil
}

// GetByKey retrieves the aggregate for (scope, granularity, period_key). Returns ErrNotFound if not exists.
func (s *PeriodAggregateStore) GetByKey(_ context.Context, scope domain.Scope, g domain.Granularity, key string) (*domain.PeriodAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[periodKey(scope.Wallet, scope.Account, g, key)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// DeleteByScope removes all aggregates for a scope, every granularity.
func (s *PeriodAggregateStore) DeleteByScope(_ context.Context, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, a := range s.data {
		if a.Scope() == scope {
			delete(s.data, key)
		}
	}
	return nil
}

var _ storage.PeriodAggregateStore = (*PeriodAggregateStore)(nil)
