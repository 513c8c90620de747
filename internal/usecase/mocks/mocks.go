package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// MockEntryRepository is an in-memory implementation of
// usecase.EntryRepository. Set a Func field to override a method.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry

	CreateBatchFunc        func(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) error
	UpdateBalanceAfterFunc func(ctx context.Context, tx usecase.Transaction, id string, balanceAfter decimal.Decimal) error
	ListTransferLegsFunc   func(ctx context.Context, from, to time.Time) ([]*domain.LedgerEntry, error)
}

// NewMockEntryRepository creates an empty in-memory repository.
func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{entries: make(map[string]*domain.LedgerEntry)}
}

// CreateBatch stores copies of the given entries.
func (m *MockEntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) error {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, tx, entries)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if _, exists := m.entries[e.ID]; exists {
			return fmt.Errorf("duplicate entry id %s", e.ID)
		}
	}

	for _, e := range entries {
		c := *e
		m.entries[e.ID] = &c
	}

	return nil
}

// LastByAccount returns the canonical-last entry for an account.
func (m *MockEntryRepository) LastByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (*domain.LedgerEntry, error) {
	entries, err := m.ListByAccountOrdered(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, domain.ErrEntryNotFound
	}

	return entries[len(entries)-1], nil
}

// ListByAccountOrdered returns copies of an account's entries in
// canonical order.
func (m *MockEntryRepository) ListByAccountOrdered(ctx context.Context, tx usecase.Transaction, accountID string) ([]*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.BalanceAccountID == accountID {
			c := *e
			entries = append(entries, &c)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return domain.CanonicalLess(entries[i], entries[j])
	})

	return entries, nil
}

// UpdateBalanceAfter rewrites one stored balance_after.
func (m *MockEntryRepository) UpdateBalanceAfter(ctx context.Context, tx usecase.Transaction, id string, balanceAfter decimal.Decimal) error {
	if m.UpdateBalanceAfterFunc != nil {
		return m.UpdateBalanceAfterFunc(ctx, tx, id, balanceAfter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}

	e.BalanceAfter = balanceAfter

	return nil
}

// LastBefore returns the canonical-last entry strictly before an instant.
func (m *MockEntryRepository) LastBefore(ctx context.Context, accountID string, before time.Time) (*domain.LedgerEntry, error) {
	entries, err := m.ListByAccountOrdered(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].OccurredAt.Before(before) {
			return entries[i], nil
		}
	}

	return nil, domain.ErrEntryNotFound
}

// ListWindow returns entries with occurred_at in [from, to).
func (m *MockEntryRepository) ListWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.LedgerEntry, error) {
	entries, err := m.ListByAccountOrdered(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}

	var window []*domain.LedgerEntry
	for _, e := range entries {
		if !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			window = append(window, e)
		}
	}

	return window, nil
}

// ListByAccount returns a page of entries in reverse canonical order.
func (m *MockEntryRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	entries, err := m.ListByAccountOrdered(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	if offset >= len(entries) {
		return nil, nil
	}

	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}

	return entries, nil
}

// ListTransferLegs returns transfer legs with occurred_at in [from, to).
func (m *MockEntryRepository) ListTransferLegs(ctx context.Context, from, to time.Time) ([]*domain.LedgerEntry, error) {
	if m.ListTransferLegsFunc != nil {
		return m.ListTransferLegsFunc(ctx, from, to)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var legs []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.SourceType != domain.SourceTypeTransferIn && e.SourceType != domain.SourceTypeTransferOut {
			continue
		}
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}

		c := *e
		legs = append(legs, &c)
	}

	sort.Slice(legs, func(i, j int) bool {
		if legs[i].SourceRefID != legs[j].SourceRefID {
			return legs[i].SourceRefID < legs[j].SourceRefID
		}
		return domain.CanonicalLess(legs[i], legs[j])
	})

	return legs, nil
}

// ListAccountIDs returns the distinct account ids, sorted.
func (m *MockEntryRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, e := range m.entries {
		if !seen[e.BalanceAccountID] {
			seen[e.BalanceAccountID] = true
			ids = append(ids, e.BalanceAccountID)
		}
	}

	sort.Strings(ids)

	return ids, nil
}

// Seed stores entries directly, bypassing validation. Test helper.
func (m *MockEntryRepository) Seed(entries ...*domain.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		c := *e
		m.entries[e.ID] = &c
	}
}

// Get returns a stored entry by id. Test helper.
func (m *MockEntryRepository) Get(id string) *domain.LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil
	}

	c := *e

	return &c
}

// MockSnapshotRepository is an in-memory usecase.SnapshotRepository.
type MockSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.DailySnapshot

	UpsertFunc func(ctx context.Context, snapshot *domain.DailySnapshot) error
}

// NewMockSnapshotRepository creates an empty in-memory repository.
func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{snapshots: make(map[string]*domain.DailySnapshot)}
}

func snapshotKey(accountID string, date time.Time) string {
	return accountID + "|" + date.Format("2006-01-02")
}

// Upsert stores a copy keyed by (account, date).
func (m *MockSnapshotRepository) Upsert(ctx context.Context, snapshot *domain.DailySnapshot) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, snapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *snapshot
	m.snapshots[snapshotKey(snapshot.BalanceAccountID, snapshot.Date)] = &c

	return nil
}

// Get returns the stored snapshot for (account, date).
func (m *MockSnapshotRepository) Get(ctx context.Context, accountID string, date time.Time) (*domain.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[snapshotKey(accountID, date)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}

	c := *s

	return &c, nil
}

// MockTransaction is a no-op usecase.Transaction recording its fate.
type MockTransaction struct {
	Committed  bool
	RolledBack bool

	CommitFunc func(ctx context.Context) error
}

// Commit marks the transaction committed.
func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}

	t.Committed = true

	return nil
}

// Rollback marks the transaction rolled back unless committed.
func (t *MockTransaction) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}

	return nil
}

// MockTransactionManager hands out MockTransactions.
type MockTransactionManager struct {
	mu    sync.Mutex
	Began []*MockTransaction

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

// NewMockTransactionManager creates a new MockTransactionManager.
func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

// Begin returns a fresh MockTransaction.
func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MockTransaction{}
	m.Began = append(m.Began, tx)

	return tx, nil
}

// MockIDGenerator generates sequential ids, zero padded so the id
// tie-break stays deterministic in tests.
type MockIDGenerator struct {
	mu   sync.Mutex
	next int

	GenerateFunc func() string
}

// NewMockIDGenerator creates a new MockIDGenerator.
func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

// Generate returns the next sequential id.
func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++

	return fmt.Sprintf("id-%06d", m.next)
}

// MockCache is an in-memory usecase.Cache. TTLs are ignored.
type MockCache struct {
	mu     sync.RWMutex
	values map[string][]byte

	Deleted []string
}

// NewMockCache creates an empty MockCache.
func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string][]byte)}
}

// Get returns a stored value or an error when absent.
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("cache miss: %s", key)
	}

	return v, nil
}

// Set stores a value.
func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	return nil
}

// Delete removes a key.
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	m.Deleted = append(m.Deleted, key)

	return nil
}

// DeletePrefix removes every key sharing a prefix.
func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.values, k)
			m.Deleted = append(m.Deleted, k)
		}
	}

	return nil
}
