package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
)

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	// CreateBatch inserts entries in one round trip. Either every row
	// is written or none.
	CreateBatch(ctx context.Context, tx Transaction, entries []*domain.LedgerEntry) error
	// LastByAccount returns the canonical-last entry for an account,
	// or domain.ErrEntryNotFound when the account has no entries.
	LastByAccount(ctx context.Context, tx Transaction, accountID string) (*domain.LedgerEntry, error)
	// ListByAccountOrdered returns every entry for an account in
	// canonical (occurred_at, created_at, id) order, locked for update
	// when tx is non-nil.
	ListByAccountOrdered(ctx context.Context, tx Transaction, accountID string) ([]*domain.LedgerEntry, error)
	// UpdateBalanceAfter rewrites the derived running balance of one row.
	UpdateBalanceAfter(ctx context.Context, tx Transaction, id string, balanceAfter decimal.Decimal) error
	// LastBefore returns the canonical-last entry with occurred_at
	// strictly before the given instant, or domain.ErrEntryNotFound.
	LastBefore(ctx context.Context, accountID string, before time.Time) (*domain.LedgerEntry, error)
	// ListWindow returns entries with occurred_at in [from, to) in
	// canonical order.
	ListWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.LedgerEntry, error)
	// ListByAccount returns a page of entries in reverse canonical order.
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	// ListTransferLegs returns TRANSFER_IN/TRANSFER_OUT entries with
	// occurred_at in [from, to), ordered by source_ref_id.
	ListTransferLegs(ctx context.Context, from, to time.Time) ([]*domain.LedgerEntry, error)
	// ListAccountIDs returns the distinct account ids present in the ledger.
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// SnapshotRepository defines data access for daily snapshots.
type SnapshotRepository interface {
	// Upsert writes a snapshot keyed by (balance_account_id, date).
	Upsert(ctx context.Context, snapshot *domain.DailySnapshot) error
	Get(ctx context.Context, accountID string, date time.Time) (*domain.DailySnapshot, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique, sortable IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations for derived snapshot data.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key sharing a prefix. Used to drop an
	// account's cached snapshots after its balances are rewritten.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Retrier retries an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
