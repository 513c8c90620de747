package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/infrastructure/metrics"
)

// BalanceRecomputer rewrites the derived balance_after of every entry
// belonging to one account so the running-sum invariant holds again
// after a mutation.
//
// Entries can be appended out of chronological order (backdated
// corrections), so the whole per-account sequence is re-derived in
// canonical order. The pass is anchored: the recomputed ending balance
// always equals the ending balance stored before the pass, which
// preserves manual corrections established out of band.
type BalanceRecomputer struct {
	txManager TransactionManager
	entryRepo EntryRepository
	locks     *AccountLocks
	cache     Cache
	retrier   Retrier
	metrics   *metrics.Metrics
}

// NewBalanceRecomputer creates a new BalanceRecomputer. cache and m may
// be nil.
func NewBalanceRecomputer(
	txManager TransactionManager,
	entryRepo EntryRepository,
	locks *AccountLocks,
	cache Cache,
	m *metrics.Metrics,
) *BalanceRecomputer {
	return &BalanceRecomputer{
		txManager: txManager,
		entryRepo: entryRepo,
		locks:     locks,
		cache:     cache,
		metrics:   m,
	}
}

// WithRetrier sets an optional retrier for transient database errors.
func (uc *BalanceRecomputer) WithRetrier(r Retrier) *BalanceRecomputer {
	uc.retrier = r
	return uc
}

// Recompute re-derives balance_after for every entry of the account and
// returns the count of rows rewritten. The whole pass runs in one
// transaction under the account's lock.
func (uc *BalanceRecomputer) Recompute(ctx context.Context, accountID string) (int, error) {
	unlock := uc.locks.Lock(accountID)
	defer unlock()

	var rewritten int

	err := withRetry(ctx, uc.retrier, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		_, rewritten, err = uc.recomputeTx(ctx, tx, accountID)
		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}

	uc.invalidateSnapshots(ctx, accountID)

	return rewritten, nil
}

// withRetry runs op through the retrier when one is configured.
func withRetry(ctx context.Context, r Retrier, op func() error) error {
	if r == nil {
		return op()
	}
	return r.Retry(ctx, op)
}

// recomputeTx performs the rewrite inside an open transaction. The
// caller must hold the account lock. Returns the entries in canonical
// order, with recomputed balances, and the rewritten count.
func (uc *BalanceRecomputer) recomputeTx(ctx context.Context, tx Transaction, accountID string) ([]*domain.LedgerEntry, int, error) {
	start := time.Now()

	entries, err := uc.entryRepo.ListByAccountOrdered(ctx, tx, accountID)
	if err != nil {
		return nil, 0, fmt.Errorf("load entries for account %s: %w", accountID, err)
	}

	if len(entries) == 0 {
		return nil, 0, nil
	}

	// The anchor is the currently recorded ending balance: whatever the
	// canonical-last row says before any value is rewritten. Seeding the
	// walk with anchor - sum(amount) guarantees the recomputed ending
	// balance still matches it.
	anchor := entries[len(entries)-1].BalanceAfter

	totalDelta := decimal.Zero
	for _, e := range entries {
		totalDelta = totalDelta.Add(e.Amount)
	}

	running := anchor.Sub(totalDelta)

	rewritten := 0
	for _, e := range entries {
		running = running.Add(e.Amount)
		if e.BalanceAfter.Equal(running) {
			continue
		}

		if err := uc.entryRepo.UpdateBalanceAfter(ctx, tx, e.ID, running); err != nil {
			return nil, rewritten, fmt.Errorf("rewrite balance_after for entry %s: %w", e.ID, err)
		}

		e.BalanceAfter = running
		rewritten++
	}

	if uc.metrics != nil {
		uc.metrics.RecomputeRuns.Inc()
		uc.metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
		uc.metrics.BalanceRewrites.Add(float64(rewritten))
	}

	return entries, rewritten, nil
}

// invalidateSnapshots drops the account's cached daily snapshots after
// its balances changed.
func (uc *BalanceRecomputer) invalidateSnapshots(ctx context.Context, accountID string) {
	if uc.cache == nil {
		return
	}

	// Best effort: a stale cache entry expires on its own TTL.
	_ = uc.cache.DeletePrefix(ctx, snapshotCacheKey(accountID, ""))
}
