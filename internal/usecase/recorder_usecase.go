package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/infrastructure/metrics"
)

// NewEntry is the normalized input for one ledger entry. The amount is
// already signed; the Record* builders apply the sign conventions for
// callers that should not have to get them right.
type NewEntry struct {
	OccurredAt       time.Time
	BalanceAccountID string
	SourceType       domain.SourceType
	SourceRefID      string
	Currency         string
	Amount           decimal.Decimal
	Metadata         map[string]any
}

// EntryRecorder normalizes and persists signed ledger entries, then
// triggers a running balance recompute for every affected account.
//
// Each account's append+recompute runs in its own transaction under the
// account's lock. A batch touching several accounts is applied
// account by account: there is no cross-account atomicity, matching the
// two-leg transfer model where legs are correlated only by source_ref_id.
type EntryRecorder struct {
	txManager  TransactionManager
	entryRepo  EntryRepository
	recomputer *BalanceRecomputer
	idGen      IDGenerator
	locks      *AccountLocks
	retrier    Retrier
	metrics    *metrics.Metrics
}

// NewEntryRecorder creates a new EntryRecorder. m may be nil.
func NewEntryRecorder(
	txManager TransactionManager,
	entryRepo EntryRepository,
	recomputer *BalanceRecomputer,
	idGen IDGenerator,
	locks *AccountLocks,
	m *metrics.Metrics,
) *EntryRecorder {
	return &EntryRecorder{
		txManager:  txManager,
		entryRepo:  entryRepo,
		recomputer: recomputer,
		idGen:      idGen,
		locks:      locks,
		metrics:    m,
	}
}

// WithRetrier sets an optional retrier for transient database errors.
func (uc *EntryRecorder) WithRetrier(r Retrier) *EntryRecorder {
	uc.retrier = r
	return uc
}

// AppendEntries validates, persists and recomputes a batch of entries.
// Inserted rows are returned with their recomputed balance_after.
func (uc *EntryRecorder) AppendEntries(ctx context.Context, inputs []NewEntry) ([]*domain.LedgerEntry, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()

	entries := make([]*domain.LedgerEntry, 0, len(inputs))
	for _, in := range inputs {
		e := &domain.LedgerEntry{
			ID:               uc.idGen.Generate(),
			BalanceAccountID: in.BalanceAccountID,
			SourceType:       in.SourceType,
			SourceRefID:      in.SourceRefID,
			Amount:           in.Amount,
			Currency:         in.Currency,
			OccurredAt:       in.OccurredAt,
			CreatedAt:        now,
			Metadata:         in.Metadata,
		}

		if err := e.Validate(); err != nil {
			uc.countError("validation")
			return nil, err
		}

		entries = append(entries, e)
	}

	// Group by account, preserving input order within each group.
	grouped := make(map[string][]*domain.LedgerEntry)
	var accountIDs []string
	for _, e := range entries {
		if _, seen := grouped[e.BalanceAccountID]; !seen {
			accountIDs = append(accountIDs, e.BalanceAccountID)
		}
		grouped[e.BalanceAccountID] = append(grouped[e.BalanceAccountID], e)
	}

	unlock := uc.locks.LockAll(accountIDs)
	defer unlock()

	for _, accountID := range accountIDs {
		if err := uc.appendForAccount(ctx, accountID, grouped[accountID]); err != nil {
			uc.countError("persistence")
			return nil, fmt.Errorf("append entries for account %s: %w", accountID, err)
		}
	}

	if uc.metrics != nil {
		for _, e := range entries {
			uc.metrics.EntriesRecorded.WithLabelValues(string(e.SourceType)).Inc()
		}
	}

	return entries, nil
}

// appendForAccount inserts one account's entries and recomputes its
// running balance in a single transaction. The caller holds the
// account lock.
func (uc *EntryRecorder) appendForAccount(ctx context.Context, accountID string, entries []*domain.LedgerEntry) error {
	var recomputed []*domain.LedgerEntry

	err := withRetry(ctx, uc.retrier, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		// Seed provisional balances by chaining off the current ending
		// balance. The values are temporary: the recompute below re-derives
		// them in canonical order, which matters when an entry is backdated.
		running := decimal.Zero
		last, err := uc.entryRepo.LastByAccount(ctx, tx, accountID)
		switch {
		case err == nil:
			running = last.BalanceAfter
		case errors.Is(err, domain.ErrEntryNotFound):
			// First entries for this account; anchor starts at zero.
		default:
			return err
		}

		for _, e := range entries {
			running = running.Add(e.Amount)
			e.BalanceAfter = running
		}

		if err := uc.entryRepo.CreateBatch(ctx, tx, entries); err != nil {
			return err
		}

		recomputed, _, err = uc.recomputer.recomputeTx(ctx, tx, accountID)
		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}

	// Refresh returned rows with post-recompute balances.
	byID := make(map[string]*domain.LedgerEntry, len(recomputed))
	for _, e := range recomputed {
		byID[e.ID] = e
	}
	for _, e := range entries {
		if r, ok := byID[e.ID]; ok {
			e.BalanceAfter = r.BalanceAfter
		}
	}

	uc.recomputer.invalidateSnapshots(ctx, accountID)

	return nil
}

func (uc *EntryRecorder) countError(reason string) {
	if uc.metrics != nil {
		uc.metrics.RecordErrors.WithLabelValues(reason).Inc()
	}
}

// DepositInput is the input for RecordDeposit and RecordWithdraw.
// Amount is a positive magnitude; the sign convention is applied by the
// operation.
type DepositInput struct {
	OccurredAt       time.Time
	BalanceAccountID string
	SourceRefID      string
	Currency         string
	Amount           decimal.Decimal
	Metadata         map[string]any
}

// RecordDeposit appends a DEPOSIT entry with amount +|amount|.
func (uc *EntryRecorder) RecordDeposit(ctx context.Context, input DepositInput) (*domain.LedgerEntry, error) {
	return uc.recordSingle(ctx, input, domain.SourceTypeDeposit, input.Amount.Abs())
}

// RecordWithdraw appends a WITHDRAW entry with amount -|amount|.
func (uc *EntryRecorder) RecordWithdraw(ctx context.Context, input DepositInput) (*domain.LedgerEntry, error) {
	return uc.recordSingle(ctx, input, domain.SourceTypeWithdraw, input.Amount.Abs().Neg())
}

func (uc *EntryRecorder) recordSingle(ctx context.Context, input DepositInput, sourceType domain.SourceType, signed decimal.Decimal) (*domain.LedgerEntry, error) {
	if err := domain.ValidatePositiveAmount(input.Amount); err != nil {
		uc.countError("validation")
		return nil, err
	}

	inserted, err := uc.AppendEntries(ctx, []NewEntry{{
		BalanceAccountID: input.BalanceAccountID,
		SourceType:       sourceType,
		SourceRefID:      input.SourceRefID,
		Amount:           signed,
		Currency:         input.Currency,
		OccurredAt:       input.OccurredAt,
		Metadata:         input.Metadata,
	}})
	if err != nil {
		return nil, err
	}

	return inserted[0], nil
}

// TransferInput is the input for RecordTransfer.
type TransferInput struct {
	OccurredAt    time.Time
	FromAccountID string
	ToAccountID   string
	Currency      string
	Amount        decimal.Decimal
	Metadata      map[string]any
}

// TransferResult holds the two legs of a recorded transfer.
type TransferResult struct {
	SourceRefID string
	OutEntry    *domain.LedgerEntry
	InEntry     *domain.LedgerEntry
}

// RecordTransfer appends a TRANSFER_OUT entry of -|amount| on the
// source account and a TRANSFER_IN entry of +|amount| on the
// destination, sharing one generated source_ref_id. The legs are two
// independent per-account writes: when the second leg fails after the
// first succeeded, the ledger keeps the one-sided transfer and the
// shared source_ref_id is the reconciliation handle.
func (uc *EntryRecorder) RecordTransfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.FromAccountID == input.ToAccountID {
		uc.countError("validation")
		return nil, domain.ErrSameAccount
	}

	if err := domain.ValidatePositiveAmount(input.Amount); err != nil {
		uc.countError("validation")
		return nil, err
	}

	refID := uc.idGen.Generate()
	magnitude := input.Amount.Abs()

	out, err := uc.AppendEntries(ctx, []NewEntry{{
		BalanceAccountID: input.FromAccountID,
		SourceType:       domain.SourceTypeTransferOut,
		SourceRefID:      refID,
		Amount:           magnitude.Neg(),
		Currency:         input.Currency,
		OccurredAt:       input.OccurredAt,
		Metadata:         input.Metadata,
	}})
	if err != nil {
		return nil, err
	}

	in, err := uc.AppendEntries(ctx, []NewEntry{{
		BalanceAccountID: input.ToAccountID,
		SourceType:       domain.SourceTypeTransferIn,
		SourceRefID:      refID,
		Amount:           magnitude,
		Currency:         input.Currency,
		OccurredAt:       input.OccurredAt,
		Metadata:         input.Metadata,
	}})
	if err != nil {
		return nil, fmt.Errorf("transfer credit leg failed, debit leg recorded under source_ref_id %s: %w", refID, err)
	}

	return &TransferResult{
		SourceRefID: refID,
		OutEntry:    out[0],
		InEntry:     in[0],
	}, nil
}

// TradeSettlementInput is the input for RecordTradeSettlement.
type TradeSettlementInput struct {
	OccurredAt       time.Time
	BalanceAccountID string
	SourceRefID      string
	Currency         string
	GrossPnL         decimal.Decimal
	Commission       decimal.Decimal
	Swap             decimal.Decimal
	Metadata         map[string]any
}

// RecordTradeSettlement appends a TRADE_PNL entry carrying the raw
// signed gross P&L, plus a COMMISSION and a SWAP entry when those
// values are non-zero.
//
// Commission and swap are always recorded as -|value|. A positive swap
// credit (a rebate) is therefore booked as a cost; that matches the
// observed behavior of the system this engine settles for and is kept
// until an authoritative ruling says otherwise.
func (uc *EntryRecorder) RecordTradeSettlement(ctx context.Context, input TradeSettlementInput) ([]*domain.LedgerEntry, error) {
	inputs := []NewEntry{{
		BalanceAccountID: input.BalanceAccountID,
		SourceType:       domain.SourceTypeTradePnL,
		SourceRefID:      input.SourceRefID,
		Amount:           input.GrossPnL,
		Currency:         input.Currency,
		OccurredAt:       input.OccurredAt,
		Metadata:         input.Metadata,
	}}

	if !input.Commission.IsZero() {
		inputs = append(inputs, NewEntry{
			BalanceAccountID: input.BalanceAccountID,
			SourceType:       domain.SourceTypeCommission,
			SourceRefID:      input.SourceRefID,
			Amount:           input.Commission.Abs().Neg(),
			Currency:         input.Currency,
			OccurredAt:       input.OccurredAt,
			Metadata:         input.Metadata,
		})
	}

	if !input.Swap.IsZero() {
		inputs = append(inputs, NewEntry{
			BalanceAccountID: input.BalanceAccountID,
			SourceType:       domain.SourceTypeSwap,
			SourceRefID:      input.SourceRefID,
			Amount:           input.Swap.Abs().Neg(),
			Currency:         input.Currency,
			OccurredAt:       input.OccurredAt,
			Metadata:         input.Metadata,
		})
	}

	return uc.AppendEntries(ctx, inputs)
}
