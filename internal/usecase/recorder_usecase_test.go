package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
	"github.com/cashtrail/cashtrail/internal/usecase/mocks"
)

var (
	t1 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	t3 = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	t4 = time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)
)

type engine struct {
	recorder   *usecase.EntryRecorder
	recomputer *usecase.BalanceRecomputer
	entryRepo  *mocks.MockEntryRepository
	cache      *mocks.MockCache
}

func newEngine() *engine {
	entryRepo := mocks.NewMockEntryRepository()
	txManager := mocks.NewMockTransactionManager()
	locks := usecase.NewAccountLocks()
	cache := mocks.NewMockCache()

	recomputer := usecase.NewBalanceRecomputer(txManager, entryRepo, locks, cache, nil)
	recorder := usecase.NewEntryRecorder(txManager, entryRepo, recomputer, mocks.NewMockIDGenerator(), locks, nil)

	return &engine{
		recorder:   recorder,
		recomputer: recomputer,
		entryRepo:  entryRepo,
		cache:      cache,
	}
}

func requireBalance(t *testing.T, e *domain.LedgerEntry, want int64) {
	t.Helper()

	if !e.BalanceAfter.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("expected balance_after %d, got %s", want, e.BalanceAfter)
	}
}

func TestRecordDeposit_EmptyLedger(t *testing.T) {
	eng := newEngine()

	entry, err := eng.recorder.RecordDeposit(context.Background(), usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		OccurredAt:       t1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.SourceType != domain.SourceTypeDeposit {
		t.Errorf("expected DEPOSIT, got %s", entry.SourceType)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected amount +1000, got %s", entry.Amount)
	}
	requireBalance(t, entry, 1000)
}

func TestRecordWithdraw_AfterDeposit(t *testing.T) {
	eng := newEngine()
	ctx := context.Background()

	dep, err := eng.recorder.RecordDeposit(ctx, usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		OccurredAt:       t1,
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	wd, err := eng.recorder.RecordWithdraw(ctx, usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(400),
		Currency:         "USD",
		OccurredAt:       t2,
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if !wd.Amount.Equal(decimal.NewFromInt(-400)) {
		t.Errorf("expected amount -400, got %s", wd.Amount)
	}
	requireBalance(t, wd, 600)

	// Anchor recompute over both entries reproduces [1000, 600].
	if _, err := eng.recomputer.Recompute(ctx, "acc-a"); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	requireBalance(t, eng.entryRepo.Get(dep.ID), 1000)
	requireBalance(t, eng.entryRepo.Get(wd.ID), 600)
}

func TestRecordTradeSettlement(t *testing.T) {
	eng := newEngine()
	ctx := context.Background()

	if _, err := eng.recorder.RecordDeposit(ctx, usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		OccurredAt:       t1,
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := eng.recorder.RecordWithdraw(ctx, usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(400),
		Currency:         "USD",
		OccurredAt:       t2,
	}); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	entries, err := eng.recorder.RecordTradeSettlement(ctx, usecase.TradeSettlementInput{
		BalanceAccountID: "acc-a",
		SourceRefID:      "order-77",
		GrossPnL:         decimal.NewFromInt(50),
		Commission:       decimal.NewFromInt(5),
		Swap:             decimal.NewFromInt(2),
		Currency:         "USD",
		OccurredAt:       t3,
	})
	if err != nil {
		t.Fatalf("trade settlement failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	wantAmounts := map[domain.SourceType]int64{
		domain.SourceTypeTradePnL:   50,
		domain.SourceTypeCommission: -5,
		domain.SourceTypeSwap:       -2,
	}
	for _, e := range entries {
		want, ok := wantAmounts[e.SourceType]
		if !ok {
			t.Fatalf("unexpected source type %s", e.SourceType)
		}
		if !e.Amount.Equal(decimal.NewFromInt(want)) {
			t.Errorf("%s: expected amount %d, got %s", e.SourceType, want, e.Amount)
		}
		if e.SourceRefID != "order-77" {
			t.Errorf("%s: expected shared source_ref_id, got %q", e.SourceType, e.SourceRefID)
		}
	}

	// 600 + 50 - 5 - 2 = 643
	requireBalance(t, entries[len(entries)-1], 643)
}

func TestRecordTradeSettlement_PositiveSwapForcedNegative(t *testing.T) {
	eng := newEngine()

	// A swap rebate comes in positive; the recorder books it as -|swap|.
	entries, err := eng.recorder.RecordTradeSettlement(context.Background(), usecase.TradeSettlementInput{
		BalanceAccountID: "acc-a",
		GrossPnL:         decimal.NewFromInt(10),
		Swap:             decimal.NewFromFloat(1.5),
		Currency:         "USD",
		OccurredAt:       t1,
	})
	if err != nil {
		t.Fatalf("trade settlement failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (zero commission skipped), got %d", len(entries))
	}

	swap := entries[1]
	if swap.SourceType != domain.SourceTypeSwap {
		t.Fatalf("expected SWAP entry, got %s", swap.SourceType)
	}
	if !swap.Amount.Equal(decimal.NewFromFloat(-1.5)) {
		t.Errorf("expected swap forced to -1.5, got %s", swap.Amount)
	}
}

func TestRecordTransfer(t *testing.T) {
	eng := newEngine()
	ctx := context.Background()

	if _, err := eng.recorder.RecordDeposit(ctx, usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(643),
		Currency:         "USD",
		OccurredAt:       t1,
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	result, err := eng.recorder.RecordTransfer(ctx, usecase.TransferInput{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		Amount:        decimal.NewFromInt(200),
		Currency:      "USD",
		OccurredAt:    t4,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if result.OutEntry.SourceType != domain.SourceTypeTransferOut {
		t.Errorf("expected TRANSFER_OUT, got %s", result.OutEntry.SourceType)
	}
	if result.InEntry.SourceType != domain.SourceTypeTransferIn {
		t.Errorf("expected TRANSFER_IN, got %s", result.InEntry.SourceType)
	}
	if !result.OutEntry.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("expected out amount -200, got %s", result.OutEntry.Amount)
	}
	if !result.InEntry.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected in amount +200, got %s", result.InEntry.Amount)
	}

	requireBalance(t, result.OutEntry, 443)
	requireBalance(t, result.InEntry, 200)

	if result.SourceRefID == "" {
		t.Fatal("expected generated source_ref_id")
	}
	if result.OutEntry.SourceRefID != result.SourceRefID || result.InEntry.SourceRefID != result.SourceRefID {
		t.Error("expected both legs to share the source_ref_id")
	}
}

func TestRecordTransfer_SameAccountRejected(t *testing.T) {
	eng := newEngine()

	_, err := eng.recorder.RecordTransfer(context.Background(), usecase.TransferInput{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-a",
		Amount:        decimal.NewFromInt(10),
		Currency:      "USD",
		OccurredAt:    t1,
	})
	if !errors.Is(err, domain.ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
}

func TestRecordDeposit_RejectsNonPositiveAmount(t *testing.T) {
	eng := newEngine()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		_, err := eng.recorder.RecordDeposit(context.Background(), usecase.DepositInput{
			BalanceAccountID: "acc-a",
			Amount:           amount,
			Currency:         "USD",
			OccurredAt:       t1,
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestAppendEntries_RejectsUnknownSourceType(t *testing.T) {
	eng := newEngine()

	_, err := eng.recorder.AppendEntries(context.Background(), []usecase.NewEntry{{
		BalanceAccountID: "acc-a",
		SourceType:       "CASHBACK",
		Amount:           decimal.NewFromInt(10),
		Currency:         "USD",
		OccurredAt:       t1,
	}})
	if !errors.Is(err, domain.ErrUnknownSourceType) {
		t.Fatalf("expected ErrUnknownSourceType, got %v", err)
	}

	// Nothing persisted: rejection happens before the store is touched.
	ids, err := eng.entryRepo.ListAccountIDs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty ledger, got accounts %v", ids)
	}
}

func TestAppendEntries_GroupsByAccount(t *testing.T) {
	eng := newEngine()

	entries, err := eng.recorder.AppendEntries(context.Background(), []usecase.NewEntry{
		{BalanceAccountID: "acc-a", SourceType: domain.SourceTypeDeposit, Amount: decimal.NewFromInt(100), Currency: "USD", OccurredAt: t1},
		{BalanceAccountID: "acc-b", SourceType: domain.SourceTypeDeposit, Amount: decimal.NewFromInt(50), Currency: "USD", OccurredAt: t1},
		{BalanceAccountID: "acc-a", SourceType: domain.SourceTypeAdjustment, Amount: decimal.NewFromInt(-30), Currency: "USD", OccurredAt: t2},
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Each account's running balance is derived independently.
	requireBalance(t, eng.entryRepo.Get(entries[0].ID), 100)
	requireBalance(t, eng.entryRepo.Get(entries[1].ID), 50)
	requireBalance(t, eng.entryRepo.Get(entries[2].ID), 70)
}

func TestAppendEntries_BatchInsertFailureWritesNothing(t *testing.T) {
	eng := newEngine()
	insertErr := errors.New("connection reset")
	eng.entryRepo.CreateBatchFunc = func(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) error {
		return insertErr
	}

	_, err := eng.recorder.RecordDeposit(context.Background(), usecase.DepositInput{
		BalanceAccountID: "acc-a",
		Amount:           decimal.NewFromInt(100),
		Currency:         "USD",
		OccurredAt:       t1,
	})
	if !errors.Is(err, insertErr) {
		t.Fatalf("expected insert error surfaced, got %v", err)
	}

	eng.entryRepo.CreateBatchFunc = nil
	ids, _ := eng.entryRepo.ListAccountIDs(context.Background())
	if len(ids) != 0 {
		t.Fatal("expected no entries after failed batch insert")
	}
}
