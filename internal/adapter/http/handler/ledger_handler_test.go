package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/adapter/http/dto"
	"github.com/cashtrail/cashtrail/internal/usecase"
	"github.com/cashtrail/cashtrail/internal/usecase/mocks"
)

var occurredAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newLedgerHandler() (*LedgerHandler, *mocks.MockEntryRepository) {
	entryRepo := mocks.NewMockEntryRepository()
	txManager := mocks.NewMockTransactionManager()
	locks := usecase.NewAccountLocks()

	recomputer := usecase.NewBalanceRecomputer(txManager, entryRepo, locks, nil, nil)
	recorder := usecase.NewEntryRecorder(txManager, entryRepo, recomputer, mocks.NewMockIDGenerator(), locks, nil)

	return NewLedgerHandler(recorder, recomputer, entryRepo), entryRepo
}

func newLedgerRouter(h *LedgerHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/entries", h.AppendEntries)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/transfers", h.Transfer)
	r.Post("/trades", h.TradeSettlement)
	r.Post("/accounts/{id}/recompute", h.Recompute)
	r.Get("/accounts/{id}/entries", h.ListEntries)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestLedgerHandler_Deposit(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/deposits", dto.DepositRequest{
		BalanceAccountID: "acc-1",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		OccurredAt:       occurredAt,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SourceType != "DEPOSIT" {
		t.Fatalf("expected DEPOSIT, got %s", resp.SourceType)
	}
	if !resp.BalanceAfter.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected balance_after 1000, got %s", resp.BalanceAfter)
	}
}

func TestLedgerHandler_Deposit_InvalidBody(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/deposits", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLedgerHandler_Withdraw_SignsAmount(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	doJSON(t, router, http.MethodPost, "/deposits", dto.DepositRequest{
		BalanceAccountID: "acc-1",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		OccurredAt:       occurredAt,
	})

	rec := doJSON(t, router, http.MethodPost, "/withdrawals", dto.DepositRequest{
		BalanceAccountID: "acc-1",
		Amount:           decimal.NewFromInt(400),
		Currency:         "USD",
		OccurredAt:       occurredAt.Add(time.Hour),
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Amount.Equal(decimal.NewFromInt(-400)) {
		t.Fatalf("expected amount -400, got %s", resp.Amount)
	}
	if !resp.BalanceAfter.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected balance_after 600, got %s", resp.BalanceAfter)
	}
}

func TestLedgerHandler_Transfer(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	doJSON(t, router, http.MethodPost, "/deposits", dto.DepositRequest{
		BalanceAccountID: "acc-1",
		Amount:           decimal.NewFromInt(500),
		Currency:         "USD",
		OccurredAt:       occurredAt,
	})

	rec := doJSON(t, router, http.MethodPost, "/transfers", dto.TransferRequest{
		FromAccountID: "acc-1",
		ToAccountID:   "acc-2",
		Amount:        decimal.NewFromInt(200),
		Currency:      "USD",
		OccurredAt:    occurredAt.Add(time.Hour),
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp dto.TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SourceRefID == "" {
		t.Fatal("expected generated source_ref_id")
	}
	if resp.OutEntry.SourceRefID != resp.InEntry.SourceRefID {
		t.Fatalf("expected legs to share source_ref_id, got %s and %s", resp.OutEntry.SourceRefID, resp.InEntry.SourceRefID)
	}
	if !resp.OutEntry.BalanceAfter.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected source balance 300, got %s", resp.OutEntry.BalanceAfter)
	}
	if !resp.InEntry.BalanceAfter.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected destination balance 200, got %s", resp.InEntry.BalanceAfter)
	}
}

func TestLedgerHandler_Transfer_SameAccount(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/transfers", dto.TransferRequest{
		FromAccountID: "acc-1",
		ToAccountID:   "acc-1",
		Amount:        decimal.NewFromInt(200),
		Currency:      "USD",
		OccurredAt:    occurredAt,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLedgerHandler_TradeSettlement(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/trades", dto.TradeSettlementRequest{
		BalanceAccountID: "acc-1",
		SourceRefID:      "order-77",
		Currency:         "USD",
		GrossPnL:         decimal.NewFromInt(50),
		Commission:       decimal.NewFromInt(5),
		Swap:             decimal.NewFromInt(2),
		OccurredAt:       occurredAt,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp []dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(resp))
	}
	if !resp[2].BalanceAfter.Equal(decimal.NewFromInt(43)) {
		t.Fatalf("expected final balance 43, got %s", resp[2].BalanceAfter)
	}
}

func TestLedgerHandler_AppendEntries_EmptyBatch(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/entries", dto.AppendEntriesRequest{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLedgerHandler_Recompute(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	doJSON(t, router, http.MethodPost, "/deposits", dto.DepositRequest{
		BalanceAccountID: "acc-1",
		Amount:           decimal.NewFromInt(100),
		Currency:         "USD",
		OccurredAt:       occurredAt,
	})

	rec := doJSON(t, router, http.MethodPost, "/accounts/acc-1/recompute", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp dto.RecomputeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RewrittenCount != 0 {
		t.Fatalf("expected 0 rewrites on a consistent ledger, got %d", resp.RewrittenCount)
	}
}

func TestLedgerHandler_ListEntries(t *testing.T) {
	h, _ := newLedgerHandler()
	router := newLedgerRouter(h)

	for i, amount := range []int64{100, 50, 25} {
		doJSON(t, router, http.MethodPost, "/deposits", dto.DepositRequest{
			BalanceAccountID: "acc-1",
			Amount:           decimal.NewFromInt(amount),
			Currency:         "USD",
			OccurredAt:       occurredAt.Add(time.Duration(i) * time.Hour),
		})
	}

	rec := doJSON(t, router, http.MethodGet, "/accounts/acc-1/entries?limit=2", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp []dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp))
	}
	// Newest first.
	if !resp[0].Amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected newest entry first, got amount %s", resp[0].Amount)
	}
}
