package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cashtrail/cashtrail/internal/adapter/http/dto"
	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// LedgerHandler handles entry recording and recompute HTTP requests.
type LedgerHandler struct {
	recorder   *usecase.EntryRecorder
	recomputer *usecase.BalanceRecomputer
	entryRepo  usecase.EntryRepository
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(recorder *usecase.EntryRecorder, recomputer *usecase.BalanceRecomputer, entryRepo usecase.EntryRepository) *LedgerHandler {
	return &LedgerHandler{
		recorder:   recorder,
		recomputer: recomputer,
		entryRepo:  entryRepo,
	}
}

// AppendEntries appends a batch of pre-signed entries.
func (h *LedgerHandler) AppendEntries(w http.ResponseWriter, r *http.Request) {
	var req dto.AppendEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "empty entry batch", "")
		return
	}

	entries, err := h.recorder.AppendEntries(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to append entries", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntriesFromDomain(entries))
}

// Deposit records a DEPOSIT entry.
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.recorder.RecordDeposit(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record deposit", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Withdraw records a WITHDRAW entry.
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.recorder.RecordWithdraw(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record withdrawal", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Transfer records the two legs of a transfer.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.recorder.RecordTransfer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromResult(result))
}

// TradeSettlement records a closed trade's PnL, commission and swap.
func (h *LedgerHandler) TradeSettlement(w http.ResponseWriter, r *http.Request) {
	var req dto.TradeSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entries, err := h.recorder.RecordTradeSettlement(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record trade settlement", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntriesFromDomain(entries))
}

// Recompute re-derives the running balance of one account.
func (h *LedgerHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	rewritten, err := h.recomputer.Recompute(r.Context(), accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to recompute balances", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RecomputeResponse{
		BalanceAccountID: accountID,
		RewrittenCount:   rewritten,
	})
}

// ListEntries lists an account's entries, newest first.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit, offset := domain.ValidatePagination(
		parseIntQuery(r, "limit", 50),
		parseIntQuery(r, "offset", 0),
	)

	entries, err := h.entryRepo.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entries", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
