package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID               string          `json:"id"`
	BalanceAccountID string          `json:"balance_account_id"`
	SourceType       string          `json:"source_type"`
	SourceRefID      string          `json:"source_ref_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	OccurredAt       time.Time       `json:"occurred_at"`
	CreatedAt        time.Time       `json:"created_at"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:               e.ID,
		BalanceAccountID: e.BalanceAccountID,
		SourceType:       string(e.SourceType),
		SourceRefID:      e.SourceRefID,
		Amount:           e.Amount,
		Currency:         e.Currency,
		BalanceAfter:     e.BalanceAfter,
		OccurredAt:       e.OccurredAt,
		CreatedAt:        e.CreatedAt,
		Metadata:         e.Metadata,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// TransferResponse represents the two legs of a recorded transfer.
type TransferResponse struct {
	SourceRefID string         `json:"source_ref_id"`
	OutEntry    *EntryResponse `json:"out_entry"`
	InEntry     *EntryResponse `json:"in_entry"`
}

// TransferFromResult converts a transfer result to a response.
func TransferFromResult(t *usecase.TransferResult) *TransferResponse {
	return &TransferResponse{
		SourceRefID: t.SourceRefID,
		OutEntry:    EntryFromDomain(t.OutEntry),
		InEntry:     EntryFromDomain(t.InEntry),
	}
}

// RecomputeResponse reports a recompute pass.
type RecomputeResponse struct {
	BalanceAccountID string `json:"balance_account_id"`
	RewrittenCount   int    `json:"rewritten_count"`
}

// SnapshotResponse represents a daily snapshot in API responses.
type SnapshotResponse struct {
	BalanceAccountID  string          `json:"balance_account_id"`
	Date              string          `json:"date"`
	OpeningBalance    decimal.Decimal `json:"opening_balance"`
	ClosingBalance    decimal.Decimal `json:"closing_balance"`
	NetChange         decimal.Decimal `json:"net_change"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	WithdrawAmount    decimal.Decimal `json:"withdraw_amount"`
	TransferInAmount  decimal.Decimal `json:"transfer_in_amount"`
	TransferOutAmount decimal.Decimal `json:"transfer_out_amount"`
	TradingNetResult  decimal.Decimal `json:"trading_net_result"`
	AdjustmentAmount  decimal.Decimal `json:"adjustment_amount"`
}

// SnapshotFromDomain converts a domain snapshot to a response.
func SnapshotFromDomain(s *domain.DailySnapshot) *SnapshotResponse {
	return &SnapshotResponse{
		BalanceAccountID:  s.BalanceAccountID,
		Date:              s.Date.Format("2006-01-02"),
		OpeningBalance:    s.OpeningBalance,
		ClosingBalance:    s.ClosingBalance,
		NetChange:         s.NetChange,
		DepositAmount:     s.DepositAmount,
		WithdrawAmount:    s.WithdrawAmount,
		TransferInAmount:  s.TransferInAmount,
		TransferOutAmount: s.TransferOutAmount,
		TradingNetResult:  s.TradingNetResult,
		AdjustmentAmount:  s.AdjustmentAmount,
	}
}

// SnapshotsFromDomain converts domain snapshots to responses.
func SnapshotsFromDomain(snaps []*domain.DailySnapshot) []*SnapshotResponse {
	result := make([]*SnapshotResponse, len(snaps))
	for i, s := range snaps {
		result[i] = SnapshotFromDomain(s)
	}
	return result
}

// TransferLegResponse reports one reconciled transfer pair.
type TransferLegResponse struct {
	SourceRefID string         `json:"source_ref_id"`
	OutEntry    *EntryResponse `json:"out_entry,omitempty"`
	InEntry     *EntryResponse `json:"in_entry,omitempty"`
	Issue       string         `json:"issue"`
}

// TransferLegsFromReports converts reconciliation reports to responses.
func TransferLegsFromReports(reports []*usecase.TransferLegReport) []*TransferLegResponse {
	result := make([]*TransferLegResponse, len(reports))
	for i, r := range reports {
		resp := &TransferLegResponse{
			SourceRefID: r.SourceRefID,
			Issue:       r.Issue,
		}
		if r.OutEntry != nil {
			resp.OutEntry = EntryFromDomain(r.OutEntry)
		}
		if r.InEntry != nil {
			resp.InEntry = EntryFromDomain(r.InEntry)
		}
		result[i] = resp
	}
	return result
}

// ConsistencyViolationResponse reports one running-sum break.
type ConsistencyViolationResponse struct {
	BalanceAccountID string `json:"balance_account_id"`
	EntryID          string `json:"entry_id"`
	Expected         string `json:"expected"`
	Actual           string `json:"actual"`
}

// ConsistencyResponse reports a full-ledger consistency check.
type ConsistencyResponse struct {
	Consistent      bool                            `json:"consistent"`
	AccountsChecked int                             `json:"accounts_checked"`
	EntriesChecked  int                             `json:"entries_checked"`
	Violations      []*ConsistencyViolationResponse `json:"violations,omitempty"`
}

// ConsistencyFromReport converts a consistency report to a response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Consistent:      r.Consistent(),
		AccountsChecked: r.AccountsChecked,
		EntriesChecked:  r.EntriesChecked,
	}
	for _, v := range r.Violations {
		resp.Violations = append(resp.Violations, &ConsistencyViolationResponse{
			BalanceAccountID: v.AccountID,
			EntryID:          v.EntryID,
			Expected:         v.Expected,
			Actual:           v.Actual,
		})
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
