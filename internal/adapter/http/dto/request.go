package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// AppendEntriesRequest represents a raw append of signed ledger entries.
type AppendEntriesRequest struct {
	Entries []EntryItem `json:"entries"`
}

// EntryItem represents a single entry in an append request.
type EntryItem struct {
	BalanceAccountID string          `json:"balance_account_id"`
	SourceType       string          `json:"source_type"`
	SourceRefID      string          `json:"source_ref_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *AppendEntriesRequest) ToUseCaseInput() []usecase.NewEntry {
	inputs := make([]usecase.NewEntry, len(r.Entries))
	for i, e := range r.Entries {
		inputs[i] = usecase.NewEntry{
			BalanceAccountID: e.BalanceAccountID,
			SourceType:       domain.SourceType(e.SourceType),
			SourceRefID:      e.SourceRefID,
			Amount:           e.Amount,
			Currency:         e.Currency,
			OccurredAt:       e.OccurredAt,
			Metadata:         e.Metadata,
		}
	}
	return inputs
}

// DepositRequest represents a deposit or withdrawal. Amount is a
// positive magnitude; the route decides the sign.
type DepositRequest struct {
	BalanceAccountID string          `json:"balance_account_id"`
	SourceRefID      string          `json:"source_ref_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *DepositRequest) ToUseCaseInput() usecase.DepositInput {
	return usecase.DepositInput{
		BalanceAccountID: r.BalanceAccountID,
		SourceRefID:      r.SourceRefID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		OccurredAt:       r.OccurredAt,
		Metadata:         r.Metadata,
	}
}

// TransferRequest represents a two-leg transfer between accounts.
type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput() usecase.TransferInput {
	return usecase.TransferInput{
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		OccurredAt:    r.OccurredAt,
		Metadata:      r.Metadata,
	}
}

// TradeSettlementRequest represents a closed trade settlement.
type TradeSettlementRequest struct {
	BalanceAccountID string          `json:"balance_account_id"`
	SourceRefID      string          `json:"source_ref_id,omitempty"`
	Currency         string          `json:"currency"`
	GrossPnL         decimal.Decimal `json:"gross_pnl"`
	Commission       decimal.Decimal `json:"commission"`
	Swap             decimal.Decimal `json:"swap"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TradeSettlementRequest) ToUseCaseInput() usecase.TradeSettlementInput {
	return usecase.TradeSettlementInput{
		BalanceAccountID: r.BalanceAccountID,
		SourceRefID:      r.SourceRefID,
		Currency:         r.Currency,
		GrossPnL:         r.GrossPnL,
		Commission:       r.Commission,
		Swap:             r.Swap,
		OccurredAt:       r.OccurredAt,
		Metadata:         r.Metadata,
	}
}
