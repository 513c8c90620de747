package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType classifies why a ledger entry exists. The set is closed:
// every value must be handled when bucketing entries for reporting.
type SourceType string

const (
	SourceTypeDeposit      SourceType = "DEPOSIT"
	SourceTypeWithdraw     SourceType = "WITHDRAW"
	SourceTypeTransferIn   SourceType = "TRANSFER_IN"
	SourceTypeTransferOut  SourceType = "TRANSFER_OUT"
	SourceTypeTradePnL     SourceType = "TRADE_PNL"
	SourceTypeCommission   SourceType = "COMMISSION"
	SourceTypeSwap         SourceType = "SWAP"
	SourceTypeAdjustment   SourceType = "ADJUSTMENT"
	SourceTypeBonus        SourceType = "BONUS"
	SourceTypeBonusRemoval SourceType = "BONUS_REMOVAL"
)

var validSourceTypes = map[SourceType]bool{
	SourceTypeDeposit:      true,
	SourceTypeWithdraw:     true,
	SourceTypeTransferIn:   true,
	SourceTypeTransferOut:  true,
	SourceTypeTradePnL:     true,
	SourceTypeCommission:   true,
	SourceTypeSwap:         true,
	SourceTypeAdjustment:   true,
	SourceTypeBonus:        true,
	SourceTypeBonusRemoval: true,
}

// Valid reports whether s is a member of the closed source type set.
func (s SourceType) Valid() bool {
	return validSourceTypes[s]
}

// LedgerEntry is one signed movement against one balance account.
// Everything except BalanceAfter is write-once; BalanceAfter is derived
// and only ever rewritten by the running balance recomputer.
type LedgerEntry struct {
	OccurredAt       time.Time
	CreatedAt        time.Time
	ID               string
	BalanceAccountID string
	SourceType       SourceType
	SourceRefID      string
	Currency         string
	Amount           decimal.Decimal
	BalanceAfter     decimal.Decimal
	Metadata         map[string]any
}

// Validate checks the write-once fields of an entry.
func (e *LedgerEntry) Validate() error {
	if e.BalanceAccountID == "" {
		return ErrMissingAccountID
	}

	if !e.SourceType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSourceType, e.SourceType)
	}

	if err := ValidateCurrency(e.Currency); err != nil {
		return err
	}

	if e.OccurredAt.IsZero() {
		return ErrMissingOccurredAt
	}

	return ValidateMetadata(e.Metadata)
}

// CanonicalLess reports whether a sorts before b in canonical ledger
// order: (occurred_at, created_at, id) ascending. The id is the final
// deterministic tie-break when both timestamps collide.
func CanonicalLess(a, b *LedgerEntry) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return a.ID < b.ID
}
