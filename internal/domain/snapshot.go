package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySnapshot is the per-account, per-day rollup derived from the
// ledger. It carries no independent state and can be rebuilt at any
// time; the upsert key is (balance_account_id, snapshot_date).
//
// DepositAmount and WithdrawAmount are reported as positive magnitudes.
// TradingNetResult sums TRADE_PNL + COMMISSION + SWAP; AdjustmentAmount
// sums ADJUSTMENT + BONUS + BONUS_REMOVAL.
type DailySnapshot struct {
	Date              time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	BalanceAccountID  string
	OpeningBalance    decimal.Decimal
	ClosingBalance    decimal.Decimal
	NetChange         decimal.Decimal
	DepositAmount     decimal.Decimal
	WithdrawAmount    decimal.Decimal
	TransferInAmount  decimal.Decimal
	TransferOutAmount decimal.Decimal
	TradingNetResult  decimal.Decimal
	AdjustmentAmount  decimal.Decimal
}
