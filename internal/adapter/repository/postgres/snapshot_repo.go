package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cashtrail/cashtrail/internal/domain"
)

// SnapshotRepository implements usecase.SnapshotRepository on PostgreSQL.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Upsert writes a snapshot row keyed by (balance_account_id, snapshot_date).
func (r *SnapshotRepository) Upsert(ctx context.Context, s *domain.DailySnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO daily_snapshots (
			balance_account_id, snapshot_date,
			opening_balance, closing_balance, net_change,
			deposit_amount, withdraw_amount,
			transfer_in_amount, transfer_out_amount,
			trading_net_result, adjustment_amount,
			created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		 ON CONFLICT (balance_account_id, snapshot_date) DO UPDATE SET
			opening_balance = EXCLUDED.opening_balance,
			closing_balance = EXCLUDED.closing_balance,
			net_change = EXCLUDED.net_change,
			deposit_amount = EXCLUDED.deposit_amount,
			withdraw_amount = EXCLUDED.withdraw_amount,
			transfer_in_amount = EXCLUDED.transfer_in_amount,
			transfer_out_amount = EXCLUDED.transfer_out_amount,
			trading_net_result = EXCLUDED.trading_net_result,
			adjustment_amount = EXCLUDED.adjustment_amount,
			updated_at = now()`,
		s.BalanceAccountID,
		pgtype.Date{Time: s.Date, Valid: true},
		decimalToNumeric(s.OpeningBalance),
		decimalToNumeric(s.ClosingBalance),
		decimalToNumeric(s.NetChange),
		decimalToNumeric(s.DepositAmount),
		decimalToNumeric(s.WithdrawAmount),
		decimalToNumeric(s.TransferInAmount),
		decimalToNumeric(s.TransferOutAmount),
		decimalToNumeric(s.TradingNetResult),
		decimalToNumeric(s.AdjustmentAmount),
	)

	return err
}

// Get returns the stored snapshot for (account, date).
func (r *SnapshotRepository) Get(ctx context.Context, accountID string, date time.Time) (*domain.DailySnapshot, error) {
	var (
		s           domain.DailySnapshot
		day         pgtype.Date
		opening     pgtype.Numeric
		closing     pgtype.Numeric
		netChange   pgtype.Numeric
		deposit     pgtype.Numeric
		withdraw    pgtype.Numeric
		transferIn  pgtype.Numeric
		transferOut pgtype.Numeric
		trading     pgtype.Numeric
		adjustment  pgtype.Numeric
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx,
		`SELECT balance_account_id, snapshot_date,
			opening_balance, closing_balance, net_change,
			deposit_amount, withdraw_amount,
			transfer_in_amount, transfer_out_amount,
			trading_net_result, adjustment_amount,
			created_at, updated_at
		 FROM daily_snapshots
		 WHERE balance_account_id = $1 AND snapshot_date = $2`,
		accountID, pgtype.Date{Time: date, Valid: true},
	).Scan(
		&s.BalanceAccountID, &day,
		&opening, &closing, &netChange,
		&deposit, &withdraw,
		&transferIn, &transferOut,
		&trading, &adjustment,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Date = day.Time
	s.OpeningBalance = numericToDecimal(opening)
	s.ClosingBalance = numericToDecimal(closing)
	s.NetChange = numericToDecimal(netChange)
	s.DepositAmount = numericToDecimal(deposit)
	s.WithdrawAmount = numericToDecimal(withdraw)
	s.TransferInAmount = numericToDecimal(transferIn)
	s.TransferOutAmount = numericToDecimal(transferOut)
	s.TradingNetResult = numericToDecimal(trading)
	s.AdjustmentAmount = numericToDecimal(adjustment)
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time

	return &s, nil
}
