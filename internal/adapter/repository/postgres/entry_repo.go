package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cashtrail/cashtrail/internal/domain"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

const entryColumns = `id, balance_account_id, source_type, source_ref_id, amount, currency, occurred_at, created_at, balance_after, metadata`

// EntryRepository implements usecase.EntryRepository on PostgreSQL.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (r *EntryRepository) q(tx usecase.Transaction) querier {
	if tx == nil {
		return r.pool
	}

	return tx.(*Tx).PgxTx()
}

// CreateBatch inserts entries in one round trip; the whole batch fails
// together when any row is rejected.
func (r *EntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) error {
	batch := &pgx.Batch{}

	for _, e := range entries {
		meta, err := metadataToJSON(e.Metadata)
		if err != nil {
			return err
		}

		batch.Queue(
			`INSERT INTO ledger_entries (`+entryColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID,
			e.BalanceAccountID,
			string(e.SourceType),
			e.SourceRefID,
			decimalToNumeric(e.Amount),
			e.Currency,
			timeToPgTimestamptz(e.OccurredAt),
			timeToPgTimestamptz(e.CreatedAt),
			decimalToNumeric(e.BalanceAfter),
			meta,
		)
	}

	results := r.q(tx).SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return results.Close()
}

// LastByAccount returns the canonical-last entry for an account.
func (r *EntryRepository) LastByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (*domain.LedgerEntry, error) {
	row := r.q(tx).QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE balance_account_id = $1
		 ORDER BY occurred_at DESC, created_at DESC, id DESC
		 LIMIT 1`,
		accountID,
	)

	return scanEntry(row)
}

// ListByAccountOrdered returns every entry for an account in canonical
// order. With a transaction the rows are locked for update, which backs
// the blind balance_after overwrite of the recompute pass.
func (r *EntryRepository) ListByAccountOrdered(ctx context.Context, tx usecase.Transaction, accountID string) ([]*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + `
		 FROM ledger_entries
		 WHERE balance_account_id = $1
		 ORDER BY occurred_at, created_at, id`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	rows, err := r.q(tx).Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// UpdateBalanceAfter rewrites the derived running balance of one row.
func (r *EntryRepository) UpdateBalanceAfter(ctx context.Context, tx usecase.Transaction, id string, balanceAfter decimal.Decimal) error {
	tag, err := r.q(tx).Exec(ctx,
		`UPDATE ledger_entries SET balance_after = $2 WHERE id = $1`,
		id, decimalToNumeric(balanceAfter),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// LastBefore returns the canonical-last entry with occurred_at strictly
// before the given instant.
func (r *EntryRepository) LastBefore(ctx context.Context, accountID string, before time.Time) (*domain.LedgerEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE balance_account_id = $1 AND occurred_at < $2
		 ORDER BY occurred_at DESC, created_at DESC, id DESC
		 LIMIT 1`,
		accountID, timeToPgTimestamptz(before),
	)

	return scanEntry(row)
}

// ListWindow returns entries with occurred_at in [from, to) in
// canonical order.
func (r *EntryRepository) ListWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE balance_account_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		 ORDER BY occurred_at, created_at, id`,
		accountID, timeToPgTimestamptz(from), timeToPgTimestamptz(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByAccount returns a page of entries in reverse canonical order.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE balance_account_id = $1
		 ORDER BY occurred_at DESC, created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		accountID, int32(limit), int32(offset),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListTransferLegs returns transfer legs with occurred_at in [from, to),
// grouped by source_ref_id.
func (r *EntryRepository) ListTransferLegs(ctx context.Context, from, to time.Time) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE source_type IN ($1, $2) AND occurred_at >= $3 AND occurred_at < $4
		 ORDER BY source_ref_id, occurred_at, created_at, id`,
		string(domain.SourceTypeTransferOut), string(domain.SourceTypeTransferIn),
		timeToPgTimestamptz(from), timeToPgTimestamptz(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListAccountIDs returns the distinct account ids present in the ledger.
func (r *EntryRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT balance_account_id FROM ledger_entries ORDER BY balance_account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e            domain.LedgerEntry
		sourceType   string
		amount       pgtype.Numeric
		balanceAfter pgtype.Numeric
		occurredAt   pgtype.Timestamptz
		createdAt    pgtype.Timestamptz
		meta         []byte
	)

	err := row.Scan(
		&e.ID, &e.BalanceAccountID, &sourceType, &e.SourceRefID,
		&amount, &e.Currency, &occurredAt, &createdAt, &balanceAfter, &meta,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	e.SourceType = domain.SourceType(sourceType)
	e.Amount = numericToDecimal(amount)
	e.BalanceAfter = numericToDecimal(balanceAfter)
	e.OccurredAt = occurredAt.Time
	e.CreatedAt = createdAt.Time
	e.Metadata = jsonToMetadata(meta)

	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
