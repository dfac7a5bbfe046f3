package journal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/services"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS did_transactions (
	id           UUID PRIMARY KEY,
	operation    TEXT NOT NULL,
	event        TEXT NOT NULL,
	address      TEXT NOT NULL,
	chain_id     BIGINT NOT NULL,
	tx_hash      TEXT NOT NULL,
	block_number BIGINT,
	gas_used     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS did_transactions_address_idx
	ON did_transactions (lower(address), created_at DESC);
`

const insertRecord = `
INSERT INTO did_transactions
	(id, operation, event, address, chain_id, tx_hash, block_number, gas_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

const listRecords = `
SELECT id, operation, event, address, chain_id, tx_hash, block_number, gas_used, created_at
FROM did_transactions
WHERE ($1 = '' OR lower(address) = lower($1))
ORDER BY created_at DESC
LIMIT $2`

// DBTX is the subset of *pgxpool.Pool the journal needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresJournal stores records in the did_transactions table.
type PostgresJournal struct {
	db     DBTX
	logger *zap.Logger
}

// NewPostgresJournal wraps an open connection pool.
func NewPostgresJournal(db DBTX) *PostgresJournal {
	return &PostgresJournal{db: db, logger: logger.Log.Named("journal")}
}

// Connect opens a pool for databaseURL and verifies it answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the table and index when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// ObserveTransaction implements services.TransactionObserver.
func (j *PostgresJournal) ObserveTransaction(ctx context.Context, r services.TransactionRecord) error {
	var block *int64
	if r.BlockNumber != nil {
		b := int64(*r.BlockNumber)
		block = &b
	}
	_, err := j.db.Exec(ctx, insertRecord,
		r.ID, r.Operation, r.Event, r.Address, int64(r.ChainID), r.TxHash, block, r.GasUsed, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", r.TxHash, err)
	}
	j.logger.Debug("Transaction journaled",
		zap.String("tx_hash", r.TxHash),
		zap.String("operation", r.Operation),
	)
	return nil
}

// List returns the newest records for address first. An empty address
// lists every record.
func (j *PostgresJournal) List(ctx context.Context, address string, limit int) ([]services.TransactionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.Query(ctx, listRecords, strings.TrimSpace(address), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []services.TransactionRecord
	for rows.Next() {
		var (
			r       services.TransactionRecord
			chainID int64
			block   *int64
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.Event, &r.Address, &chainID, &r.TxHash, &block, &r.GasUsed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		r.ChainID = uint64(chainID)
		if block != nil {
			b := uint64(*block)
			r.BlockNumber = &b
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return out, nil
}
