package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tron-gateway/internal/domain"
)

type IncomingRepository struct {
	pool *pgxpool.Pool
}

func NewIncomingRepository(pool *pgxpool.Pool) *IncomingRepository {
	return &IncomingRepository{pool: pool}
}

// Insert records a detected deposit. The (wallet_id, tx_hash) unique
// constraint makes re-detection a no-op; the return value reports whether
// the row was actually new.
func (r *IncomingRepository) Insert(ctx context.Context, tx *domain.IncomingTransaction) (bool, error) {
	query := `
		INSERT INTO incoming_transactions (
			wallet_id, tx_hash, block_number,
			from_address, to_address, amount,
			status, detected_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet_id, tx_hash) DO NOTHING
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		tx.WalletID,
		tx.TxHash,
		tx.BlockNumber,
		tx.FromAddress,
		tx.ToAddress,
		tx.Amount.String(),
		tx.Status,
		tx.DetectedAt,
		tx.ConfirmedAt,
	).Scan(&tx.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert incoming transaction: %w", err)
	}
	return true, nil
}

// KnownStatuses returns tx_hash -> status for every recorded deposit of the
// wallet, the dedup set for a monitor scan.
func (r *IncomingRepository) KnownStatuses(ctx context.Context, walletID int64) (map[string]domain.TransferStatus, error) {
	query := `SELECT tx_hash, status FROM incoming_transactions WHERE wallet_id = $1`
	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to query known transactions: %w", err)
	}
	defer rows.Close()

	known := make(map[string]domain.TransferStatus)
	for rows.Next() {
		var (
			hash   string
			status domain.TransferStatus
		)
		if err := rows.Scan(&hash, &status); err != nil {
			return nil, fmt.Errorf("failed to scan known transaction: %w", err)
		}
		known[hash] = status
	}
	return known, rows.Err()
}

// UpdateStatus advances a deposit as confirmations accumulate. Terminal rows
// are left alone.
func (r *IncomingRepository) UpdateStatus(ctx context.Context, walletID int64, txHash string, status domain.TransferStatus) error {
	query := `
		UPDATE incoming_transactions
		SET status = $3,
		    confirmed_at = CASE WHEN $3 = 'COMPLETED' THEN now() ELSE confirmed_at END
		WHERE wallet_id = $1 AND tx_hash = $2
		  AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
	`
	if _, err := r.pool.Exec(ctx, query, walletID, txHash, status); err != nil {
		return fmt.Errorf("failed to update incoming transaction: %w", err)
	}
	return nil
}

// ListForWallet returns a wallet's deposits, newest first.
func (r *IncomingRepository) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.IncomingTransaction, error) {
	query := `
		SELECT id, wallet_id, tx_hash, block_number,
		       from_address, to_address, amount::text,
		       status, detected_at, confirmed_at
		FROM incoming_transactions
		WHERE wallet_id = $1
		ORDER BY detected_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query incoming transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.IncomingTransaction
	for rows.Next() {
		var (
			tx     domain.IncomingTransaction
			amount string
		)
		err := rows.Scan(&tx.ID, &tx.WalletID, &tx.TxHash, &tx.BlockNumber,
			&tx.FromAddress, &tx.ToAddress, &amount,
			&tx.Status, &tx.DetectedAt, &tx.ConfirmedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incoming transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount in row %d: %w", tx.ID, err)
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// Stats aggregates deposit counts per status for health reporting.
func (r *IncomingRepository) Stats(ctx context.Context) (*domain.MonitoringStats, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'PENDING'),
			count(*) FILTER (WHERE status = 'PROCESSING'),
			count(*) FILTER (WHERE status = 'COMPLETED'),
			count(*) FILTER (WHERE status = 'FAILED')
		FROM incoming_transactions
	`
	var s domain.MonitoringStats
	err := r.pool.QueryRow(ctx, query).Scan(&s.Total, &s.Pending, &s.Processing, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitoring stats: %w", err)
	}
	return &s, nil
}

// DeleteOlderThan removes settled deposits past the retention window.
func (r *IncomingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM incoming_transactions
		WHERE detected_at < $1 AND status IN ('COMPLETED', 'FAILED', 'CANCELLED')
	`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old incoming transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}
