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

type TransferRepository struct {
	pool *pgxpool.Pool
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

const transferColumns = `
	id, from_wallet_id, to_address,
	amount::text, order_amount::text, commission::text, gas_cost::text,
	status, tx_hash, reference_id, error_message, created_at, completed_at
`

// Create inserts a PENDING transfer and fills in ID and CreatedAt.
func (r *TransferRepository) Create(ctx context.Context, t *domain.OutgoingTransfer) error {
	query := `
		INSERT INTO outgoing_transfers (
			from_wallet_id, to_address,
			amount, order_amount, commission, gas_cost,
			status, reference_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	var referenceID interface{}
	if t.ReferenceID != "" {
		referenceID = t.ReferenceID
	}
	err := r.pool.QueryRow(ctx, query,
		t.FromWalletID,
		t.ToAddress,
		t.Amount.String(),
		t.OrderAmount.String(),
		t.Commission.String(),
		t.GasCost.String(),
		t.Status,
		referenceID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id int64) (*domain.OutgoingTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM outgoing_transfers WHERE id = $1`
	t, err := r.scanTransfer(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("id %d", id)}
	}
	return t, err
}

func (r *TransferRepository) GetByReference(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM outgoing_transfers WHERE reference_id = $1`
	t, err := r.scanTransfer(r.pool.QueryRow(ctx, query, referenceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("reference %s", referenceID)}
	}
	return t, err
}

func (r *TransferRepository) GetByTxHash(ctx context.Context, txHash string) (*domain.OutgoingTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM outgoing_transfers WHERE tx_hash = $1`
	t, err := r.scanTransfer(r.pool.QueryRow(ctx, query, txHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.TransferNotFoundError{Key: fmt.Sprintf("tx %s", txHash)}
	}
	return t, err
}

// ListForWallet returns a wallet's transfers, newest first.
func (r *TransferRepository) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.OutgoingTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM outgoing_transfers
		WHERE from_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.queryTransfers(ctx, query, walletID, limit)
}

// ListPending returns PENDING transfers oldest first, the drain order.
func (r *TransferRepository) ListPending(ctx context.Context, limit int) ([]*domain.OutgoingTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM outgoing_transfers
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1
	`
	return r.queryTransfers(ctx, query, limit)
}

// MarkCompleted finalizes a pending transfer with its broadcast hash. The
// status guard keeps terminal rows terminal; a second settle attempt on the
// same transfer is a no-op reported as ErrNotPending.
func (r *TransferRepository) MarkCompleted(ctx context.Context, id int64, txHash string) error {
	query := `
		UPDATE outgoing_transfers
		SET status = 'COMPLETED', tx_hash = $2, completed_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.pool.Exec(ctx, query, id, txHash)
	if err != nil {
		return fmt.Errorf("failed to mark transfer completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// MarkFailed records the failure reason. Same status guard as MarkCompleted.
func (r *TransferRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outgoing_transfers
		SET status = 'FAILED', error_message = $2, completed_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.pool.Exec(ctx, query, id, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark transfer failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// DeleteOlderThan removes terminal transfers past the retention window and
// returns how many rows went away.
func (r *TransferRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM outgoing_transfers
		WHERE created_at < $1 AND status IN ('COMPLETED', 'FAILED', 'CANCELLED')
	`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ErrNotPending reports a status update that matched no PENDING row.
var ErrNotPending = errors.New("transfer is not pending")

func (r *TransferRepository) queryTransfers(ctx context.Context, query string, args ...interface{}) ([]*domain.OutgoingTransfer, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*domain.OutgoingTransfer
	for rows.Next() {
		t, err := r.scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *TransferRepository) scanTransfer(row pgx.Row) (*domain.OutgoingTransfer, error) {
	var (
		t                                    domain.OutgoingTransfer
		amount, orderAmount, commission, gas string
		txHash, referenceID, errorMessage    *string
	)
	err := row.Scan(
		&t.ID, &t.FromWalletID, &t.ToAddress,
		&amount, &orderAmount, &commission, &gas,
		&t.Status, &txHash, &referenceID, &errorMessage,
		&t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount in row %d: %w", t.ID, err)
	}
	if t.OrderAmount, err = decimal.NewFromString(orderAmount); err != nil {
		return nil, fmt.Errorf("invalid order_amount in row %d: %w", t.ID, err)
	}
	if t.Commission, err = decimal.NewFromString(commission); err != nil {
		return nil, fmt.Errorf("invalid commission in row %d: %w", t.ID, err)
	}
	if t.GasCost, err = decimal.NewFromString(gas); err != nil {
		return nil, fmt.Errorf("invalid gas_cost in row %d: %w", t.ID, err)
	}
	if txHash != nil {
		t.TxHash = *txHash
	}
	if referenceID != nil {
		t.ReferenceID = *referenceID
	}
	if errorMessage != nil {
		t.ErrorMessage = *errorMessage
	}
	return &t, nil
}
