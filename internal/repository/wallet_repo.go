package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tron-gateway/internal/domain"
)

type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Create persists a freshly generated wallet and fills in ID and CreatedAt.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (address, private_key, owner_id, activated)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		wallet.Address,
		wallet.PrivateKeyHex,
		wallet.OwnerID,
		wallet.Activated,
	).Scan(&wallet.ID, &wallet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	query := `
		SELECT id, address, private_key, owner_id, activated, created_at
		FROM wallets WHERE id = $1
	`
	wallet, err := r.scanWallet(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.WalletNotFoundError{ID: id}
	}
	return wallet, err
}

func (r *WalletRepository) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	query := `
		SELECT id, address, private_key, owner_id, activated, created_at
		FROM wallets WHERE address = $1
	`
	wallet, err := r.scanWallet(r.pool.QueryRow(ctx, query, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.WalletNotFoundError{Address: address}
	}
	return wallet, err
}

// List returns all wallets, oldest first.
func (r *WalletRepository) List(ctx context.Context) ([]*domain.Wallet, error) {
	query := `
		SELECT id, address, private_key, owner_id, activated, created_at
		FROM wallets ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		wallet, err := r.scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

// MarkActivated records a successful on-chain activation.
func (r *WalletRepository) MarkActivated(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE wallets SET activated = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark wallet activated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.WalletNotFoundError{ID: id}
	}
	return nil
}

func (r *WalletRepository) scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.Address, &w.PrivateKeyHex, &w.OwnerID, &w.Activated, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return &w, nil
}
