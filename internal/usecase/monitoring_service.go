package usecase

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"tron-gateway/internal/domain"
)

// scanLimit caps how much history one wallet scan pulls from the network.
const scanLimit = 50

// MonitoringService detects deposits into our wallets. Each scan pulls
// recent TRC-20 history per wallet, filters transfers addressed to the
// wallet, and records unseen ones. Re-seen non-terminal rows are advanced
// as confirmations accumulate.
type MonitoringService struct {
	wallets               WalletStore
	incoming              IncomingStore
	gateway               NetworkGateway
	registry              *domain.TokenRegistry
	notifier              EventNotifier
	requiredConfirmations int64
	logger                *zap.Logger
}

func NewMonitoringService(
	wallets WalletStore,
	incoming IncomingStore,
	gateway NetworkGateway,
	registry *domain.TokenRegistry,
	notifier EventNotifier,
	requiredConfirmations int64,
	logger *zap.Logger,
) *MonitoringService {
	return &MonitoringService{
		wallets:               wallets,
		incoming:              incoming,
		gateway:               gateway,
		registry:              registry,
		notifier:              notifier,
		requiredConfirmations: requiredConfirmations,
		logger:                logger,
	}
}

// ScanAll sweeps every wallet once. A wallet whose scan fails is logged and
// skipped; the pass continues. Returns the number of newly recorded
// deposits.
func (s *MonitoringService) ScanAll(ctx context.Context) (int, error) {
	wallets, err := s.wallets.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list wallets: %w", err)
	}

	newDeposits := 0
	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return newDeposits, ctx.Err()
		}
		n, err := s.scanWallet(ctx, wallet)
		if err != nil {
			s.logger.Warn("wallet scan failed",
				zap.Int64("wallet_id", wallet.ID),
				zap.String("address", wallet.Address),
				zap.Error(err))
			continue
		}
		newDeposits += n
	}

	if newDeposits > 0 {
		s.logger.Info("scan pass finished",
			zap.Int("wallets", len(wallets)),
			zap.Int("new_deposits", newDeposits))
	}
	return newDeposits, nil
}

func (s *MonitoringService) scanWallet(ctx context.Context, wallet *domain.Wallet) (int, error) {
	token := s.registry.Primary()
	transfers, err := s.gateway.TokenTransfers(ctx, wallet.Address, token.ContractAddress, scanLimit)
	if err != nil {
		return 0, err
	}

	known, err := s.incoming.KnownStatuses(ctx, wallet.ID)
	if err != nil {
		return 0, err
	}

	newDeposits := 0
	for _, transfer := range transfers {
		if transfer.To != wallet.Address {
			continue
		}
		if status, seen := known[transfer.TxHash]; seen && status.IsTerminal() {
			continue
		}

		conf, err := s.gateway.Confirmations(ctx, transfer.TxHash)
		if err != nil {
			s.logger.Warn("confirmation check failed",
				zap.String("tx_hash", transfer.TxHash),
				zap.Error(err))
			continue
		}
		status := s.statusFor(conf.Confirmations)

		if prev, seen := known[transfer.TxHash]; seen {
			if prev != status {
				if err := s.incoming.UpdateStatus(ctx, wallet.ID, transfer.TxHash, status); err != nil {
					s.logger.Warn("deposit status update failed",
						zap.String("tx_hash", transfer.TxHash),
						zap.Error(err))
				}
			}
			continue
		}

		amountWei, ok := new(big.Int).SetString(transfer.AmountWei, 10)
		if !ok {
			s.logger.Warn("unparseable transfer amount",
				zap.String("tx_hash", transfer.TxHash),
				zap.String("value", transfer.AmountWei))
			continue
		}

		tx := &domain.IncomingTransaction{
			WalletID:    wallet.ID,
			TxHash:      transfer.TxHash,
			BlockNumber: conf.BlockNumber,
			FromAddress: transfer.From,
			ToAddress:   transfer.To,
			Amount:      token.FromWei(amountWei),
			Status:      status,
			DetectedAt:  time.Now(),
		}
		if status == domain.StatusCompleted {
			// Already past the confirmation threshold at first sight.
			now := time.Now()
			tx.ConfirmedAt = &now
		}
		inserted, err := s.incoming.Insert(ctx, tx)
		if err != nil {
			s.logger.Warn("deposit insert failed",
				zap.String("tx_hash", transfer.TxHash),
				zap.Error(err))
			continue
		}
		if !inserted {
			// Lost a race with a concurrent scan; the row already exists.
			continue
		}

		newDeposits++
		s.logger.Info("deposit detected",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("tx_hash", tx.TxHash),
			zap.String("amount", tx.Amount.String()),
			zap.String("status", string(status)))

		s.notifier.IncomingTransaction(ctx, tx)
	}
	return newDeposits, nil
}

// statusFor maps a confirmation count onto the deposit lifecycle.
func (s *MonitoringService) statusFor(confirmations int64) domain.TransferStatus {
	switch {
	case confirmations >= s.requiredConfirmations:
		return domain.StatusCompleted
	case confirmations >= 1:
		return domain.StatusProcessing
	default:
		return domain.StatusPending
	}
}

// Stats reports deposit counts per status.
func (s *MonitoringService) Stats(ctx context.Context) (*domain.MonitoringStats, error) {
	return s.incoming.Stats(ctx)
}

// ListForWallet returns a wallet's recorded deposits, newest first.
func (s *MonitoringService) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.IncomingTransaction, error) {
	return s.incoming.ListForWallet(ctx, walletID, limit)
}

// CleanupOldRecords removes settled deposits older than the retention window.
func (s *MonitoringService) CleanupOldRecords(ctx context.Context, retention time.Duration) (int64, error) {
	return s.incoming.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
