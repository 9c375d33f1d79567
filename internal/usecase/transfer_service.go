package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tron-gateway/internal/domain"
)

// drainBatchSize bounds how many pending transfers one drain pass settles.
const drainBatchSize = 100

// TransferPreview is the quoted cost of a prospective sweep, shown before
// anything is persisted.
type TransferPreview struct {
	FromWalletID         int64           `json:"from_wallet_id"`
	OrderAmount          decimal.Decimal `json:"order_amount"`
	GasCost              decimal.Decimal `json:"gas_cost_in_usdt"`
	PercentageCommission decimal.Decimal `json:"percentage_commission"`
	Commission           decimal.Decimal `json:"commission"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	MasterWalletReceives decimal.Decimal `json:"master_wallet_receives"`
	TrxToUsdtRate        decimal.Decimal `json:"trx_to_usdt_rate"`
	Breakdown            string          `json:"breakdown"`
	ReferenceID          string          `json:"reference_id,omitempty"`
}

// TransferService owns the outgoing sweep lifecycle: quote, create as
// PENDING, and drain pending rows to the chain in FIFO order.
type TransferService struct {
	wallets       WalletStore
	transfers     TransferStore
	gateway       NetworkGateway
	fees          *FeeService
	gas           *GasService
	registry      *domain.TokenRegistry
	notifier      EventNotifier
	masterAddress string
	settleDelay   time.Duration
	logger        *zap.Logger
}

func NewTransferService(
	wallets WalletStore,
	transfers TransferStore,
	gateway NetworkGateway,
	fees *FeeService,
	gas *GasService,
	registry *domain.TokenRegistry,
	notifier EventNotifier,
	masterAddress string,
	settleDelay time.Duration,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		wallets:       wallets,
		transfers:     transfers,
		gateway:       gateway,
		fees:          fees,
		gas:           gas,
		registry:      registry,
		notifier:      notifier,
		masterAddress: masterAddress,
		settleDelay:   settleDelay,
		logger:        logger,
	}
}

// Preview quotes a transfer without persisting anything.
func (s *TransferService) Preview(ctx context.Context, walletID int64, orderAmount decimal.Decimal, referenceID string) (*TransferPreview, error) {
	wallet, err := s.validateRequest(ctx, walletID, orderAmount, referenceID)
	if err != nil {
		return nil, err
	}

	quote, err := s.fees.Quote(ctx, orderAmount, wallet.Address)
	if err != nil {
		return nil, err
	}

	return &TransferPreview{
		FromWalletID:         walletID,
		OrderAmount:          quote.OrderAmount,
		GasCost:              quote.GasCost,
		PercentageCommission: quote.PercentageCommission,
		Commission:           quote.FinalCommission,
		TotalAmount:          quote.TotalAmount,
		MasterWalletReceives: quote.OrderAmount,
		TrxToUsdtRate:        quote.TrxToUsdtRate,
		Breakdown: fmt.Sprintf("order %s + gas %s + commission %s = %s USDT",
			quote.OrderAmount, quote.GasCost, quote.FinalCommission, quote.TotalAmount),
		ReferenceID: referenceID,
	}, nil
}

// Create validates, quotes, checks the wallet balance and inserts a PENDING
// transfer addressed to the master wallet. The scheduler drains it later.
func (s *TransferService) Create(ctx context.Context, walletID int64, orderAmount decimal.Decimal, referenceID string) (*domain.OutgoingTransfer, error) {
	wallet, err := s.validateRequest(ctx, walletID, orderAmount, referenceID)
	if err != nil {
		return nil, err
	}

	quote, err := s.fees.Quote(ctx, orderAmount, wallet.Address)
	if err != nil {
		return nil, err
	}

	token := s.registry.Primary()
	balanceWei, err := s.gateway.TokenBalance(ctx, wallet.Address, token.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet balance: %w", err)
	}
	balance := token.FromWei(balanceWei)
	if balance.LessThan(quote.TotalAmount) {
		return nil, &domain.InsufficientBalanceError{
			Required:  quote.TotalAmount,
			Available: balance,
		}
	}

	// The sweep moves the order amount; gas and commission are priced into
	// the balance check but stay in the wallet.
	transfer := &domain.OutgoingTransfer{
		FromWalletID: walletID,
		ToAddress:    s.masterAddress,
		Amount:       quote.OrderAmount,
		OrderAmount:  quote.OrderAmount,
		Commission:   quote.FinalCommission,
		GasCost:      quote.GasCost,
		Status:       domain.StatusPending,
		ReferenceID:  referenceID,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info("transfer created",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("wallet_id", walletID),
		zap.String("order_amount", transfer.Amount.String()),
		zap.String("total_cost", quote.TotalAmount.String()),
		zap.String("fee_source", string(quote.Source)))

	s.notifier.OutgoingTransfer(ctx, transfer)
	return transfer, nil
}

// ProcessPending drains PENDING transfers oldest first. A failing transfer
// is marked FAILED and does not stop the rest of the batch. Returns how many
// transfers settled successfully.
func (s *TransferService) ProcessPending(ctx context.Context) (int, error) {
	pending, err := s.transfers.ListPending(ctx, drainBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	s.logger.Info("draining pending transfers", zap.Int("count", len(pending)))

	settled := 0
	for _, transfer := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if err := s.settle(ctx, transfer); err != nil {
			s.logger.Error("transfer settlement failed",
				zap.Int64("transfer_id", transfer.ID),
				zap.Error(err))
			s.fail(ctx, transfer, err.Error())
			continue
		}
		settled++
	}
	return settled, nil
}

// settle performs one sweep: top up gas, wait for it to land, then move the
// order amount to the master wallet.
func (s *TransferService) settle(ctx context.Context, transfer *domain.OutgoingTransfer) error {
	wallet, err := s.wallets.GetByID(ctx, transfer.FromWalletID)
	if err != nil {
		return err
	}

	outcome := s.gas.EnsureGas(ctx, wallet.Address)
	if outcome.Status == SponsorshipSent {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.settleDelay):
		}
	}

	token := s.registry.Primary()
	txHash, err := s.gateway.SendToken(ctx,
		wallet.Address,
		transfer.ToAddress,
		token.ContractAddress,
		token.ToWei(transfer.Amount),
		wallet.PrivateKeyHex,
	)
	if err != nil {
		return err
	}

	if err := s.transfers.MarkCompleted(ctx, transfer.ID, txHash); err != nil {
		return err
	}

	transfer.Status = domain.StatusCompleted
	transfer.TxHash = txHash
	s.logger.Info("transfer completed",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("tx_hash", txHash))

	s.notifier.OutgoingTransfer(ctx, transfer)
	return nil
}

func (s *TransferService) fail(ctx context.Context, transfer *domain.OutgoingTransfer, reason string) {
	if err := s.transfers.MarkFailed(ctx, transfer.ID, reason); err != nil {
		s.logger.Error("failed to mark transfer failed",
			zap.Int64("transfer_id", transfer.ID),
			zap.Error(err))
		return
	}
	transfer.Status = domain.StatusFailed
	transfer.ErrorMessage = reason
	s.notifier.OutgoingTransfer(ctx, transfer)
}

func (s *TransferService) GetByID(ctx context.Context, id int64) (*domain.OutgoingTransfer, error) {
	return s.transfers.GetByID(ctx, id)
}

func (s *TransferService) GetByReference(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error) {
	return s.transfers.GetByReference(ctx, referenceID)
}

func (s *TransferService) GetByTxHash(ctx context.Context, txHash string) (*domain.OutgoingTransfer, error) {
	return s.transfers.GetByTxHash(ctx, txHash)
}

func (s *TransferService) ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.OutgoingTransfer, error) {
	return s.transfers.ListForWallet(ctx, walletID, limit)
}

// CleanupOldRecords removes terminal transfers older than the retention
// window and returns how many rows were dropped.
func (s *TransferService) CleanupOldRecords(ctx context.Context, retention time.Duration) (int64, error) {
	return s.transfers.DeleteOlderThan(ctx, time.Now().Add(-retention))
}

func (s *TransferService) validateRequest(ctx context.Context, walletID int64, orderAmount decimal.Decimal, referenceID string) (*domain.Wallet, error) {
	if err := domain.ValidateAmount(orderAmount); err != nil {
		return nil, err
	}
	if err := domain.ValidateReferenceID(referenceID); err != nil {
		return nil, err
	}
	token := s.registry.Primary()
	if err := token.ValidateAmount(orderAmount); err != nil {
		return nil, err
	}
	return s.wallets.GetByID(ctx, walletID)
}
