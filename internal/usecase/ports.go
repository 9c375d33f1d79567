package usecase

import (
	"context"
	"math/big"
	"time"

	"tron-gateway/internal/domain"
)

// NetworkGateway is the TRON capability surface the services depend on.
// Implemented by chains/tron.Client; faked in tests.
type NetworkGateway interface {
	TrxBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, address, contractAddress string) (*big.Int, error)
	EstimateTransferEnergy(ctx context.Context, from, to, contractAddress string, amountWei *big.Int) (int64, error)
	ChainParameters(ctx context.Context) (domain.ChainParameters, error)
	SendTrx(ctx context.Context, from, to string, amountSun int64, privateKeyHex string) (string, error)
	SendToken(ctx context.Context, from, to, contractAddress string, amountWei *big.Int, privateKeyHex string) (string, error)
	TokenTransfers(ctx context.Context, address, contractAddress string, limit int) ([]domain.TokenTransfer, error)
	Confirmations(ctx context.Context, txHash string) (domain.TxConfirmation, error)
}

type WalletStore interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id int64) (*domain.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*domain.Wallet, error)
	List(ctx context.Context) ([]*domain.Wallet, error)
	MarkActivated(ctx context.Context, id int64) error
}

type TransferStore interface {
	Create(ctx context.Context, t *domain.OutgoingTransfer) error
	GetByID(ctx context.Context, id int64) (*domain.OutgoingTransfer, error)
	GetByReference(ctx context.Context, referenceID string) (*domain.OutgoingTransfer, error)
	GetByTxHash(ctx context.Context, txHash string) (*domain.OutgoingTransfer, error)
	ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.OutgoingTransfer, error)
	ListPending(ctx context.Context, limit int) ([]*domain.OutgoingTransfer, error)
	MarkCompleted(ctx context.Context, id int64, txHash string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type IncomingStore interface {
	Insert(ctx context.Context, tx *domain.IncomingTransaction) (bool, error)
	KnownStatuses(ctx context.Context, walletID int64) (map[string]domain.TransferStatus, error)
	UpdateStatus(ctx context.Context, walletID int64, txHash string, status domain.TransferStatus) error
	ListForWallet(ctx context.Context, walletID int64, limit int) ([]*domain.IncomingTransaction, error)
	Stats(ctx context.Context) (*domain.MonitoringStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventNotifier delivers webhook events. Delivery is best effort; failures
// are the notifier's problem, not the caller's.
type EventNotifier interface {
	WalletCreated(ctx context.Context, wallet *domain.Wallet)
	WalletActivated(ctx context.Context, wallet *domain.Wallet, txHash string)
	IncomingTransaction(ctx context.Context, tx *domain.IncomingTransaction)
	OutgoingTransfer(ctx context.Context, t *domain.OutgoingTransfer)
}

// KeyGenerator produces wallet credentials.
type KeyGenerator interface {
	Generate() (address, privateKeyHex string, err error)
}

// KeyGeneratorFunc adapts a plain function to KeyGenerator.
type KeyGeneratorFunc func() (string, string, error)

func (f KeyGeneratorFunc) Generate() (string, string, error) { return f() }
