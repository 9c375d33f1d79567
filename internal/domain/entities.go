package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a custodial deposit wallet. The private key is stored hex encoded;
// key custody beyond that is out of scope for this service.
type Wallet struct {
	ID            int64
	Address       string
	PrivateKeyHex string
	OwnerID       string
	Activated     bool
	CreatedAt     time.Time
}

// OutgoingTransfer is a sweep from a deposit wallet to the master wallet.
// Amount is what moves on-chain and equals the order amount; gas and
// commission are quoted and balance-checked but never debited from the
// wallet.
type OutgoingTransfer struct {
	ID           int64
	FromWalletID int64
	ToAddress    string
	Amount       decimal.Decimal
	OrderAmount  decimal.Decimal
	Commission   decimal.Decimal
	GasCost      decimal.Decimal
	Status       TransferStatus
	TxHash       string
	ReferenceID  string
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// IncomingTransaction is a detected TRC-20 deposit into one of our wallets.
// (WalletID, TxHash) is unique; re-detection of the same on-chain transfer is
// a no-op.
type IncomingTransaction struct {
	ID          int64
	WalletID    int64
	TxHash      string
	BlockNumber int64
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	Status      TransferStatus
	DetectedAt  time.Time
	ConfirmedAt *time.Time
}

// TokenTransfer is a raw TRC-20 transfer event as reported by the network,
// before it is matched against our wallets. The history feed carries no
// block data; see TxConfirmation for that.
type TokenTransfer struct {
	TxHash          string
	From            string
	To              string
	ContractAddress string
	AmountWei       string
	Timestamp       time.Time
}

// TxConfirmation locates a transaction relative to the chain head. A
// transaction not yet in a block has zero for both fields.
type TxConfirmation struct {
	BlockNumber   int64
	Confirmations int64
}

// ChainParameters is the network pricing snapshot used for dynamic fees.
// Prices are in sun (1 TRX = 1_000_000 sun).
type ChainParameters struct {
	EnergyPriceSun    int64
	BandwidthPriceSun int64
	FetchedAt         time.Time
}

// NetworkState is the cached congestion view derived from ChainParameters.
type NetworkState struct {
	Params      ChainParameters
	Load        decimal.Decimal
	Congestion  CongestionLevel
	RefreshedAt time.Time
}

// MonitoringStats summarizes incoming transactions per status.
type MonitoringStats struct {
	Total      int64
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// FeeQuote is the priced cost of a prospective transfer.
type FeeQuote struct {
	OrderAmount          decimal.Decimal
	GasCost              decimal.Decimal
	PercentageCommission decimal.Decimal
	FinalCommission      decimal.Decimal
	TotalAmount          decimal.Decimal
	TrxToUsdtRate        decimal.Decimal
	Source               FeeSource
}
