package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tron-gateway/internal/config"
	"tron-gateway/internal/domain"
)

// WalletBalances is a wallet's on-chain holdings at read time.
type WalletBalances struct {
	Trx   decimal.Decimal `json:"trx"`
	Token decimal.Decimal `json:"token"`
}

type cachedBalances struct {
	balances  WalletBalances
	fetchedAt time.Time
}

// WalletService creates and reads custodial wallets. Balance reads are
// served from a short-lived cache to keep monitor and API traffic off the
// rate-limited TronGrid endpoints.
type WalletService struct {
	wallets       WalletStore
	gateway       NetworkGateway
	registry      *domain.TokenRegistry
	keys          KeyGenerator
	notifier      EventNotifier
	cfg           config.WalletConfig
	masterAddress string
	masterKeyHex  string
	logger        *zap.Logger

	mu    sync.RWMutex
	cache map[int64]cachedBalances
}

func NewWalletService(
	wallets WalletStore,
	gateway NetworkGateway,
	registry *domain.TokenRegistry,
	keys KeyGenerator,
	notifier EventNotifier,
	cfg config.WalletConfig,
	masterAddress, masterKeyHex string,
	logger *zap.Logger,
) *WalletService {
	return &WalletService{
		wallets:       wallets,
		gateway:       gateway,
		registry:      registry,
		keys:          keys,
		notifier:      notifier,
		cfg:           cfg,
		masterAddress: masterAddress,
		masterKeyHex:  masterKeyHex,
		logger:        logger,
		cache:         make(map[int64]cachedBalances),
	}
}

// Create generates a keypair, persists the wallet and, when configured,
// activates it on chain. Activation failure does not fail creation.
func (s *WalletService) Create(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	address, privateKeyHex, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}

	wallet := &domain.Wallet{
		Address:       address,
		PrivateKeyHex: privateKeyHex,
		OwnerID:       ownerID,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}

	s.logger.Info("wallet created",
		zap.Int64("wallet_id", wallet.ID),
		zap.String("address", wallet.Address))
	s.notifier.WalletCreated(ctx, wallet)

	if s.cfg.AutoActivate {
		s.Activate(ctx, wallet)
	}
	return wallet, nil
}

// Activate funds a fresh wallet with a small TRX amount so the account
// exists on chain. Best effort: a failed activation is logged and reported
// as false, the wallet stays usable for deposits.
func (s *WalletService) Activate(ctx context.Context, wallet *domain.Wallet) bool {
	if wallet.Activated {
		return true
	}

	amountSun := s.cfg.ActivationTrxAmount.Shift(6).IntPart()
	txHash, err := s.gateway.SendTrx(ctx, s.masterAddress, wallet.Address, amountSun, s.masterKeyHex)
	if err != nil {
		s.logger.Warn("wallet activation failed",
			zap.Int64("wallet_id", wallet.ID),
			zap.String("address", wallet.Address),
			zap.Error(err))
		return false
	}

	if err := s.wallets.MarkActivated(ctx, wallet.ID); err != nil {
		s.logger.Warn("failed to record wallet activation",
			zap.Int64("wallet_id", wallet.ID),
			zap.Error(err))
		return false
	}
	wallet.Activated = true

	s.logger.Info("wallet activated",
		zap.Int64("wallet_id", wallet.ID),
		zap.String("tx_hash", txHash))
	s.notifier.WalletActivated(ctx, wallet, txHash)
	return true
}

func (s *WalletService) GetByID(ctx context.Context, id int64) (*domain.Wallet, error) {
	return s.wallets.GetByID(ctx, id)
}

func (s *WalletService) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	return s.wallets.GetByAddress(ctx, address)
}

func (s *WalletService) List(ctx context.Context) ([]*domain.Wallet, error) {
	return s.wallets.List(ctx)
}

// Balances returns the wallet's TRX and primary-token balances, cached for
// the configured TTL.
func (s *WalletService) Balances(ctx context.Context, walletID int64) (*WalletBalances, error) {
	s.mu.RLock()
	cached, ok := s.cache[walletID]
	s.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < s.cfg.BalanceCacheTTL {
		balances := cached.balances
		return &balances, nil
	}

	wallet, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}

	trxSun, err := s.gateway.TrxBalance(ctx, wallet.Address)
	if err != nil {
		return nil, err
	}
	token := s.registry.Primary()
	tokenWei, err := s.gateway.TokenBalance(ctx, wallet.Address, token.ContractAddress)
	if err != nil {
		return nil, err
	}

	balances := WalletBalances{
		Trx:   decimal.NewFromBigInt(trxSun, -6),
		Token: token.FromWei(tokenWei),
	}

	s.mu.Lock()
	s.cache[walletID] = cachedBalances{balances: balances, fetchedAt: time.Now()}
	s.mu.Unlock()

	return &balances, nil
}

// InvalidateBalances drops the cached balances for a wallet, used after a
// sweep or detected deposit changes them.
func (s *WalletService) InvalidateBalances(walletID int64) {
	s.mu.Lock()
	delete(s.cache, walletID)
	s.mu.Unlock()
}
