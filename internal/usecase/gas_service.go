package usecase

import (
	"context"

	"go.uber.org/zap"

	"tron-gateway/internal/config"
)

// SponsorshipStatus is the result class of a gas top-up attempt.
type SponsorshipStatus string

const (
	SponsorshipSent    SponsorshipStatus = "sent"
	SponsorshipSkipped SponsorshipStatus = "skipped"
	SponsorshipFailed  SponsorshipStatus = "failed"
)

// SponsorshipOutcome reports what happened to a gas top-up. Failures are
// carried here rather than as errors: a sweep proceeds regardless, it just
// pays its own bandwidth.
type SponsorshipOutcome struct {
	Status SponsorshipStatus
	TxHash string
	Reason string
}

// GasService tops up deposit wallets with TRX from the master wallet before
// a sweep. The amount is a fixed configured sum sent unconditionally; the
// occasional over-funding is accepted in exchange for never stalling a sweep
// on a balance read.
type GasService struct {
	gateway       NetworkGateway
	cfg           config.GasConfig
	masterAddress string
	masterKeyHex  string
	logger        *zap.Logger
}

func NewGasService(gateway NetworkGateway, cfg config.GasConfig, masterAddress, masterKeyHex string, logger *zap.Logger) *GasService {
	return &GasService{
		gateway:       gateway,
		cfg:           cfg,
		masterAddress: masterAddress,
		masterKeyHex:  masterKeyHex,
		logger:        logger,
	}
}

// EnsureGas sends the configured TRX amount to the wallet. Never returns an
// error; the outcome says whether anything was sent.
func (s *GasService) EnsureGas(ctx context.Context, walletAddress string) SponsorshipOutcome {
	if !s.cfg.Enabled {
		return SponsorshipOutcome{Status: SponsorshipSkipped, Reason: "gas sponsorship disabled"}
	}

	amountSun := s.cfg.MinTrxAmount.Shift(6).IntPart()
	txHash, err := s.gateway.SendTrx(ctx, s.masterAddress, walletAddress, amountSun, s.masterKeyHex)
	if err != nil {
		s.logger.Warn("gas sponsorship failed",
			zap.String("wallet", walletAddress),
			zap.Error(err))
		return SponsorshipOutcome{Status: SponsorshipFailed, Reason: err.Error()}
	}

	s.logger.Info("gas sponsored",
		zap.String("wallet", walletAddress),
		zap.String("amount_trx", s.cfg.MinTrxAmount.String()),
		zap.String("tx_hash", txHash))
	return SponsorshipOutcome{Status: SponsorshipSent, TxHash: txHash}
}
