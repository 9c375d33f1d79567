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

var (
	oneHundred = decimal.NewFromInt(100)
	sunPerTrx  = decimal.NewFromInt(1_000_000)

	lowCongestionMult    = decimal.RequireFromString("0.8")
	mediumCongestionMult = decimal.NewFromInt(1)
	energySurchargeMult  = decimal.RequireFromString("1.2")

	lowLoadCeiling    = decimal.RequireFromString("0.3")
	mediumLoadCeiling = decimal.RequireFromString("0.7")
)

// NetworkStateCache holds the last observed network pricing snapshot. Reads
// past the staleness window miss so the caller refreshes.
type NetworkStateCache struct {
	mu         sync.RWMutex
	state      *domain.NetworkState
	staleAfter time.Duration
}

func NewNetworkStateCache(staleAfter time.Duration) *NetworkStateCache {
	return &NetworkStateCache{staleAfter: staleAfter}
}

func (c *NetworkStateCache) Get() (*domain.NetworkState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil || time.Since(c.state.RefreshedAt) > c.staleAfter {
		return nil, false
	}
	return c.state, true
}

func (c *NetworkStateCache) Set(state *domain.NetworkState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// FeeService prices transfers. It tries three tiers in order: dynamic
// (cached network state, when enabled), static (energy estimate for the
// concrete transfer), and a configured fallback that needs no network
// access.
type FeeService struct {
	gateway       NetworkGateway
	cache         *NetworkStateCache
	registry      *domain.TokenRegistry
	cfg           config.FeeConfig
	masterAddress string
	logger        *zap.Logger
}

func NewFeeService(gateway NetworkGateway, cache *NetworkStateCache, registry *domain.TokenRegistry, cfg config.FeeConfig, masterAddress string, logger *zap.Logger) *FeeService {
	return &FeeService{
		gateway:       gateway,
		cache:         cache,
		registry:      registry,
		cfg:           cfg,
		masterAddress: masterAddress,
		logger:        logger,
	}
}

// RefreshNetworkState fetches current chain prices and updates the cache.
func (s *FeeService) RefreshNetworkState(ctx context.Context) error {
	params, err := s.gateway.ChainParameters(ctx)
	if err != nil {
		return err
	}

	load := s.congestionLoad(params.EnergyPriceSun)
	state := &domain.NetworkState{
		Params:      params,
		Load:        load,
		Congestion:  classifyLoad(load),
		RefreshedAt: time.Now(),
	}
	s.cache.Set(state)

	s.logger.Info("network state refreshed",
		zap.Int64("energy_price_sun", params.EnergyPriceSun),
		zap.String("load", load.String()),
		zap.String("congestion", string(state.Congestion)))
	return nil
}

// congestionLoad maps the current energy price onto [0, 1] relative to the
// configured baseline price.
func (s *FeeService) congestionLoad(energyPriceSun int64) decimal.Decimal {
	base := decimal.NewFromInt(s.cfg.BaseEnergyPriceSun)
	if base.IsZero() {
		return decimal.Zero
	}
	load := decimal.NewFromInt(energyPriceSun).Sub(base).Div(base)
	if load.IsNegative() {
		return decimal.Zero
	}
	if load.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return load
}

func classifyLoad(load decimal.Decimal) domain.CongestionLevel {
	switch {
	case load.LessThan(lowLoadCeiling):
		return domain.CongestionLow
	case load.LessThan(mediumLoadCeiling):
		return domain.CongestionMedium
	default:
		return domain.CongestionHigh
	}
}

// Quote prices a transfer of orderAmount USDT from the given wallet. The
// result is deterministic for a fixed network state, so preview and create
// agree.
func (s *FeeService) Quote(ctx context.Context, orderAmount decimal.Decimal, fromAddress string) (*domain.FeeQuote, error) {
	gasCost, source := s.gasCost(ctx, orderAmount, fromAddress)
	commission := s.commission(orderAmount)

	return &domain.FeeQuote{
		OrderAmount:          orderAmount,
		GasCost:              gasCost,
		PercentageCommission: commission,
		FinalCommission:      commission,
		TotalAmount:          orderAmount.Add(gasCost).Add(commission),
		TrxToUsdtRate:        s.cfg.TrxToUsdtRate,
		Source:               source,
	}, nil
}

// gasCost walks the pricing tiers. It never fails; the fallback tier needs
// only configuration.
func (s *FeeService) gasCost(ctx context.Context, orderAmount decimal.Decimal, fromAddress string) (decimal.Decimal, domain.FeeSource) {
	if s.cfg.DynamicEnabled {
		if cost, ok := s.dynamicGasCost(ctx); ok {
			return cost, domain.FeeSourceDynamic
		}
	}
	if cost, ok := s.staticGasCost(ctx, orderAmount, fromAddress); ok {
		return cost, domain.FeeSourceStatic
	}

	cost := s.cfg.BaseTrxPerTransaction.Mul(s.cfg.TrxToUsdtRate)
	s.logger.Warn("using fallback gas cost",
		zap.String("cost_usdt", cost.String()))
	return cost, domain.FeeSourceFallback
}

func (s *FeeService) dynamicGasCost(ctx context.Context) (decimal.Decimal, bool) {
	state, ok := s.cache.Get()
	if !ok {
		if err := s.RefreshNetworkState(ctx); err != nil {
			s.logger.Warn("network state refresh failed", zap.Error(err))
			return decimal.Zero, false
		}
		if state, ok = s.cache.Get(); !ok {
			return decimal.Zero, false
		}
	}

	var congestionMult decimal.Decimal
	switch state.Congestion {
	case domain.CongestionLow:
		congestionMult = lowCongestionMult
	case domain.CongestionMedium:
		congestionMult = mediumCongestionMult
	default:
		congestionMult = s.cfg.HighCongestionMult
	}

	energyMult := decimal.NewFromInt(1)
	if state.Params.EnergyPriceSun > s.cfg.EnergySurchargeSun {
		energyMult = energySurchargeMult
	}

	feeTrx := s.cfg.BaseTrxPerTransaction.Mul(congestionMult).Mul(energyMult)
	feeTrx = clampDecimal(feeTrx, s.cfg.DynamicMinFeeTrx, s.cfg.DynamicMaxFeeTrx)

	return feeTrx.Mul(s.cfg.TrxToUsdtRate), true
}

// staticGasCost estimates energy for the concrete transfer and converts the
// burn into USDT at the current rate.
func (s *FeeService) staticGasCost(ctx context.Context, orderAmount decimal.Decimal, fromAddress string) (decimal.Decimal, bool) {
	token := s.registry.Primary()
	if token == nil || fromAddress == "" {
		return decimal.Zero, false
	}

	energy, err := s.gateway.EstimateTransferEnergy(ctx, fromAddress, s.masterAddress, token.ContractAddress, token.ToWei(orderAmount))
	if err != nil {
		s.logger.Warn("static fee estimation failed", zap.Error(err))
		return decimal.Zero, false
	}

	energyPrice := decimal.NewFromInt(s.cfg.BaseEnergyPriceSun)
	if state, ok := s.cache.Get(); ok {
		energyPrice = decimal.NewFromInt(state.Params.EnergyPriceSun)
	}

	feeTrx := decimal.NewFromInt(energy).Mul(energyPrice).Div(sunPerTrx)
	return feeTrx.Mul(s.cfg.TrxToUsdtRate), true
}

// commission is the percentage fee clamped to the configured band.
func (s *FeeService) commission(orderAmount decimal.Decimal) decimal.Decimal {
	pct := orderAmount.Mul(s.cfg.CommissionPercent).Div(oneHundred)
	return clampDecimal(pct, s.cfg.MinCommissionUsdt, s.cfg.MaxCommissionUsdt)
}

func clampDecimal(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
