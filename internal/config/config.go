package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tron-gateway/internal/domain"
)

// Config is the full gateway configuration, loaded from the environment.
type Config struct {
	Database DatabaseConfig
	Tron     TronConfig
	Fees     FeeConfig
	Gas      GasConfig
	Wallets  WalletConfig
	Schedule ScheduleConfig
	Webhook  WebhookConfig
}

type DatabaseConfig struct {
	URL string
}

type TronConfig struct {
	Network               string // mainnet, shasta, nile
	APIKey                string
	MasterAddress         string
	MasterPrivateKeyHex   string
	RequiredConfirmations int64
}

type FeeConfig struct {
	DynamicEnabled         bool
	TrxToUsdtRate          decimal.Decimal
	BaseTrxPerTransaction  decimal.Decimal
	DynamicMinFeeTrx       decimal.Decimal
	DynamicMaxFeeTrx       decimal.Decimal
	HighCongestionMult     decimal.Decimal
	BaseEnergyPriceSun     int64
	EnergySurchargeSun     int64
	CommissionPercent      decimal.Decimal
	MinCommissionUsdt      decimal.Decimal
	MaxCommissionUsdt      decimal.Decimal
	NetworkStateStaleAfter time.Duration
}

type GasConfig struct {
	Enabled      bool
	MinTrxAmount decimal.Decimal
	SettleDelay  time.Duration
}

type WalletConfig struct {
	AutoActivate        bool
	ActivationTrxAmount decimal.Decimal
	BalanceCacheTTL     time.Duration
	RetentionDays       int64
}

type ScheduleConfig struct {
	MonitorInterval     time.Duration
	DrainInterval       time.Duration
	CleanupInterval     time.Duration
	HealthCheckInterval time.Duration
}

type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Load reads configuration from the environment and validates the settings
// that have no usable default.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Tron: TronConfig{
			Network:               getEnv("TRON_NETWORK", "nile"),
			APIKey:                getEnv("TRON_API_KEY", ""),
			MasterAddress:         getEnv("MASTER_WALLET_ADDRESS", ""),
			MasterPrivateKeyHex:   getEnv("MASTER_WALLET_PRIVATE_KEY", ""),
			RequiredConfirmations: getEnvAsInt64("REQUIRED_CONFIRMATIONS", 19),
		},
		Fees: FeeConfig{
			DynamicEnabled:         getEnvAsBool("DYNAMIC_FEES_ENABLED", true),
			TrxToUsdtRate:          getEnvAsDecimal("TRX_TO_USDT_RATE", "0.10"),
			BaseTrxPerTransaction:  getEnvAsDecimal("BASE_TRX_PER_TRANSACTION", "15"),
			DynamicMinFeeTrx:       getEnvAsDecimal("DYNAMIC_MIN_FEE_TRX", "10"),
			DynamicMaxFeeTrx:       getEnvAsDecimal("DYNAMIC_MAX_FEE_TRX", "50"),
			HighCongestionMult:     getEnvAsDecimal("HIGH_CONGESTION_MULTIPLIER", "1.5"),
			BaseEnergyPriceSun:     getEnvAsInt64("BASE_ENERGY_PRICE_SUN", 420),
			EnergySurchargeSun:     getEnvAsInt64("ENERGY_SURCHARGE_THRESHOLD_SUN", 500),
			CommissionPercent:      getEnvAsDecimal("COMMISSION_PERCENT", "0.5"),
			MinCommissionUsdt:      getEnvAsDecimal("MIN_COMMISSION_USDT", "1"),
			MaxCommissionUsdt:      getEnvAsDecimal("MAX_COMMISSION_USDT", "10"),
			NetworkStateStaleAfter: getEnvAsDuration("NETWORK_STATE_STALE_AFTER", 10*time.Minute),
		},
		Gas: GasConfig{
			Enabled:      getEnvAsBool("GAS_SPONSORSHIP_ENABLED", true),
			MinTrxAmount: getEnvAsDecimal("GAS_MIN_TRX_AMOUNT", "15"),
			SettleDelay:  getEnvAsDuration("GAS_SETTLE_DELAY", 3*time.Second),
		},
		Wallets: WalletConfig{
			AutoActivate:        getEnvAsBool("WALLET_AUTO_ACTIVATE", true),
			ActivationTrxAmount: getEnvAsDecimal("WALLET_ACTIVATION_TRX", "1.0"),
			BalanceCacheTTL:     getEnvAsDuration("BALANCE_CACHE_TTL", 30*time.Second),
			RetentionDays:       getEnvAsInt64("RECORD_RETENTION_DAYS", 90),
		},
		Schedule: ScheduleConfig{
			MonitorInterval:     getEnvAsDuration("MONITOR_INTERVAL", 30*time.Second),
			DrainInterval:       getEnvAsDuration("DRAIN_INTERVAL", 60*time.Second),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", 24*time.Hour),
			HealthCheckInterval: getEnvAsDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute),
		},
		Webhook: WebhookConfig{
			URL:     getEnv("WEBHOOK_URL", ""),
			Secret:  getEnv("WEBHOOK_SECRET", ""),
			Timeout: getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return &domain.ConfigurationError{Key: "DATABASE_URL", Reason: "required"}
	}
	if c.Tron.MasterAddress == "" {
		return &domain.ConfigurationError{Key: "MASTER_WALLET_ADDRESS", Reason: "required"}
	}
	if err := domain.ValidateAddress(c.Tron.MasterAddress); err != nil {
		return &domain.ConfigurationError{Key: "MASTER_WALLET_ADDRESS", Reason: err.Error()}
	}
	if err := domain.ValidatePrivateKey(c.Tron.MasterPrivateKeyHex); err != nil {
		return &domain.ConfigurationError{Key: "MASTER_WALLET_PRIVATE_KEY", Reason: err.Error()}
	}
	if c.Fees.TrxToUsdtRate.LessThanOrEqual(decimal.Zero) {
		return &domain.ConfigurationError{Key: "TRX_TO_USDT_RATE", Reason: "must be positive"}
	}
	if c.Fees.DynamicMinFeeTrx.GreaterThan(c.Fees.DynamicMaxFeeTrx) {
		return &domain.ConfigurationError{Key: "DYNAMIC_MIN_FEE_TRX", Reason: "exceeds DYNAMIC_MAX_FEE_TRX"}
	}
	if c.Fees.MinCommissionUsdt.GreaterThan(c.Fees.MaxCommissionUsdt) {
		return &domain.ConfigurationError{Key: "MIN_COMMISSION_USDT", Reason: "exceeds MAX_COMMISSION_USDT"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDecimal(key, fallback string) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return decimal.RequireFromString(fallback)
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// String renders the config for startup logging with secrets elided.
func (c *Config) String() string {
	return fmt.Sprintf("network=%s master=%s gas_sponsorship=%t webhook=%t",
		c.Tron.Network, c.Tron.MasterAddress, c.Gas.Enabled, c.Webhook.URL != "")
}
