package domain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// TokenInfo describes a TRC-20 token the gateway can handle.
type TokenInfo struct {
	Symbol          string
	Name            string
	ContractAddress string
	Decimals        int32
	IsStable        bool
	MinTransfer     decimal.Decimal
	MaxTransfer     decimal.Decimal // zero means unlimited
	Enabled         bool
}

// ToWei converts a human-readable amount to the token's smallest unit.
func (t *TokenInfo) ToWei(amount decimal.Decimal) *big.Int {
	scaled := amount.Shift(t.Decimals)
	return scaled.Truncate(0).BigInt()
}

// FromWei converts the token's smallest unit back to a human-readable amount.
func (t *TokenInfo) FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, 0).Shift(-t.Decimals)
}

// ValidateAmount checks the amount against the token's transfer limits.
func (t *TokenInfo) ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(t.MinTransfer) {
		return &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("below minimum transfer %s %s", t.MinTransfer.String(), t.Symbol),
		}
	}
	if !t.MaxTransfer.IsZero() && amount.GreaterThan(t.MaxTransfer) {
		return &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("above maximum transfer %s %s", t.MaxTransfer.String(), t.Symbol),
		}
	}
	return nil
}

// usdtContracts maps TRON network name to the USDT contract address.
var usdtContracts = map[string]string{
	"mainnet": "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
	"shasta":  "TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs",
	"nile":    "TXLAQ63Xg1NAzckPwKHvzw7CSEmLMEqcdj",
}

// TokenRegistry holds the known tokens, keyed by upper-case symbol.
// Safe for concurrent use.
type TokenRegistry struct {
	mu      sync.RWMutex
	tokens  map[string]*TokenInfo
	primary string
}

// NewTokenRegistry seeds the registry for the given network. USDT is the
// primary token and the only one enabled by default.
func NewTokenRegistry(network string) (*TokenRegistry, error) {
	usdtContract, ok := usdtContracts[strings.ToLower(network)]
	if !ok {
		return nil, &ConfigurationError{Key: "TRON_NETWORK", Reason: fmt.Sprintf("unknown network %q", network)}
	}

	r := &TokenRegistry{
		tokens:  make(map[string]*TokenInfo),
		primary: "USDT",
	}
	r.Add(&TokenInfo{
		Symbol:          "USDT",
		Name:            "Tether USD",
		ContractAddress: usdtContract,
		Decimals:        6,
		IsStable:        true,
		MinTransfer:     decimal.RequireFromString("0.000001"),
		Enabled:         true,
	})
	r.Add(&TokenInfo{
		Symbol:          "USDC",
		Name:            "USD Coin",
		ContractAddress: "TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8",
		Decimals:        6,
		IsStable:        true,
		MinTransfer:     decimal.RequireFromString("0.000001"),
		Enabled:         false,
	})
	r.Add(&TokenInfo{
		Symbol:          "BTT",
		Name:            "BitTorrent",
		ContractAddress: "TAFjULxiVgT4qWk6UZwjqwZXpQbNAaYCWA",
		Decimals:        18,
		MinTransfer:     decimal.NewFromInt(1),
		Enabled:         false,
	})
	return r, nil
}

// Add registers or replaces a token.
func (r *TokenRegistry) Add(t *TokenInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[strings.ToUpper(t.Symbol)] = t
}

// Get returns the token by symbol, case-insensitive.
func (r *TokenRegistry) Get(symbol string) (*TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[strings.ToUpper(symbol)]
	return t, ok
}

// GetByContract returns the token by contract address, case-insensitive.
func (r *TokenRegistry) GetByContract(address string) (*TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if strings.EqualFold(t.ContractAddress, address) {
			return t, true
		}
	}
	return nil, false
}

// Primary returns the primary settlement token (USDT).
func (r *TokenRegistry) Primary() *TokenInfo {
	t, _ := r.Get(r.primary)
	return t
}

// SetEnabled toggles a token. Returns false if the symbol is unknown.
func (r *TokenRegistry) SetEnabled(symbol string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[strings.ToUpper(symbol)]
	if !ok {
		return false
	}
	t.Enabled = enabled
	return true
}

// Enabled lists the enabled tokens.
func (r *TokenRegistry) Enabled() []*TokenInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TokenInfo, 0, len(r.tokens))
	for _, t := range r.tokens {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}
