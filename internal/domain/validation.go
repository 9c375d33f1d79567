package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/shopspring/decimal"
)

const (
	maxAmountDecimals = 6
	maxReferenceLen   = 255
	tronAddressLen    = 34
)

var maxAmount = decimal.NewFromInt(1_000_000_000)

// ValidateAmount accepts a positive amount of at most one billion with no
// more than six fractional digits (TRC-20 USDT precision).
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{Field: "amount", Reason: "exceeds maximum of 1000000000"}
	}
	if amount.Exponent() < -maxAmountDecimals {
		return &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("more than %d decimal places", maxAmountDecimals),
		}
	}
	return nil
}

// ValidateReferenceID accepts an optional external reference of at most 255
// characters drawn from letters, digits, dash, underscore and dot.
func ValidateReferenceID(ref string) error {
	if ref == "" {
		return nil
	}
	if len(ref) > maxReferenceLen {
		return &ValidationError{Field: "reference_id", Reason: "longer than 255 characters"}
	}
	for _, c := range ref {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return &ValidationError{
				Field:  "reference_id",
				Reason: fmt.Sprintf("illegal character %q", c),
			}
		}
	}
	return nil
}

// ValidateAddress accepts a base58check TRON address (T prefix, 34 chars).
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "T") {
		return &ValidationError{Field: "address", Reason: "must start with T"}
	}
	if len(addr) != tronAddressLen {
		return &ValidationError{Field: "address", Reason: "must be 34 characters"}
	}
	if _, err := address.Base58ToAddress(addr); err != nil {
		return &ValidationError{Field: "address", Reason: "invalid base58check encoding"}
	}
	return nil
}

// ValidatePrivateKey accepts a 32-byte hex-encoded secp256k1 private key.
func ValidatePrivateKey(keyHex string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return &ValidationError{Field: "private_key", Reason: "not valid hex"}
	}
	if len(raw) != 32 {
		return &ValidationError{Field: "private_key", Reason: "must be 32 bytes"}
	}
	return nil
}
