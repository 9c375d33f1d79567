package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WalletNotFoundError reports a lookup miss by wallet id or address.
type WalletNotFoundError struct {
	ID      int64
	Address string
}

func (e *WalletNotFoundError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("wallet not found: address %s", e.Address)
	}
	return fmt.Sprintf("wallet not found: id %d", e.ID)
}

// TransferNotFoundError reports a lookup miss by transfer id, reference or hash.
type TransferNotFoundError struct {
	Key string
}

func (e *TransferNotFoundError) Error() string {
	return fmt.Sprintf("transfer not found: %s", e.Key)
}

// ValidationError reports rejected input. Field names the offending parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBalanceError is returned when a wallet cannot cover the total
// amount of a transfer.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s",
		e.Required.String(), e.Available.String())
}

// CryptoError wraps key handling and signing failures.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid or missing setting at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}
