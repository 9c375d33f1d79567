package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/protobuf/proto"

	"tron-gateway/internal/domain"
)

// signAndBroadcast signs the transaction with the wallet key and pushes it to
// the network, returning the transaction hash.
func (c *Client) signAndBroadcast(tx *core.Transaction, privateKeyHex string) (string, error) {
	signed, err := signTransaction(tx, privateKeyHex)
	if err != nil {
		return "", err
	}

	txHash, err := txHash(signed)
	if err != nil {
		return "", err
	}

	result, err := c.grpcClient.Broadcast(signed)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast: %w", err)
	}
	if !result.Result {
		return "", fmt.Errorf("broadcast rejected: %s", string(result.Message))
	}

	return txHash, nil
}

// signTransaction signs the SHA-256 of the serialized raw data with
// secp256k1, the TRON transaction signing scheme.
func signTransaction(tx *core.Transaction, privateKeyHex string) (*core.Transaction, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, &domain.CryptoError{Op: "parse_key", Err: err}
	}

	rawData, err := proto.Marshal(tx.RawData)
	if err != nil {
		return nil, &domain.CryptoError{Op: "marshal", Err: err}
	}
	hash := sha256.Sum256(rawData)

	signature, err := crypto.Sign(hash[:], privateKey)
	if err != nil {
		return nil, &domain.CryptoError{Op: "sign", Err: err}
	}

	tx.Signature = [][]byte{signature}
	return tx, nil
}

// txHash is the SHA-256 of the serialized raw data, hex encoded.
func txHash(tx *core.Transaction) (string, error) {
	rawData, err := proto.Marshal(tx.RawData)
	if err != nil {
		return "", &domain.CryptoError{Op: "marshal", Err: err}
	}
	hash := sha256.Sum256(rawData)
	return hex.EncodeToString(hash[:]), nil
}
