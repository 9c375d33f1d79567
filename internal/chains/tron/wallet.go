package tron

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fbsobreira/gotron-sdk/pkg/address"

	"tron-gateway/internal/domain"
)

// Keypair is a freshly generated wallet credential.
type Keypair struct {
	Address       string
	PrivateKeyHex string
}

// GenerateKeypair creates a secp256k1 key and derives its TRON address.
func GenerateKeypair() (*Keypair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, &domain.CryptoError{Op: "generate_key", Err: err}
	}

	publicKey := privateKey.Public().(*ecdsa.PublicKey)
	addr := address.PubkeyToAddress(*publicKey)

	return &Keypair{
		Address:       addr.String(),
		PrivateKeyHex: hex.EncodeToString(crypto.FromECDSA(privateKey)),
	}, nil
}

// AddressFromPrivateKey re-derives the address of an existing key.
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", &domain.CryptoError{Op: "parse_key", Err: err}
	}
	publicKey := privateKey.Public().(*ecdsa.PublicKey)
	return address.PubkeyToAddress(*publicKey).String(), nil
}
