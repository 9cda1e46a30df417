package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// KeypairSigner signs with a private key loaded from configuration
type KeypairSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewKeypairSigner parses a base58 encoded private key
func NewKeypairSigner(privateKeyB58 string) (*KeypairSigner, error) {
	if privateKeyB58 == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}

	privateKey, err := solana.PrivateKeyFromBase58(privateKeyB58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &KeypairSigner{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// PublicKey returns the wallet address
func (k *KeypairSigner) PublicKey() solana.PublicKey {
	return k.publicKey
}

// SignTransaction adds the wallet's signature to tx. Signatures for other
// required signers are left as they are.
func (k *KeypairSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !isSigner(tx, k.publicKey) {
		return nil, fmt.Errorf("transaction does not require a signature from %s", k.publicKey)
	}

	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(k.publicKey) {
			return &k.privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx, nil
}

func isSigner(tx *solana.Transaction, key solana.PublicKey) bool {
	signers := int(tx.Message.Header.NumRequiredSignatures)
	for i, account := range tx.Message.AccountKeys {
		if i >= signers {
			break
		}
		if account.Equals(key) {
			return true
		}
	}
	return false
}
