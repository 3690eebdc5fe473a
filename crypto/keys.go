package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of a recoverable [R || S || V] signature.
const SignatureLength = 65

// PrivateKey wraps a secp256k1 key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// GeneratePrivateKey creates a fresh secp256k1 key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded key with or without 0x prefix.
func PrivateKeyFromHex(raw string) (*PrivateKey, error) {
	if len(raw) >= 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		raw = raw[2:]
	}
	key, err := ethcrypto.HexToECDSA(raw)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw key material.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// Address returns the address controlled by the key.
func (k *PrivateKey) Address() Address {
	return Address(ethcrypto.PubkeyToAddress(k.PrivateKey.PublicKey))
}

// Sign produces a recoverable signature over a 32-byte digest. V is returned
// in the 27/28 convention.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	sig, err := ethcrypto.Sign(digest, k.PrivateKey)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// SplitSignature breaks a 65-byte signature into v, r and s.
func SplitSignature(sig []byte) (uint8, [32]byte, [32]byte, error) {
	var r, s [32]byte
	if len(sig) != SignatureLength {
		return 0, r, s, fmt.Errorf("crypto: signature must be %d bytes", SignatureLength)
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	return sig[64], r, s, nil
}

// RecoverSigner returns the address that produced the signature over digest.
// Both the 0/1 and 27/28 V conventions are accepted.
func RecoverSigner(digest []byte, v uint8, r, s [32]byte) (Address, error) {
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return Address{}, errors.New("crypto: invalid signature recovery id")
	}
	sig := make([]byte, SignatureLength)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return Address(ethcrypto.PubkeyToAddress(*pub)), nil
}

// Keccak256 hashes the concatenation of the inputs.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}
