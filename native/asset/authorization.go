package asset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"yieldpool/crypto"
)

// Authorization is an off-line signed transfer that anyone may submit. The
// window is [ValidAfter, ValidBefore) in unix seconds.
type Authorization struct {
	From        crypto.Address
	To          crypto.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
	V           uint8
	R           [32]byte
	S           [32]byte
}

var (
	domainTypeHash = crypto.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	transferWithAuthorizationTypeHash = crypto.Keccak256([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	bytes32Type = mustType("bytes32")
	uint256Type = mustType("uint256")
	addressType = mustType("address")

	domainArgs = abi.Arguments{
		{Type: bytes32Type}, {Type: bytes32Type}, {Type: bytes32Type}, {Type: uint256Type}, {Type: addressType},
	}
	authArgs = abi.Arguments{
		{Type: bytes32Type}, {Type: addressType}, {Type: addressType}, {Type: uint256Type},
		{Type: uint256Type}, {Type: uint256Type}, {Type: bytes32Type},
	}
)

func toBytes32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

// DomainSeparator returns the signing domain hash for a token.
func DomainSeparator(meta Metadata, token crypto.Address) ([32]byte, error) {
	encoded, err := domainArgs.Pack(
		toBytes32(domainTypeHash),
		toBytes32(crypto.Keccak256([]byte(meta.Name))),
		toBytes32(crypto.Keccak256([]byte(meta.Version))),
		new(big.Int).SetUint64(meta.ChainID),
		ethcommon.Address(token),
	)
	if err != nil {
		return [32]byte{}, err
	}
	return toBytes32(crypto.Keccak256(encoded)), nil
}

// AuthorizationDigest returns the digest the holder of From signs.
func AuthorizationDigest(meta Metadata, token crypto.Address, auth *Authorization) ([]byte, error) {
	domain, err := DomainSeparator(meta, token)
	if err != nil {
		return nil, err
	}
	encoded, err := authArgs.Pack(
		toBytes32(transferWithAuthorizationTypeHash),
		auth.From.Common(),
		auth.To.Common(),
		nonNil(auth.Value),
		nonNil(auth.ValidAfter),
		nonNil(auth.ValidBefore),
		auth.Nonce,
	)
	if err != nil {
		return nil, err
	}
	structHash := crypto.Keccak256(encoded)
	return crypto.Keccak256([]byte{0x19, 0x01}, domain[:], structHash), nil
}

// SignAuthorization fills V, R and S of auth with key's signature.
func SignAuthorization(meta Metadata, token crypto.Address, auth *Authorization, key *crypto.PrivateKey) error {
	digest, err := AuthorizationDigest(meta, token, auth)
	if err != nil {
		return err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return err
	}
	v, r, s, err := crypto.SplitSignature(sig)
	if err != nil {
		return err
	}
	auth.V, auth.R, auth.S = v, r, s
	return nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (t *Token) nonceKey(from crypto.Address, nonce [32]byte) []byte {
	key := t.key("authnonce", from)
	key = append(key, '/')
	return append(key, nonce[:]...)
}

// AuthorizationState reports whether nonce has been consumed for from.
func (t *Token) AuthorizationState(from crypto.Address, nonce [32]byte) (bool, error) {
	if t.store == nil {
		return false, fmt.Errorf("asset: state unavailable")
	}
	return t.store.KVGet(t.nonceKey(from, nonce), nil)
}

// TransferWithAuthorization executes a transfer signed by auth.From. Anyone
// may submit it.
func (t *Token) TransferWithAuthorization(auth *Authorization) error {
	if auth == nil {
		return ErrInvalidSignature
	}
	now := big.NewInt(t.nowFn().Unix())
	if now.Cmp(nonNil(auth.ValidAfter)) <= 0 {
		return ErrAuthorizationNotYetValid
	}
	if auth.ValidBefore != nil && now.Cmp(auth.ValidBefore) >= 0 {
		return ErrAuthorizationExpired
	}
	used, err := t.AuthorizationState(auth.From, auth.Nonce)
	if err != nil {
		return err
	}
	if used {
		return ErrAuthorizationUsed
	}
	digest, err := AuthorizationDigest(t.meta, t.addr, auth)
	if err != nil {
		return err
	}
	signer, err := crypto.RecoverSigner(digest, auth.V, auth.R, auth.S)
	if err != nil || signer != auth.From {
		return ErrInvalidSignature
	}
	if err := t.store.KVPut(t.nonceKey(auth.From, auth.Nonce), true); err != nil {
		return err
	}
	return t.move(auth.From, auth.To, nonNil(auth.Value))
}
