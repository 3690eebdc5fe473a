package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAddressAcceptsBech32AndHex(t *testing.T) {
	addr := ContractAddress("pool")
	if addr.IsZero() {
		t.Fatalf("contract address should not be zero")
	}

	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("unexpected bech32 prefix: %s", encoded)
	}
	fromBech, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	fromHex, err := ParseAddress(addr.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if fromBech != addr || fromHex != addr {
		t.Fatalf("parsed addresses differ: %s %s %s", fromBech, fromHex, addr)
	}
}

func TestParseAddressRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "0x1234", "znx1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq", "not-an-address"}
	for _, tc := range cases {
		if _, err := ParseAddress(tc); err == nil {
			t.Fatalf("expected error for %q", tc)
		}
	}
}

func TestContractAddressIsDeterministic(t *testing.T) {
	if ContractAddress("kernel/1") != ContractAddress("kernel/1") {
		t.Fatalf("contract address not deterministic")
	}
	if ContractAddress("kernel/1") == ContractAddress("kernel/2") {
		t.Fatalf("distinct labels collided")
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := Keccak256([]byte("authorization"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v, r, s, err := SplitSignature(sig)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if v != 27 && v != 28 {
		t.Fatalf("unexpected v %d", v)
	}
	signer, err := RecoverSigner(digest, v, r, s)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != key.Address() {
		t.Fatalf("recovered %s, want %s", signer, key.Address())
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "operator.json")
	if err := WriteKeyFile(path, key, "secret"); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	loaded, err := ReadKeyFile(path, "secret")
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Fatalf("loaded key address mismatch")
	}
	if _, err := ReadKeyFile(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
