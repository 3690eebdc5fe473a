package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"yieldpool/core"
	"yieldpool/core/types"
	"yieldpool/crypto"
	"yieldpool/gateway/middleware"
	"yieldpool/native/asset"
	"yieldpool/storage/audit"
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func TestMintTokenAcceptedByGateway(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	token, err := mintToken([]byte("secret"), tokenParams{
		Subject:  key.Address(),
		Scopes:   []string{"audit"},
		Issuer:   "poolctl",
		Audience: "yieldpool",
		TTL:      time.Minute,
		Now:      time.Now(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: "secret",
		Issuer:     "poolctl",
		Audience:   "yieldpool",
	}, nil)
	var caller crypto.Address
	handler := auth.Middleware("audit")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ = middleware.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/head", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected token to pass, got %d", rec.Code)
	}
	if caller != key.Address() {
		t.Fatalf("caller mismatch: got %s want %s", caller, key.Address())
	}
}

func TestMintTokenRejectsBadInput(t *testing.T) {
	addr := crypto.BytesToAddress([]byte{0x01})
	if _, err := mintToken(nil, tokenParams{Subject: addr, TTL: time.Minute}); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
	if _, err := mintToken([]byte("s"), tokenParams{TTL: time.Minute}); err == nil {
		t.Fatalf("expected zero subject to fail")
	}
	if _, err := mintToken([]byte("s"), tokenParams{Subject: addr}); err == nil {
		t.Fatalf("expected zero ttl to fail")
	}
}

func TestSignAuthorizationRecoversSigner(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	nonce, err := parseNonce("")
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	meta := asset.Metadata{Name: "Yield Dollar", Symbol: "YUSD", Decimals: 6, ChainID: 7}
	auth := &asset.Authorization{
		To:          crypto.BytesToAddress([]byte{0x02}),
		Value:       bigInt(250),
		ValidAfter:  bigInt(0),
		ValidBefore: bigInt(time.Now().Add(time.Hour).Unix()),
		Nonce:       nonce,
	}
	payload, err := signAuthorization(meta, key, auth)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if payload.From != key.Address().String() || payload.Value != "250" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.Nonce) != 32 || len(payload.Signature) != crypto.SignatureLength {
		t.Fatalf("unexpected lengths nonce=%d sig=%d", len(payload.Nonce), len(payload.Signature))
	}

	v, r, s, err := crypto.SplitSignature(payload.Signature)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	digest, err := asset.AuthorizationDigest(meta, core.AssetAddress, auth)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	signer, err := crypto.RecoverSigner(digest, v, r, s)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != key.Address() {
		t.Fatalf("recovered %s, want %s", signer, key.Address())
	}
}

func TestParseNonce(t *testing.T) {
	if _, err := parseNonce("0x1234"); err == nil {
		t.Fatalf("expected short nonce to fail")
	}
	if _, err := parseNonce("zz"); err == nil {
		t.Fatalf("expected malformed nonce to fail")
	}
	raw := "0x" + strings.Repeat("ab", 32)
	nonce, err := parseNonce(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if nonce[0] != 0xab || nonce[31] != 0xab {
		t.Fatalf("unexpected nonce %x", nonce)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" audit, ,write ")
	if len(got) != 2 || got[0] != "audit" || got[1] != "write" {
		t.Fatalf("unexpected list %v", got)
	}
	if splitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestExportAndVerifyArchive(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "audit.db")
	store, err := audit.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	caller := crypto.BytesToAddress([]byte{0x0a})
	var prev core.Digest
	for i := 1; i <= 3; i++ {
		r := &core.Receipt{
			ID:        uuid.New(),
			Sequence:  uint64(i),
			Operation: "pool.deposit",
			Caller:    caller,
			Timestamp: time.Date(2026, 5, 1, 12, i, 0, 0, time.UTC),
			Events:    []*types.Event{{Type: "pool.deposit", Attributes: map[string]string{"assets": "100"}}},
			Prev:      prev,
		}
		r.Digest = r.ComputeDigest()
		prev = r.Digest
		if err := store.Publish(context.Background(), r); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	if err := runVerify([]string{"-dsn", dsn}, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out.String(), "verified 3 receipts") {
		t.Fatalf("unexpected verify output %q", out.String())
	}

	out.Reset()
	target := filepath.Join(dir, "receipts.parquet")
	if err := runExport([]string{"-dsn", dsn, "-out", target, "-after", "1"}, &out); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out.String(), "wrote 2 rows") {
		t.Fatalf("unexpected export output %q", out.String())
	}
	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected parquet file, err=%v", err)
	}
}

func TestKeygenImportsAndReadsBack(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("POOLCTL_TEST_KEY", "0x"+hex.EncodeToString(key.Bytes()))
	t.Setenv("POOLCTL_TEST_PASS", "correct horse")
	path := filepath.Join(t.TempDir(), "key.json")

	var out bytes.Buffer
	args := []string{"-out", path, "-pass-env", "POOLCTL_TEST_PASS", "-import-env", "POOLCTL_TEST_KEY"}
	if err := runKeygen(args, &out); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if !strings.Contains(out.String(), key.Address().String()) {
		t.Fatalf("expected imported address in output, got %q", out.String())
	}
	if err := runKeygen(args, &out); err == nil {
		t.Fatalf("expected existing keystore to be protected")
	}

	out.Reset()
	if err := runAddress([]string{"-key", path, "-pass-env", "POOLCTL_TEST_PASS"}, &out); err != nil {
		t.Fatalf("address: %v", err)
	}
	if !strings.Contains(out.String(), key.Address().Hex()) {
		t.Fatalf("unexpected address output %q", out.String())
	}
}
