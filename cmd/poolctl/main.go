package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"yieldpool/cmd/internal/passphrase"
	"yieldpool/core"
	"yieldpool/core/genesis"
	"yieldpool/crypto"
	gwconfig "yieldpool/gateway/config"
	"yieldpool/native/asset"
	"yieldpool/storage/audit"
)

const (
	defaultPassEnv = "YIELDPOOL_KEYSTORE_PASS"
	defaultGenesis = "./genesis.json"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(args, os.Stdout)
	case "address":
		err = runAddress(args, os.Stdout)
	case "token":
		err = runToken(args, os.Stdout)
	case "sign-auth":
		err = runSignAuth(args, os.Stdout)
	case "export":
		err = runExport(args, os.Stdout)
	case "verify":
		err = runVerify(args, os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: poolctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  keygen     generate a key and write an encrypted keystore")
	fmt.Fprintln(os.Stderr, "  address    print the address held by a keystore")
	fmt.Fprintln(os.Stderr, "  token      mint a gateway bearer token")
	fmt.Fprintln(os.Stderr, "  sign-auth  sign a transfer authorization for relaying")
	fmt.Fprintln(os.Stderr, "  export     write archived receipts to a parquet file")
	fmt.Fprintln(os.Stderr, "  verify     check the archived receipt chain")
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keystorePath := fs.String("out", "poolctl.keystore", "output path for the keystore")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	importEnv := fs.String("import-env", "", "environment variable holding a hex key to wrap instead of generating one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*keystorePath); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists; use -force to overwrite", *keystorePath)
	}
	key, err := newOrImportedKey(*importEnv)
	if err != nil {
		return err
	}
	pass, err := passphrase.NewSource(*passEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	if err := crypto.WriteKeyFile(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	addr := key.Address()
	fmt.Fprintf(out, "address: %s\nhex:     %s\nkeystore: %s\n", addr.String(), addr.Hex(), *keystorePath)
	return nil
}

func newOrImportedKey(importEnv string) (*crypto.PrivateKey, error) {
	if importEnv == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		return key, nil
	}
	raw := strings.TrimSpace(os.Getenv(importEnv))
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", importEnv)
	}
	key, err := crypto.PrivateKeyFromHex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", importEnv, err)
	}
	return key, nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	keystorePath := fs.String("key", "poolctl.keystore", "keystore path")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	addr := key.Address()
	fmt.Fprintf(out, "address: %s\nhex:     %s\n", addr.String(), addr.Hex())
	return nil
}

func loadKey(path, passEnv string) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passEnv, "keystore passphrase").Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.ReadKeyFile(path, pass)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	return key, nil
}

type tokenParams struct {
	Subject  crypto.Address
	Scopes   []string
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      time.Time
}

// mintToken signs an HS256 token the gateway authenticator accepts.
func mintToken(secret []byte, p tokenParams) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("token secret must not be empty")
	}
	if p.Subject.IsZero() {
		return "", fmt.Errorf("subject must not be the zero address")
	}
	if p.TTL <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	claims := jwt.MapClaims{
		"sub": p.Subject.String(),
		"iat": p.Now.Unix(),
		"exp": p.Now.Add(p.TTL).Unix(),
	}
	if len(p.Scopes) > 0 {
		claims["scope"] = strings.Join(p.Scopes, " ")
	}
	if p.Issuer != "" {
		claims["iss"] = p.Issuer
	}
	if p.Audience != "" {
		claims["aud"] = p.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("sub", "", "caller address the token authenticates")
	scopes := fs.String("scope", "", "comma separated scopes, e.g. audit")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	secretEnv := fs.String("secret-env", gwconfig.SecretEnv, "environment variable holding the signing secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := crypto.ParseAddress(*subject)
	if err != nil {
		return fmt.Errorf("invalid -sub: %w", err)
	}
	secret, err := passphrase.NewSource(*secretEnv, "token secret").Get()
	if err != nil {
		return err
	}
	token, err := mintToken([]byte(secret), tokenParams{
		Subject:  addr,
		Scopes:   splitList(*scopes),
		Issuer:   *issuer,
		Audience: *audience,
		TTL:      *ttl,
		Now:      time.Now(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// authorizationPayload mirrors the body POST /v1/asset/authorizations expects.
type authorizationPayload struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	Value       string        `json:"value"`
	ValidAfter  string        `json:"validAfter"`
	ValidBefore string        `json:"validBefore"`
	Nonce       hexutil.Bytes `json:"nonce"`
	Signature   hexutil.Bytes `json:"signature"`
}

// signAuthorization signs auth for the asset described by meta and returns
// the relayable payload. auth.From is set to the key's address.
func signAuthorization(meta asset.Metadata, key *crypto.PrivateKey, auth *asset.Authorization) (*authorizationPayload, error) {
	auth.From = key.Address()
	if err := asset.SignAuthorization(meta, core.AssetAddress, auth, key); err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	sig := make([]byte, 0, 65)
	sig = append(sig, auth.R[:]...)
	sig = append(sig, auth.S[:]...)
	sig = append(sig, auth.V)
	return &authorizationPayload{
		From:        auth.From.String(),
		To:          auth.To.String(),
		Value:       auth.Value.String(),
		ValidAfter:  auth.ValidAfter.String(),
		ValidBefore: auth.ValidBefore.String(),
		Nonce:       append([]byte(nil), auth.Nonce[:]...),
		Signature:   sig,
	}, nil
}

func runSignAuth(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-auth", flag.ContinueOnError)
	keystorePath := fs.String("key", "poolctl.keystore", "keystore of the paying account")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	genesisPath := fs.String("genesis", defaultGenesis, "genesis file describing the asset")
	to := fs.String("to", "", "recipient address")
	value := fs.String("value", "", "amount in base units")
	validFor := fs.Duration("valid-for", time.Hour, "validity window starting now")
	nonceHex := fs.String("nonce", "", "32 byte hex nonce; random when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spec, err := genesis.LoadSpec(*genesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	recipient, err := crypto.ParseAddress(*to)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(*value), 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("invalid -value %q", *value)
	}
	nonce, err := parseNonce(*nonceHex)
	if err != nil {
		return err
	}
	key, err := loadKey(*keystorePath, *passEnv)
	if err != nil {
		return err
	}

	now := time.Now()
	payload, err := signAuthorization(core.GenesisAssetMetadata(spec), key, &asset.Authorization{
		To:          recipient,
		Value:       amount,
		ValidAfter:  big.NewInt(now.Add(-time.Minute).Unix()),
		ValidBefore: big.NewInt(now.Add(*validFor).Unix()),
		Nonce:       nonce,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func parseNonce(raw string) ([32]byte, error) {
	var nonce [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if _, err := rand.Read(nonce[:]); err != nil {
			return nonce, fmt.Errorf("generate nonce: %w", err)
		}
		return nonce, nil
	}
	decoded, err := hexutil.Decode(raw)
	if err != nil {
		return nonce, fmt.Errorf("invalid -nonce: %w", err)
	}
	if len(decoded) != len(nonce) {
		return nonce, fmt.Errorf("invalid -nonce: want 32 bytes, got %d", len(decoded))
	}
	copy(nonce[:], decoded)
	return nonce, nil
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "audit archive DSN")
	path := fs.String("out", "receipts.parquet", "output parquet file")
	after := fs.Uint64("after", 0, "only export receipts after this sequence")
	limit := fs.Int("limit", 0, "maximum number of receipts; 0 exports all")
	operation := fs.String("op", "", "only export this operation")
	caller := fs.String("caller", "", "only export receipts of this caller")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := audit.Query{AfterSequence: *after, Limit: *limit, Operation: *operation}
	if *caller != "" {
		addr, err := crypto.ParseAddress(*caller)
		if err != nil {
			return fmt.Errorf("invalid -caller: %w", err)
		}
		q.Caller = addr
	}
	store, err := audit.Open(*dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.ExportParquet(context.Background(), *path, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d rows to %s\n", rows, *path)
	return nil
}

func runVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "audit archive DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := audit.Open(*dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	checked, err := store.Verify(context.Background())
	if err != nil {
		return fmt.Errorf("chain broken after %d receipts: %w", checked, err)
	}
	fmt.Fprintf(out, "verified %d receipts\n", checked)
	return nil
}
