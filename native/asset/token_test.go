package asset

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"yieldpool/core/events"
	"yieldpool/core/state"
	"yieldpool/crypto"
	"yieldpool/storage"
)

type fixture struct {
	token *Token
	rec   *events.Recorder
	owner crypto.Address
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:   &events.Recorder{},
		owner: crypto.ContractAddress("issuer"),
		now:   time.Unix(1_700_000_000, 0),
	}
	f.token = NewToken(crypto.ContractAddress("asset"), Metadata{Name: "Pool Dollar", Symbol: "PUSD", Decimals: 6, ChainID: 7})
	f.token.SetState(state.NewManager(storage.NewMemDB()))
	f.token.SetEmitter(f.rec)
	f.token.SetNowFunc(func() time.Time { return f.now })
	if err := f.token.InitOwner(f.owner); err != nil {
		t.Fatalf("init owner: %v", err)
	}
	return f
}

func (f *fixture) mint(t *testing.T, to crypto.Address, amount int64) {
	t.Helper()
	if err := f.token.Mint(f.owner, to, big.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, who crypto.Address) int64 {
	t.Helper()
	bal, err := f.token.BalanceOf(who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestMintRequiresOwner(t *testing.T) {
	f := newFixture(t)
	alice := crypto.ContractAddress("alice")
	if err := f.token.Mint(alice, alice, big.NewInt(1)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	f.mint(t, alice, 500)
	supply, _ := f.token.TotalSupply()
	if supply.Int64() != 500 || f.balance(t, alice) != 500 {
		t.Fatalf("unexpected supply %s", supply)
	}
}

func TestTransferAndAllowance(t *testing.T) {
	f := newFixture(t)
	alice := crypto.ContractAddress("alice")
	bob := crypto.ContractAddress("bob")
	spender := crypto.ContractAddress("spender")
	f.mint(t, alice, 100)

	if ok, err := f.token.Transfer(alice, bob, big.NewInt(30)); err != nil || !ok {
		t.Fatalf("transfer: ok=%v err=%v", ok, err)
	}
	if _, err := f.token.Transfer(alice, bob, big.NewInt(71)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if _, err := f.token.TransferFrom(spender, alice, bob, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if _, err := f.token.Approve(alice, spender, big.NewInt(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.token.IncreaseAllowance(alice, spender, big.NewInt(5)); err != nil {
		t.Fatalf("increase allowance: %v", err)
	}
	if ok, err := f.token.TransferFrom(spender, alice, bob, big.NewInt(15)); err != nil || !ok {
		t.Fatalf("transferFrom: ok=%v err=%v", ok, err)
	}
	remaining, _ := f.token.Allowance(alice, spender)
	if remaining.Sign() != 0 {
		t.Fatalf("expected allowance spent, got %s", remaining)
	}
	if f.balance(t, alice) != 55 || f.balance(t, bob) != 45 {
		t.Fatalf("unexpected balances alice=%d bob=%d", f.balance(t, alice), f.balance(t, bob))
	}
	if got := len(f.rec.OfType(events.TypeAssetApproval)); got != 2 {
		t.Fatalf("expected 2 approval events, got %d", got)
	}
}

func TestTransferWithAuthorization(t *testing.T) {
	f := newFixture(t)
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	holder := key.Address()
	bob := crypto.ContractAddress("bob")
	f.mint(t, holder, 100)

	auth := &Authorization{
		From:        holder,
		To:          bob,
		Value:       big.NewInt(40),
		ValidAfter:  big.NewInt(f.now.Unix() - 1),
		ValidBefore: big.NewInt(f.now.Unix() + 60),
		Nonce:       [32]byte{1},
	}
	if err := SignAuthorization(f.token.Metadata(), f.token.Address(), auth, key); err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := *auth
	tampered.Value = big.NewInt(41)
	if err := f.token.TransferWithAuthorization(&tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered value, got %v", err)
	}

	if err := f.token.TransferWithAuthorization(auth); err != nil {
		t.Fatalf("transfer with authorization: %v", err)
	}
	if f.balance(t, bob) != 40 {
		t.Fatalf("unexpected bob balance %d", f.balance(t, bob))
	}
	if err := f.token.TransferWithAuthorization(auth); !errors.Is(err, ErrAuthorizationUsed) {
		t.Fatalf("expected replay rejected, got %v", err)
	}

	late := *auth
	late.Nonce = [32]byte{2}
	if err := SignAuthorization(f.token.Metadata(), f.token.Address(), &late, key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	f.now = f.now.Add(time.Minute)
	if err := f.token.TransferWithAuthorization(&late); !errors.Is(err, ErrAuthorizationExpired) {
		t.Fatalf("expected ErrAuthorizationExpired, got %v", err)
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	f := newFixture(t)
	alice := crypto.ContractAddress("alice")
	bob := crypto.ContractAddress("bob")
	f.mint(t, alice, 10)

	payload, err := PackTransfer(bob, big.NewInt(4))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	call, err := DecodeCall(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.Method != MethodTransfer || call.To != bob || call.Amount.Int64() != 4 || call.View() {
		t.Fatalf("unexpected decoded call %+v", call)
	}
	if _, err := f.token.Invoke(alice, payload); err != nil {
		t.Fatalf("invoke transfer: %v", err)
	}

	query, _ := PackBalanceOf(bob)
	out, err := f.token.Invoke(alice, query)
	if err != nil {
		t.Fatalf("invoke balanceOf: %v", err)
	}
	amount, err := UnpackAmount(MethodBalanceOf, out)
	if err != nil || amount.Int64() != 4 {
		t.Fatalf("unexpected balanceOf result %v err=%v", amount, err)
	}

	if _, err := DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}
