package bank

import (
	"errors"
	"math/big"
	"testing"

	"yieldpool/core/events"
	"yieldpool/core/state"
	"yieldpool/crypto"
	"yieldpool/native/common"
	"yieldpool/storage"
)

func TestLedgerTransfer(t *testing.T) {
	ledger := NewLedger(state.NewManager(storage.NewMemDB()))
	rec := &events.Recorder{}
	ledger.SetEmitter(rec)

	alice := crypto.ContractAddress("alice")
	bob := crypto.ContractAddress("bob")
	if err := ledger.Credit(alice, big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(7)); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should be a no-op: %v", err)
	}

	aliceBal, _ := ledger.BalanceOf(alice)
	bobBal, _ := ledger.BalanceOf(bob)
	if aliceBal.Int64() != 6 || bobBal.Int64() != 4 {
		t.Fatalf("unexpected balances alice=%s bob=%s", aliceBal, bobBal)
	}
	if got := len(rec.OfType(events.TypeNativeTransfer)); got != 1 {
		t.Fatalf("expected one transfer event, got %d", got)
	}
}
