package bank

import (
	"fmt"
	"math/big"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
)

var balancePrefix = []byte("bank/balance/")

func balanceKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), balancePrefix...), addr[:]...)
}

// Ledger tracks native coin balances. Values attached to batched calls and
// native recoveries move through it.
type Ledger struct {
	store   common.Store
	emitter events.Emitter
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store common.Store) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// BalanceOf returns the native balance of addr.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: state unavailable")
	}
	balance := new(big.Int)
	if _, err := l.store.KVGet(balanceKey(addr), balance); err != nil {
		return nil, fmt.Errorf("bank: load balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) setBalance(addr crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.store.KVDelete(balanceKey(addr))
	}
	return l.store.KVPut(balanceKey(addr), amount)
}

// Credit mints amount to addr. Only genesis and tests call it.
func (l *Ledger) Credit(addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return common.ErrInvalidAmount
	}
	balance, err := l.BalanceOf(addr)
	if err != nil {
		return err
	}
	return l.setBalance(addr, balance.Add(balance, amount))
}

// Transfer moves amount from one address to another. A zero amount is a
// no-op so calls without attached value can go through unconditionally.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return common.ErrInvalidAmount
	}
	if to.IsZero() {
		return common.ErrZeroAddress
	}
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %w", common.ErrInsufficientFunds)
	}
	if err := l.setBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.setBalance(to, toBalance.Add(toBalance, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.NativeTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
