package account

import (
	"fmt"
	"math/big"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/asset"
)

// RecoverToken sweeps amount of token to to. A zero amount sweeps the full
// balance. Recovering the primary asset counts against the daily limit.
func (e *Engine) RecoverToken(caller, account, token, to crypto.Address, amount *big.Int) (*big.Int, error) {
	rec, release, err := e.enter(caller, account)
	if err != nil {
		return nil, err
	}
	defer release()

	if token.IsZero() || to.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if e.dispatcher == nil {
		return nil, fmt.Errorf("account: dispatcher not configured")
	}
	if amount.Sign() == 0 {
		query, err := asset.PackBalanceOf(account)
		if err != nil {
			return nil, err
		}
		out, err := e.dispatcher.Call(account, token, query, nil)
		if err != nil {
			return nil, fmt.Errorf("account: balance of %s: %w", token, err)
		}
		if amount, err = asset.UnpackAmount(asset.MethodBalanceOf, out); err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			return amount, nil
		}
	}
	if token == rec.Asset {
		if err := e.meter(rec, amount); err != nil {
			return nil, err
		}
	}
	payload, err := asset.PackTransfer(to, amount)
	if err != nil {
		return nil, err
	}
	if _, err := e.dispatcher.Call(account, token, payload, nil); err != nil {
		return nil, fmt.Errorf("account: recover %s: %w", token, err)
	}
	e.emitter.Emit(events.AccountFundsRecovered{Account: account, Token: token, To: to, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// RecoverNative sweeps native coin held by account. A zero amount sweeps the
// full balance.
func (e *Engine) RecoverNative(caller, account, to crypto.Address, amount *big.Int) (*big.Int, error) {
	_, release, err := e.enter(caller, account)
	if err != nil {
		return nil, err
	}
	defer release()

	if to.IsZero() {
		return nil, ErrZeroAddress
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if e.native == nil {
		return nil, fmt.Errorf("account: native ledger not configured")
	}
	balance, err := e.native.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		amount = balance
		if amount.Sign() == 0 {
			return amount, nil
		}
	}
	if balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.native.Transfer(account, to, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.AccountFundsRecovered{Account: account, To: to, Amount: new(big.Int).Set(amount)})
	return amount, nil
}
