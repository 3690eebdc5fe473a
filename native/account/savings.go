package account

import (
	"math/big"

	"yieldpool/core/events"
	"yieldpool/crypto"
)

// DepositToSavings moves amount of the primary asset into the pool. The
// allowance is granted for the call and cleared afterwards. Shares are
// measured by balance delta.
func (e *Engine) DepositToSavings(caller, account crypto.Address, amount, minShares *big.Int) (*big.Int, error) {
	_, release, err := e.enter(caller, account)
	if err != nil {
		return nil, err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool := e.savings.Address()
	before, err := e.savings.SharesOf(account)
	if err != nil {
		return nil, err
	}
	if err := transferred(e.asset.Approve(account, pool, amount)); err != nil {
		return nil, err
	}
	if _, err := e.savings.Deposit(account, amount, minShares); err != nil {
		return nil, err
	}
	if err := transferred(e.asset.Approve(account, pool, new(big.Int))); err != nil {
		return nil, err
	}
	after, err := e.savings.SharesOf(account)
	if err != nil {
		return nil, err
	}
	minted := new(big.Int).Sub(after, before)
	e.emitter.Emit(events.AccountSavings{Account: account, Assets: new(big.Int).Set(amount), Shares: minted})
	return minted, nil
}

// WithdrawFromSavings redeems shares from the pool. Assets are measured by
// balance delta.
func (e *Engine) WithdrawFromSavings(caller, account crypto.Address, shares, minAssets *big.Int) (*big.Int, error) {
	_, release, err := e.enter(caller, account)
	if err != nil {
		return nil, err
	}
	defer release()

	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	before, err := e.asset.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	if _, err := e.savings.Withdraw(account, shares, minAssets); err != nil {
		return nil, err
	}
	after, err := e.asset.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	received := new(big.Int).Sub(after, before)
	e.emitter.Emit(events.AccountSavings{Account: account, Withdraw: true, Assets: received, Shares: new(big.Int).Set(shares)})
	return received, nil
}
