package core

import (
	"context"
	"math/big"

	"yieldpool/crypto"
	"yieldpool/native/asset"
	"yieldpool/native/lending"
)

// Deposit adds amount to the pool on behalf of caller.
func (n *Node) Deposit(ctx context.Context, caller crypto.Address, amount, minShares *big.Int) (*big.Int, *Receipt, error) {
	var shares *big.Int
	receipt, err := n.execute(ctx, "pool.deposit", caller, func() error {
		var err error
		shares, err = n.pool.Deposit(caller, amount, minShares)
		return err
	})
	return shares, receipt, err
}

// Withdraw redeems shares of caller.
func (n *Node) Withdraw(ctx context.Context, caller crypto.Address, shares, minAssets *big.Int) (*big.Int, *Receipt, error) {
	var assets *big.Int
	receipt, err := n.execute(ctx, "pool.withdraw", caller, func() error {
		var err error
		assets, err = n.pool.Withdraw(caller, shares, minAssets)
		return err
	})
	return assets, receipt, err
}

// SetInvestorStatus toggles the pool whitelist.
func (n *Node) SetInvestorStatus(ctx context.Context, caller, investor crypto.Address, eligible bool) (*Receipt, error) {
	return n.execute(ctx, "pool.set_investor", caller, func() error {
		return n.pool.SetInvestorStatus(caller, investor, eligible)
	})
}

// ProposeKernel starts the timelock for a kernel replacement.
func (n *Node) ProposeKernel(ctx context.Context, caller, kernel crypto.Address) (*Receipt, error) {
	return n.execute(ctx, "pool.propose_kernel", caller, func() error {
		return n.pool.ProposeKernel(caller, kernel)
	})
}

// UpgradeKernel activates the pending kernel once its timelock has elapsed.
func (n *Node) UpgradeKernel(ctx context.Context, caller crypto.Address) (crypto.Address, *Receipt, error) {
	var active crypto.Address
	receipt, err := n.execute(ctx, "pool.upgrade_kernel", caller, func() error {
		var err error
		active, err = n.pool.UpgradeKernel(caller)
		return err
	})
	return active, receipt, err
}

// TransferPoolOwnership nominates a successor pool owner.
func (n *Node) TransferPoolOwnership(ctx context.Context, caller, next crypto.Address) (*Receipt, error) {
	return n.execute(ctx, "pool.transfer_ownership", caller, func() error {
		return n.pool.TransferOwnership(caller, next)
	})
}

// AcceptPoolOwnership completes a pool ownership handoff.
func (n *Node) AcceptPoolOwnership(ctx context.Context, caller crypto.Address) (*Receipt, error) {
	return n.execute(ctx, "pool.accept_ownership", caller, func() error {
		return n.pool.AcceptOwnership(caller)
	})
}

// DeployKernel creates a new kernel instance owned by caller. The pool owner
// still has to propose and activate it.
func (n *Node) DeployKernel(ctx context.Context, caller crypto.Address, cfg lending.Config) (crypto.Address, *Receipt, error) {
	var addr crypto.Address
	receipt, err := n.execute(ctx, "kernel.deploy", caller, func() error {
		var err error
		addr, err = n.deployKernel(caller, cfg)
		return err
	})
	return addr, receipt, err
}

// SetSolver toggles a borrower on the whitelist of kernel.
func (n *Node) SetSolver(ctx context.Context, caller, kernel, solver crypto.Address, eligible bool) (*Receipt, error) {
	return n.execute(ctx, "kernel.set_solver", caller, func() error {
		k, err := n.kernel(kernel)
		if err != nil {
			return err
		}
		return k.SetSolver(caller, solver, eligible)
	})
}

// SetTreasury changes the fee recipient of kernel.
func (n *Node) SetTreasury(ctx context.Context, caller, kernel, treasury crypto.Address) (*Receipt, error) {
	return n.execute(ctx, "kernel.set_treasury", caller, func() error {
		k, err := n.kernel(kernel)
		if err != nil {
			return err
		}
		return k.SetTreasury(caller, treasury)
	})
}

// SetPerformanceFee changes the protocol fee share of kernel.
func (n *Node) SetPerformanceFee(ctx context.Context, caller, kernel crypto.Address, bps uint64) (*Receipt, error) {
	return n.execute(ctx, "kernel.set_fee", caller, func() error {
		k, err := n.kernel(kernel)
		if err != nil {
			return err
		}
		return k.SetPerformanceFee(caller, bps)
	})
}

// DeployCapital lends pool capital to a whitelisted borrower.
func (n *Node) DeployCapital(ctx context.Context, caller, kernel, borrower crypto.Address, amount *big.Int, memo string) (*Receipt, error) {
	return n.execute(ctx, "kernel.deploy_capital", caller, func() error {
		k, err := n.kernel(kernel)
		if err != nil {
			return err
		}
		return k.DeployCapital(caller, borrower, amount, memo)
	})
}

// RepayLoan settles the loan of caller.
func (n *Node) RepayLoan(ctx context.Context, caller, kernel crypto.Address, principal, fee *big.Int) (lending.FeeSplit, *Receipt, error) {
	var split lending.FeeSplit
	receipt, err := n.execute(ctx, "kernel.repay_loan", caller, func() error {
		k, err := n.kernel(kernel)
		if err != nil {
			return err
		}
		split, err = k.RepayLoan(caller, principal, fee)
		return err
	})
	return split, receipt, err
}

// CreateAccount registers the personal account of caller.
func (n *Node) CreateAccount(ctx context.Context, caller crypto.Address) (crypto.Address, *Receipt, error) {
	var addr crypto.Address
	receipt, err := n.execute(ctx, "account.create", caller, func() error {
		var err error
		addr, err = n.accounts.Create(caller)
		return err
	})
	return addr, receipt, err
}

// Pay sends the primary asset out of an account.
func (n *Node) Pay(ctx context.Context, caller, acct, to crypto.Address, amount *big.Int) (*Receipt, error) {
	return n.execute(ctx, "account.pay", caller, func() error {
		return n.accounts.Pay(caller, acct, to, amount)
	})
}

// SetDailyLimit changes the daily outflow cap of an account.
func (n *Node) SetDailyLimit(ctx context.Context, caller, acct crypto.Address, limit *big.Int) (*Receipt, error) {
	return n.execute(ctx, "account.set_daily_limit", caller, func() error {
		return n.accounts.SetDailyLimit(caller, acct, limit)
	})
}

// ExecuteBatch runs a batch of calls as acct. Either every call commits or
// none does.
func (n *Node) ExecuteBatch(ctx context.Context, caller, acct crypto.Address, targets []crypto.Address, payloads [][]byte, values []*big.Int) ([][]byte, *Receipt, error) {
	var results [][]byte
	receipt, err := n.execute(ctx, "account.execute_batch", caller, func() error {
		var err error
		results, err = n.accounts.ExecuteBatch(caller, acct, targets, payloads, values)
		return err
	})
	return results, receipt, err
}

// DepositToSavings moves account funds into the pool.
func (n *Node) DepositToSavings(ctx context.Context, caller, acct crypto.Address, amount, minShares *big.Int) (*big.Int, *Receipt, error) {
	var shares *big.Int
	receipt, err := n.execute(ctx, "account.deposit_savings", caller, func() error {
		var err error
		shares, err = n.accounts.DepositToSavings(caller, acct, amount, minShares)
		return err
	})
	return shares, receipt, err
}

// WithdrawFromSavings redeems account shares from the pool.
func (n *Node) WithdrawFromSavings(ctx context.Context, caller, acct crypto.Address, shares, minAssets *big.Int) (*big.Int, *Receipt, error) {
	var assets *big.Int
	receipt, err := n.execute(ctx, "account.withdraw_savings", caller, func() error {
		var err error
		assets, err = n.accounts.WithdrawFromSavings(caller, acct, shares, minAssets)
		return err
	})
	return assets, receipt, err
}

// RecoverToken sweeps tokens held by an account.
func (n *Node) RecoverToken(ctx context.Context, caller, acct, token, to crypto.Address, amount *big.Int) (*big.Int, *Receipt, error) {
	var recovered *big.Int
	receipt, err := n.execute(ctx, "account.recover_token", caller, func() error {
		var err error
		recovered, err = n.accounts.RecoverToken(caller, acct, token, to, amount)
		return err
	})
	return recovered, receipt, err
}

// RecoverNative sweeps native coin held by an account.
func (n *Node) RecoverNative(ctx context.Context, caller, acct, to crypto.Address, amount *big.Int) (*big.Int, *Receipt, error) {
	var recovered *big.Int
	receipt, err := n.execute(ctx, "account.recover_native", caller, func() error {
		var err error
		recovered, err = n.accounts.RecoverNative(caller, acct, to, amount)
		return err
	})
	return recovered, receipt, err
}

// TransferWithAuthorization submits a signed transfer of the primary asset.
// Anyone may relay it; the signature identifies the payer.
func (n *Node) TransferWithAuthorization(ctx context.Context, relayer crypto.Address, auth *asset.Authorization) (*Receipt, error) {
	return n.execute(ctx, "asset.transfer_with_authorization", relayer, func() error {
		return n.token.TransferWithAuthorization(auth)
	})
}

// Mint issues new units of the primary asset. Issuer only.
func (n *Node) Mint(ctx context.Context, caller, to crypto.Address, amount *big.Int) (*Receipt, error) {
	return n.execute(ctx, "asset.mint", caller, func() error {
		return n.token.Mint(caller, to, amount)
	})
}
