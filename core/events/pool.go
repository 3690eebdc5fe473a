package events

import (
	"math/big"
	"time"

	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	TypePoolDeposit              = "pool.deposit"
	TypePoolWithdraw             = "pool.withdraw"
	TypePoolCapitalPushed        = "pool.capital_pushed"
	TypePoolRepaymentReceived    = "pool.repayment_received"
	TypePoolRepaymentDiscrepancy = "pool.repayment_discrepancy"
	TypePoolInvestorStatus       = "pool.investor_status"
	TypePoolKernelProposed       = "pool.kernel_proposed"
	TypePoolKernelUpgraded       = "pool.kernel_upgraded"
)

// PoolDeposit records shares minted against a deposit.
type PoolDeposit struct {
	Investor crypto.Address
	Assets   *big.Int
	Shares   *big.Int
}

func (PoolDeposit) EventType() string { return TypePoolDeposit }

func (e PoolDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypePoolDeposit,
		Attributes: map[string]string{
			"investor": formatAddress(e.Investor),
			"assets":   formatAmount(e.Assets),
			"shares":   formatAmount(e.Shares),
		},
	}
}

// PoolWithdraw records shares burned and assets paid out.
type PoolWithdraw struct {
	Investor crypto.Address
	Assets   *big.Int
	Shares   *big.Int
}

func (PoolWithdraw) EventType() string { return TypePoolWithdraw }

func (e PoolWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypePoolWithdraw,
		Attributes: map[string]string{
			"investor": formatAddress(e.Investor),
			"assets":   formatAmount(e.Assets),
			"shares":   formatAmount(e.Shares),
		},
	}
}

// PoolCapitalPushed records capital leaving the pool for the kernel.
type PoolCapitalPushed struct {
	Kernel          crypto.Address
	Amount          *big.Int
	CapitalDeployed *big.Int
}

func (PoolCapitalPushed) EventType() string { return TypePoolCapitalPushed }

func (e PoolCapitalPushed) Event() *types.Event {
	return &types.Event{
		Type: TypePoolCapitalPushed,
		Attributes: map[string]string{
			"kernel":          formatAddress(e.Kernel),
			"amount":          formatAmount(e.Amount),
			"capitalDeployed": formatAmount(e.CapitalDeployed),
		},
	}
}

// PoolRepaymentReceived records principal returning from the kernel along with
// the investor share of the fee.
type PoolRepaymentReceived struct {
	Kernel          crypto.Address
	Principal       *big.Int
	Profit          *big.Int
	CapitalDeployed *big.Int
}

func (PoolRepaymentReceived) EventType() string { return TypePoolRepaymentReceived }

func (e PoolRepaymentReceived) Event() *types.Event {
	return &types.Event{
		Type: TypePoolRepaymentReceived,
		Attributes: map[string]string{
			"kernel":          formatAddress(e.Kernel),
			"principal":       formatAmount(e.Principal),
			"profit":          formatAmount(e.Profit),
			"capitalDeployed": formatAmount(e.CapitalDeployed),
		},
	}
}

// PoolRepaymentDiscrepancy is the warning variant emitted when the kernel
// reports more principal than the pool tracked as deployed.
type PoolRepaymentDiscrepancy struct {
	Kernel    crypto.Address
	Principal *big.Int
	Profit    *big.Int
	Tracked   *big.Int
}

func (PoolRepaymentDiscrepancy) EventType() string { return TypePoolRepaymentDiscrepancy }

func (e PoolRepaymentDiscrepancy) Event() *types.Event {
	return &types.Event{
		Type: TypePoolRepaymentDiscrepancy,
		Attributes: map[string]string{
			"kernel":    formatAddress(e.Kernel),
			"principal": formatAmount(e.Principal),
			"profit":    formatAmount(e.Profit),
			"tracked":   formatAmount(e.Tracked),
		},
	}
}

// PoolInvestorStatus records investor whitelist changes.
type PoolInvestorStatus struct {
	Investor crypto.Address
	Eligible bool
}

func (PoolInvestorStatus) EventType() string { return TypePoolInvestorStatus }

func (e PoolInvestorStatus) Event() *types.Event {
	return &types.Event{
		Type: TypePoolInvestorStatus,
		Attributes: map[string]string{
			"investor": formatAddress(e.Investor),
			"eligible": formatBool(e.Eligible),
		},
	}
}

// PoolKernelProposed records a kernel upgrade proposal.
type PoolKernelProposed struct {
	Kernel       crypto.Address
	ActivationAt time.Time
}

func (PoolKernelProposed) EventType() string { return TypePoolKernelProposed }

func (e PoolKernelProposed) Event() *types.Event {
	return &types.Event{
		Type: TypePoolKernelProposed,
		Attributes: map[string]string{
			"kernel":       formatAddress(e.Kernel),
			"activationAt": formatTime(e.ActivationAt),
		},
	}
}

// PoolKernelUpgraded records the activation of a proposed kernel.
type PoolKernelUpgraded struct {
	Previous crypto.Address
	Kernel   crypto.Address
}

func (PoolKernelUpgraded) EventType() string { return TypePoolKernelUpgraded }

func (e PoolKernelUpgraded) Event() *types.Event {
	return &types.Event{
		Type: TypePoolKernelUpgraded,
		Attributes: map[string]string{
			"previous": formatAddress(e.Previous),
			"kernel":   formatAddress(e.Kernel),
		},
	}
}
