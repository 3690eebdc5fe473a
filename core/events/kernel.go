package events

import (
	"math/big"
	"strconv"

	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	TypeKernelSolverStatus  = "kernel.solver_status"
	TypeKernelTreasurySet   = "kernel.treasury_set"
	TypeKernelFeeSet        = "kernel.fee_set"
	TypeKernelLoanDisbursed = "kernel.loan_disbursed"
	TypeKernelLoanRepaid    = "kernel.loan_repaid"
	TypeKernelFeeSplit      = "kernel.fee_split"
)

// KernelSolverStatus records borrower whitelist changes.
type KernelSolverStatus struct {
	Kernel   crypto.Address
	Solver   crypto.Address
	Eligible bool
}

func (KernelSolverStatus) EventType() string { return TypeKernelSolverStatus }

func (e KernelSolverStatus) Event() *types.Event {
	return &types.Event{
		Type: TypeKernelSolverStatus,
		Attributes: map[string]string{
			"kernel":   formatAddress(e.Kernel),
			"solver":   formatAddress(e.Solver),
			"eligible": formatBool(e.Eligible),
		},
	}
}

// KernelTreasurySet records a treasury change.
type KernelTreasurySet struct {
	Kernel   crypto.Address
	Treasury crypto.Address
}

func (KernelTreasurySet) EventType() string { return TypeKernelTreasurySet }

func (e KernelTreasurySet) Event() *types.Event {
	return &types.Event{
		Type: TypeKernelTreasurySet,
		Attributes: map[string]string{
			"kernel":   formatAddress(e.Kernel),
			"treasury": formatAddress(e.Treasury),
		},
	}
}

// KernelFeeSet records a performance fee change.
type KernelFeeSet struct {
	Kernel crypto.Address
	FeeBps uint64
}

func (KernelFeeSet) EventType() string { return TypeKernelFeeSet }

func (e KernelFeeSet) Event() *types.Event {
	return &types.Event{
		Type: TypeKernelFeeSet,
		Attributes: map[string]string{
			"kernel": formatAddress(e.Kernel),
			"feeBps": strconv.FormatUint(e.FeeBps, 10),
		},
	}
}

// KernelLoanDisbursed records capital sent to a borrower.
type KernelLoanDisbursed struct {
	Kernel   crypto.Address
	Borrower crypto.Address
	Amount   *big.Int
	Memo     string
}

func (KernelLoanDisbursed) EventType() string { return TypeKernelLoanDisbursed }

func (e KernelLoanDisbursed) Event() *types.Event {
	attrs := map[string]string{
		"kernel":   formatAddress(e.Kernel),
		"borrower": formatAddress(e.Borrower),
		"amount":   formatAmount(e.Amount),
	}
	if memo := normalizeMemo(e.Memo); memo != "" {
		attrs["memo"] = memo
	}
	return &types.Event{Type: TypeKernelLoanDisbursed, Attributes: attrs}
}

// KernelLoanRepaid records a fully repaid loan.
type KernelLoanRepaid struct {
	Kernel    crypto.Address
	Borrower  crypto.Address
	Principal *big.Int
	Fee       *big.Int
}

func (KernelLoanRepaid) EventType() string { return TypeKernelLoanRepaid }

func (e KernelLoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeKernelLoanRepaid,
		Attributes: map[string]string{
			"kernel":    formatAddress(e.Kernel),
			"borrower":  formatAddress(e.Borrower),
			"principal": formatAmount(e.Principal),
			"fee":       formatAmount(e.Fee),
		},
	}
}

// KernelFeeSplit records how a repayment fee was divided.
type KernelFeeSplit struct {
	Kernel        crypto.Address
	Treasury      crypto.Address
	TreasuryShare *big.Int
	InvestorShare *big.Int
}

func (KernelFeeSplit) EventType() string { return TypeKernelFeeSplit }

func (e KernelFeeSplit) Event() *types.Event {
	return &types.Event{
		Type: TypeKernelFeeSplit,
		Attributes: map[string]string{
			"kernel":        formatAddress(e.Kernel),
			"treasury":      formatAddress(e.Treasury),
			"treasuryShare": formatAmount(e.TreasuryShare),
			"investorShare": formatAmount(e.InvestorShare),
		},
	}
}
