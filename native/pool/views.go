package pool

import (
	"math/big"
	"time"

	"yieldpool/crypto"
	"yieldpool/native/common"
)

// Summary is a point-in-time view of the ledger.
type Summary struct {
	TotalShares     *big.Int
	CapitalDeployed *big.Int
	OnHand          *big.Int
	ManagedAssets   *big.Int
	Kernel          crypto.Address
	PendingKernel   crypto.Address
	ActivationAt    time.Time
}

// Summary returns the ledger totals.
func (e *Engine) Summary() (*Summary, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	balance, err := e.onHand()
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalShares:     st.TotalShares,
		CapitalDeployed: st.CapitalDeployed,
		OnHand:          balance,
		ManagedAssets:   new(big.Int).Add(balance, st.CapitalDeployed),
		Kernel:          st.Kernel,
		PendingKernel:   st.Proposal.Pending,
		ActivationAt:    st.Proposal.Activation(),
	}, nil
}

// TotalShares returns the outstanding shares.
func (e *Engine) TotalShares() (*big.Int, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return st.TotalShares, nil
}

// CapitalDeployed returns the capital currently out with the kernel.
func (e *Engine) CapitalDeployed() (*big.Int, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return st.CapitalDeployed, nil
}

// OnHand returns the idle balance held by the ledger.
func (e *Engine) OnHand() (*big.Int, error) { return e.onHand() }

// TotalManagedAssets returns on-hand balance plus deployed capital.
func (e *Engine) TotalManagedAssets() (*big.Int, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return e.managedAssets(st)
}

// SharesOf returns the shares held by investor.
func (e *Engine) SharesOf(investor crypto.Address) (*big.Int, error) {
	pos, err := e.Position(investor)
	if err != nil {
		return nil, err
	}
	return pos.Shares, nil
}

// Position returns the full position record of investor.
func (e *Engine) Position(investor crypto.Address) (*Position, error) {
	if e.store == nil {
		return nil, errNilState
	}
	return e.loadPosition(investor)
}

// PreviewDeposit returns the shares a deposit of amount would mint now.
func (e *Engine) PreviewDeposit(amount *big.Int) (*big.Int, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	managed, err := e.managedAssets(st)
	if err != nil {
		return nil, err
	}
	return sharesForAssets(amount, st.TotalShares, managed)
}

// PreviewWithdraw returns the assets shares would redeem for now.
func (e *Engine) PreviewWithdraw(shares *big.Int) (*big.Int, error) {
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	managed, err := e.managedAssets(st)
	if err != nil {
		return nil, err
	}
	return assetsForShares(shares, st.TotalShares, managed)
}

// Kernel returns the active kernel.
func (e *Engine) Kernel() (crypto.Address, error) {
	st, err := e.loadState()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return st.Kernel, nil
}

// IsInvestor reports whether addr may deposit.
func (e *Engine) IsInvestor(addr crypto.Address) (bool, error) {
	if e.store == nil {
		return false, errNilState
	}
	return e.store.KVGet(investorKey(addr), nil)
}

// Owner returns the ledger owner.
func (e *Engine) Owner() (crypto.Address, error) {
	rec, err := common.LoadOwnership(e.store, ownerScope)
	return rec.Owner, err
}
