package core

import (
	"math/big"
	"sort"

	"yieldpool/crypto"
	"yieldpool/native/account"
	"yieldpool/native/asset"
	"yieldpool/native/lending"
	"yieldpool/native/pool"
)

// Balances groups the holdings of one address.
type Balances struct {
	Asset  *big.Int `json:"asset"`
	Native *big.Int `json:"native"`
	Shares *big.Int `json:"shares"`
}

// KernelInfo summarises one deployed kernel.
type KernelInfo struct {
	Address           crypto.Address `json:"address"`
	Owner             crypto.Address `json:"owner"`
	Treasury          crypto.Address `json:"treasury"`
	PerformanceFeeBps uint64         `json:"performanceFeeBps"`
	Active            bool           `json:"active"`
}

// AssetMetadata returns the metadata of the primary asset.
func (n *Node) AssetMetadata() asset.Metadata {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.Metadata()
}

// PoolSummary returns the ledger totals.
func (n *Node) PoolSummary() (*pool.Summary, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.Summary()
}

// PreviewDeposit returns the shares amount would mint right now.
func (n *Node) PreviewDeposit(amount *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.PreviewDeposit(amount)
}

// PreviewWithdraw returns the assets shares would redeem right now.
func (n *Node) PreviewWithdraw(shares *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.PreviewWithdraw(shares)
}

// Position returns the pool position of investor.
func (n *Node) Position(investor crypto.Address) (*pool.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.Position(investor)
}

// Balances returns the holdings of addr.
func (n *Node) Balances(addr crypto.Address) (*Balances, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	assets, err := n.token.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	native, err := n.bank.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	shares, err := n.pool.SharesOf(addr)
	if err != nil {
		return nil, err
	}
	return &Balances{Asset: assets, Native: native, Shares: shares}, nil
}

// Kernels lists every deployed kernel in address order.
func (n *Node) Kernels() ([]KernelInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	active, err := n.pool.Kernel()
	if err != nil {
		return nil, err
	}
	out := make([]KernelInfo, 0, len(n.kernels))
	for addr, k := range n.kernels {
		owner, err := k.Owner()
		if err != nil {
			return nil, err
		}
		treasury, err := k.Treasury()
		if err != nil {
			return nil, err
		}
		bps, err := k.PerformanceFeeBps()
		if err != nil {
			return nil, err
		}
		out = append(out, KernelInfo{
			Address:           addr,
			Owner:             owner,
			Treasury:          treasury,
			PerformanceFeeBps: bps,
			Active:            addr == active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	return out, nil
}

// Loan returns the loan of borrower at kernel.
func (n *Node) Loan(kernel, borrower crypto.Address) (*lending.Loan, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k, err := n.kernel(kernel)
	if err != nil {
		return nil, err
	}
	return k.Loan(borrower)
}

// Account returns the record of a personal account.
func (n *Node) Account(addr crypto.Address) (*account.Record, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accounts.Account(addr)
}

// AccountOwner returns the owner of a personal account.
func (n *Node) AccountOwner(addr crypto.Address) (crypto.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accounts.Owner(addr)
}

// SpentToday returns the outflow counted against the account's limit in the
// current day.
func (n *Node) SpentToday(addr crypto.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accounts.SpentToday(addr)
}
