package core

import (
	"context"
	"fmt"

	"yieldpool/core/genesis"
	"yieldpool/crypto"
	"yieldpool/native/asset"
	"yieldpool/native/lending"
)

// Genesis bootstraps an empty state from spec: asset metadata and issuer, the
// first kernel, the pool, whitelists, personal accounts and balances. It runs
// as a single operation and can only be applied once.
func (n *Node) Genesis(ctx context.Context, spec *genesis.Spec) (*Receipt, error) {
	if spec == nil {
		return nil, fmt.Errorf("core: genesis spec must not be nil")
	}
	meta := GenesisAssetMetadata(spec)

	n.mu.Lock()
	applied, err := n.state.KVGet(keyGenesis, nil)
	if err == nil && applied {
		err = ErrGenesisApplied
	}
	previous := n.meta
	if err == nil {
		n.meta = meta
		err = n.wire(meta)
	}
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}

	receipt, err := n.execute(ctx, "genesis", spec.Issuer(), func() error {
		return n.applyGenesis(spec)
	})
	if err != nil {
		n.mu.Lock()
		n.meta = previous
		if wireErr := n.wire(previous); wireErr != nil {
			err = fmt.Errorf("%w (rewire: %v)", err, wireErr)
		}
		n.mu.Unlock()
		return nil, err
	}
	return receipt, nil
}

func (n *Node) applyGenesis(spec *genesis.Spec) error {
	meta := n.token.Metadata()
	if err := n.state.KVPut(keyAssetMeta, &meta); err != nil {
		return err
	}
	if err := n.token.InitOwner(spec.Issuer()); err != nil {
		return fmt.Errorf("genesis: asset: %w", err)
	}
	kernel, err := n.deployKernel(spec.KernelOwner(), lending.Config{
		Treasury:          spec.Treasury(),
		PerformanceFeeBps: spec.Kernel.PerformanceFeeBps,
	})
	if err != nil {
		return fmt.Errorf("genesis: kernel: %w", err)
	}
	if err := n.pool.Init(spec.PoolOwner(), kernel); err != nil {
		return fmt.Errorf("genesis: pool: %w", err)
	}
	for _, investor := range spec.InvestorAddresses() {
		if err := n.pool.SetInvestorStatus(spec.PoolOwner(), investor, true); err != nil {
			return fmt.Errorf("genesis: investor %s: %w", investor, err)
		}
	}
	k := n.kernels[kernel]
	for _, solver := range spec.SolverAddresses() {
		if err := k.SetSolver(spec.KernelOwner(), solver, true); err != nil {
			return fmt.Errorf("genesis: solver %s: %w", solver, err)
		}
	}
	for _, owner := range spec.AccountOwners() {
		if _, err := n.accounts.Create(owner); err != nil {
			return fmt.Errorf("genesis: account %s: %w", owner, err)
		}
	}
	for _, alloc := range spec.Allocations() {
		if alloc.Asset.Sign() > 0 {
			if err := n.token.Mint(spec.Issuer(), alloc.Address, alloc.Asset); err != nil {
				return fmt.Errorf("genesis: alloc %s: %w", alloc.Address, err)
			}
		}
		if alloc.Native.Sign() > 0 {
			if err := n.bank.Credit(alloc.Address, alloc.Native); err != nil {
				return fmt.Errorf("genesis: alloc %s: %w", alloc.Address, err)
			}
		}
	}
	return n.state.KVPut(keyGenesis, uint64(spec.GenesisTimestamp().Unix()))
}

// GenesisAssetMetadata returns the asset metadata a node adopts when it
// applies spec. Off-node signers use it to build authorization digests.
func GenesisAssetMetadata(spec *genesis.Spec) asset.Metadata {
	return asset.Metadata{
		Name:     spec.Asset.Name,
		Symbol:   spec.Asset.Symbol,
		Decimals: spec.Asset.Decimals,
		ChainID:  spec.ChainIDValue(),
	}
}

// GenesisApplied reports whether the state has been bootstrapped.
func (n *Node) GenesisApplied() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.KVGet(keyGenesis, nil)
}

// PrimaryKernel returns the kernel the pool currently trusts.
func (n *Node) PrimaryKernel() (crypto.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.Kernel()
}
