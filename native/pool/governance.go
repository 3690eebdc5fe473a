package pool

import (
	"time"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
)

// ProposeKernel arms a kernel upgrade. Any pending proposal is replaced and
// the timelock restarts. Owner only.
func (e *Engine) ProposeKernel(caller, kernel crypto.Address) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(e.store, ownerScope, caller); err != nil {
		return err
	}
	if kernel.IsZero() {
		return ErrZeroAddress
	}
	st, err := e.loadState()
	if err != nil {
		return err
	}
	st.Proposal.Propose(kernel, e.nowFn(), e.timelock)
	if err := e.storeState(st); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolKernelProposed{Kernel: kernel, ActivationAt: st.Proposal.Activation()})
	return nil
}

// UpgradeKernel activates the pending kernel once its timelock has elapsed.
// Owner only.
func (e *Engine) UpgradeKernel(caller crypto.Address) (crypto.Address, error) {
	release, err := e.guard.Enter()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	defer release()

	if err := common.RequireOwner(e.store, ownerScope, caller); err != nil {
		return crypto.ZeroAddress, err
	}
	st, err := e.loadState()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	if err := st.Proposal.Ready(e.nowFn()); err != nil {
		return crypto.ZeroAddress, err
	}
	previous := st.Kernel
	st.Kernel = st.Proposal.Pending
	st.Proposal.Clear()
	if err := e.storeState(st); err != nil {
		return crypto.ZeroAddress, err
	}
	e.emitter.Emit(events.PoolKernelUpgraded{Previous: previous, Kernel: st.Kernel})
	return st.Kernel, nil
}

// PendingKernel returns the proposed kernel and its activation time. The
// address is zero when nothing is pending.
func (e *Engine) PendingKernel() (crypto.Address, time.Time, error) {
	st, err := e.loadState()
	if err != nil {
		return crypto.ZeroAddress, time.Time{}, err
	}
	return st.Proposal.Pending, st.Proposal.Activation(), nil
}
