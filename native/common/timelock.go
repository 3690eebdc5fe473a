package common

import (
	"time"

	"yieldpool/crypto"
)

// Timelock holds a delayed proposal for a critical parameter. ActivationAt is
// unix seconds.
type Timelock struct {
	Pending      crypto.Address
	ActivationAt uint64
}

// Propose records target as pending. An existing proposal is replaced and the
// delay starts over.
func (t *Timelock) Propose(target crypto.Address, now time.Time, delay time.Duration) {
	t.Pending = target
	t.ActivationAt = uint64(now.Add(delay).Unix())
}

// HasPending reports whether a proposal is waiting.
func (t Timelock) HasPending() bool { return !t.Pending.IsZero() }

// Activation returns the earliest time the proposal can be executed.
func (t Timelock) Activation() time.Time {
	if !t.HasPending() {
		return time.Time{}
	}
	return time.Unix(int64(t.ActivationAt), 0).UTC()
}

// Ready checks whether the pending proposal can be executed at now.
func (t Timelock) Ready(now time.Time) error {
	if !t.HasPending() {
		return ErrNoPendingUpgrade
	}
	if now.Unix() < int64(t.ActivationAt) {
		return ErrTimelockActive
	}
	return nil
}

// Clear drops the proposal.
func (t *Timelock) Clear() {
	t.Pending = crypto.ZeroAddress
	t.ActivationAt = 0
}
