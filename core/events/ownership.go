package events

import (
	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	TypeOwnershipStarted     = "ownership.started"
	TypeOwnershipTransferred = "ownership.transferred"
)

// OwnershipStarted records the nomination of a successor owner.
type OwnershipStarted struct {
	Scope   string
	Owner   crypto.Address
	Pending crypto.Address
}

func (OwnershipStarted) EventType() string { return TypeOwnershipStarted }

func (e OwnershipStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnershipStarted,
		Attributes: map[string]string{
			"scope":   e.Scope,
			"owner":   formatAddress(e.Owner),
			"pending": formatAddress(e.Pending),
		},
	}
}

// OwnershipTransferred records an accepted handoff.
type OwnershipTransferred struct {
	Scope    string
	Previous crypto.Address
	Owner    crypto.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeOwnershipTransferred,
		Attributes: map[string]string{
			"scope":    e.Scope,
			"previous": formatAddress(e.Previous),
			"owner":    formatAddress(e.Owner),
		},
	}
}
