package common

import (
	"fmt"

	"yieldpool/core/events"
	"yieldpool/crypto"
)

// Store abstracts the subset of state manager functionality the native
// modules persist through.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var ownershipPrefix = []byte("ownership/")

func ownershipKey(scope string) []byte {
	return append(append([]byte(nil), ownershipPrefix...), scope...)
}

// Ownership is the persisted two-step ownership record of one component
// instance.
type Ownership struct {
	Owner   crypto.Address
	Pending crypto.Address
}

// LoadOwnership reads the ownership record of scope. A missing record yields
// the zero value.
func LoadOwnership(store Store, scope string) (Ownership, error) {
	var rec Ownership
	if store == nil {
		return rec, fmt.Errorf("ownership: state unavailable")
	}
	if _, err := store.KVGet(ownershipKey(scope), &rec); err != nil {
		return rec, fmt.Errorf("ownership: load %s: %w", scope, err)
	}
	return rec, nil
}

// InitOwner stores owner for scope. It is used at genesis and when a new
// instance is created.
func InitOwner(store Store, scope string, owner crypto.Address) error {
	if owner.IsZero() {
		return ErrZeroAddress
	}
	return store.KVPut(ownershipKey(scope), &Ownership{Owner: owner})
}

// RequireOwner fails with ErrNotOwner unless caller owns scope.
func RequireOwner(store Store, scope string, caller crypto.Address) error {
	rec, err := LoadOwnership(store, scope)
	if err != nil {
		return err
	}
	if rec.Owner.IsZero() || rec.Owner != caller {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership nominates next as the successor of scope. Authority does
// not move until next accepts.
func TransferOwnership(store Store, emitter events.Emitter, scope string, caller, next crypto.Address) error {
	rec, err := LoadOwnership(store, scope)
	if err != nil {
		return err
	}
	if rec.Owner.IsZero() || rec.Owner != caller {
		return ErrNotOwner
	}
	if next.IsZero() {
		return ErrZeroAddress
	}
	rec.Pending = next
	if err := store.KVPut(ownershipKey(scope), &rec); err != nil {
		return err
	}
	if emitter != nil {
		emitter.Emit(events.OwnershipStarted{Scope: scope, Owner: rec.Owner, Pending: next})
	}
	return nil
}

// AcceptOwnership completes a handoff started by TransferOwnership.
func AcceptOwnership(store Store, emitter events.Emitter, scope string, caller crypto.Address) error {
	rec, err := LoadOwnership(store, scope)
	if err != nil {
		return err
	}
	if rec.Pending.IsZero() || rec.Pending != caller {
		return ErrNotPendingOwner
	}
	previous := rec.Owner
	rec.Owner = caller
	rec.Pending = crypto.ZeroAddress
	if err := store.KVPut(ownershipKey(scope), &rec); err != nil {
		return err
	}
	if emitter != nil {
		emitter.Emit(events.OwnershipTransferred{Scope: scope, Previous: previous, Owner: caller})
	}
	return nil
}
