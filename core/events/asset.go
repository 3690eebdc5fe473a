package events

import (
	"math/big"

	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	TypeAssetTransfer  = "asset.transfer"
	TypeAssetApproval  = "asset.approval"
	TypeNativeTransfer = "native.transfer"
)

// AssetTransfer records a token balance movement. From is zero for mints.
type AssetTransfer struct {
	Token  crypto.Address
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (AssetTransfer) EventType() string { return TypeAssetTransfer }

func (e AssetTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetTransfer,
		Attributes: map[string]string{
			"token":  formatAddress(e.Token),
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// AssetApproval records an allowance change.
type AssetApproval struct {
	Token   crypto.Address
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *big.Int
}

func (AssetApproval) EventType() string { return TypeAssetApproval }

func (e AssetApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetApproval,
		Attributes: map[string]string{
			"token":   formatAddress(e.Token),
			"owner":   formatAddress(e.Owner),
			"spender": formatAddress(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// NativeTransfer records a native coin movement.
type NativeTransfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (NativeTransfer) EventType() string { return TypeNativeTransfer }

func (e NativeTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeNativeTransfer,
		Attributes: map[string]string{
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}
