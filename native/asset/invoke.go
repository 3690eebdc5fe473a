package asset

import (
	"fmt"
	"math/big"

	"yieldpool/crypto"
)

// Invoke executes an ABI-encoded call on behalf of caller and returns the
// ABI-encoded result.
func (t *Token) Invoke(caller crypto.Address, payload []byte) ([]byte, error) {
	call, err := DecodeCall(payload)
	if err != nil {
		return nil, err
	}
	method := tokenABI.Methods[call.Method]
	switch call.Method {
	case MethodBalanceOf:
		amount, err := t.BalanceOf(call.Owner)
		return packAmount(method.Outputs.Pack, amount, err)
	case MethodAllowance:
		amount, err := t.Allowance(call.Owner, call.Spender)
		return packAmount(method.Outputs.Pack, amount, err)
	case MethodTotalSupply:
		amount, err := t.TotalSupply()
		return packAmount(method.Outputs.Pack, amount, err)
	case MethodTransfer:
		ok, err := t.Transfer(caller, call.To, call.Amount)
		return packBool(method.Outputs.Pack, ok, err)
	case MethodTransferFrom:
		ok, err := t.TransferFrom(caller, call.From, call.To, call.Amount)
		return packBool(method.Outputs.Pack, ok, err)
	case MethodApprove:
		ok, err := t.Approve(caller, call.Spender, call.Amount)
		return packBool(method.Outputs.Pack, ok, err)
	case MethodIncreaseAllowance:
		ok, err := t.IncreaseAllowance(caller, call.Spender, call.Amount)
		return packBool(method.Outputs.Pack, ok, err)
	case MethodTransferWithAuthorization:
		if err := t.TransferWithAuthorization(call.Auth); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Method)
}

type packFunc func(args ...interface{}) ([]byte, error)

func packAmount(pack packFunc, amount *big.Int, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return pack(amount)
}

func packBool(pack packFunc, ok bool, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return pack(ok)
}
