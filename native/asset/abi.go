package asset

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	coreerrors "yieldpool/core/errors"
	"yieldpool/crypto"
)

// Method names of the token call interface.
const (
	MethodBalanceOf                 = "balanceOf"
	MethodAllowance                 = "allowance"
	MethodTotalSupply               = "totalSupply"
	MethodTransfer                  = "transfer"
	MethodTransferFrom              = "transferFrom"
	MethodApprove                   = "approve"
	MethodIncreaseAllowance         = "increaseAllowance"
	MethodTransferWithAuthorization = "transferWithAuthorization"
)

const tokenABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"increaseAllowance","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferWithAuthorization","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"validAfter","type":"uint256"},{"name":"validBefore","type":"uint256"},{"name":"nonce","type":"bytes32"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"outputs":[]}
]`

// ErrUnknownMethod is returned for payloads whose selector is not part of the
// token interface.
var ErrUnknownMethod = coreerrors.New(coreerrors.KindPrecondition, "asset: unknown method")

var tokenABI = mustParseABI(tokenABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("asset: parse abi: %v", err))
	}
	return parsed
}

// ABI returns the token call interface.
func ABI() abi.ABI { return tokenABI }

// Call is a decoded token call. Fields not carried by the method are zero.
type Call struct {
	Method  string
	From    crypto.Address
	To      crypto.Address
	Spender crypto.Address
	Owner   crypto.Address
	Amount  *big.Int
	Auth    *Authorization
}

// View reports whether the call only reads state.
func (c *Call) View() bool {
	switch c.Method {
	case MethodBalanceOf, MethodAllowance, MethodTotalSupply:
		return true
	}
	return false
}

// DecodeCall parses an ABI-encoded token call.
func DecodeCall(payload []byte) (*Call, error) {
	if len(payload) < 4 {
		return nil, ErrUnknownMethod
	}
	method, err := tokenABI.MethodById(payload[:4])
	if err != nil {
		return nil, ErrUnknownMethod
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, fmt.Errorf("asset: decode %s: %w", method.Name, err)
	}
	call := &Call{Method: method.Name}
	switch method.Name {
	case MethodBalanceOf:
		call.Owner = addressArg(args[0])
	case MethodAllowance:
		call.Owner = addressArg(args[0])
		call.Spender = addressArg(args[1])
	case MethodTotalSupply:
	case MethodTransfer:
		call.To = addressArg(args[0])
		call.Amount = bigArg(args[1])
	case MethodTransferFrom:
		call.From = addressArg(args[0])
		call.To = addressArg(args[1])
		call.Amount = bigArg(args[2])
	case MethodApprove, MethodIncreaseAllowance:
		call.Spender = addressArg(args[0])
		call.Amount = bigArg(args[1])
	case MethodTransferWithAuthorization:
		auth := &Authorization{
			From:        addressArg(args[0]),
			To:          addressArg(args[1]),
			Value:       bigArg(args[2]),
			ValidAfter:  bigArg(args[3]),
			ValidBefore: bigArg(args[4]),
			Nonce:       args[5].([32]byte),
			V:           args[6].(uint8),
			R:           args[7].([32]byte),
			S:           args[8].([32]byte),
		}
		call.Auth = auth
		call.From = auth.From
		call.To = auth.To
		call.Amount = auth.Value
	default:
		return nil, ErrUnknownMethod
	}
	return call, nil
}

func addressArg(v interface{}) crypto.Address {
	return crypto.FromCommon(v.(ethcommon.Address))
}

func bigArg(v interface{}) *big.Int {
	return new(big.Int).Set(v.(*big.Int))
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to crypto.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack(MethodTransfer, to.Common(), amount)
}

// PackTransferFrom encodes transferFrom(from, to, amount).
func PackTransferFrom(from, to crypto.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack(MethodTransferFrom, from.Common(), to.Common(), amount)
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender crypto.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack(MethodApprove, spender.Common(), amount)
}

// PackIncreaseAllowance encodes increaseAllowance(spender, amount).
func PackIncreaseAllowance(spender crypto.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack(MethodIncreaseAllowance, spender.Common(), amount)
}

// PackBalanceOf encodes balanceOf(owner).
func PackBalanceOf(owner crypto.Address) ([]byte, error) {
	return tokenABI.Pack(MethodBalanceOf, owner.Common())
}

// PackTransferWithAuthorization encodes a signed authorization.
func PackTransferWithAuthorization(auth *Authorization) ([]byte, error) {
	return tokenABI.Pack(MethodTransferWithAuthorization,
		auth.From.Common(), auth.To.Common(), auth.Value, auth.ValidAfter, auth.ValidBefore,
		auth.Nonce, auth.V, auth.R, auth.S)
}

// UnpackAmount decodes the uint256 result of a view call.
func UnpackAmount(method string, data []byte) (*big.Int, error) {
	out, err := tokenABI.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("asset: unexpected %s result", method)
	}
	return bigArg(out[0]), nil
}
