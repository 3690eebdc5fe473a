package pool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	coreerrors "yieldpool/core/errors"
	"yieldpool/crypto"
)

const poolABIJSON = `[
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"minShares","type":"uint256"}],"outputs":[{"name":"shares","type":"uint256"}]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"shares","type":"uint256"},{"name":"minAssets","type":"uint256"}],"outputs":[{"name":"assets","type":"uint256"}]},
{"type":"function","name":"sharesOf","stateMutability":"view","inputs":[{"name":"investor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalShares","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalManagedAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"previewDeposit","stateMutability":"view","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"previewWithdraw","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ErrUnknownMethod is returned for payloads outside the ledger interface.
var ErrUnknownMethod = coreerrors.New(coreerrors.KindPrecondition, "pool: unknown method")

var poolABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic(fmt.Sprintf("pool: parse abi: %v", err))
	}
	return parsed
}()

// ABI returns the ledger call interface.
func ABI() abi.ABI { return poolABI }

// PackDeposit encodes deposit(amount, minShares).
func PackDeposit(amount, minShares *big.Int) ([]byte, error) {
	return poolABI.Pack("deposit", amount, orZero(minShares))
}

// PackWithdraw encodes withdraw(shares, minAssets).
func PackWithdraw(shares, minAssets *big.Int) ([]byte, error) {
	return poolABI.Pack("withdraw", shares, orZero(minAssets))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Invoke executes an ABI-encoded ledger call on behalf of caller.
func (e *Engine) Invoke(caller crypto.Address, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, ErrUnknownMethod
	}
	method, err := poolABI.MethodById(payload[:4])
	if err != nil {
		return nil, ErrUnknownMethod
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, fmt.Errorf("pool: decode %s: %w", method.Name, err)
	}
	var result *big.Int
	switch method.Name {
	case "deposit":
		result, err = e.Deposit(caller, args[0].(*big.Int), args[1].(*big.Int))
	case "withdraw":
		result, err = e.Withdraw(caller, args[0].(*big.Int), args[1].(*big.Int))
	case "sharesOf":
		result, err = e.SharesOf(crypto.FromCommon(args[0].(ethcommon.Address)))
	case "totalShares":
		result, err = e.TotalShares()
	case "totalManagedAssets":
		result, err = e.TotalManagedAssets()
	case "previewDeposit":
		result, err = e.PreviewDeposit(args[0].(*big.Int))
	case "previewWithdraw":
		result, err = e.PreviewWithdraw(args[0].(*big.Int))
	default:
		return nil, ErrUnknownMethod
	}
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(result)
}
