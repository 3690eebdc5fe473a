package lending

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	coreerrors "yieldpool/core/errors"
	"yieldpool/crypto"
)

const kernelABIJSON = `[
{"type":"function","name":"repayLoan","stateMutability":"nonpayable","inputs":[{"name":"principal","type":"uint256"},{"name":"fee","type":"uint256"}],"outputs":[]},
{"type":"function","name":"activePrincipal","stateMutability":"view","inputs":[{"name":"borrower","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ErrUnknownMethod is returned for payloads outside the kernel interface.
var ErrUnknownMethod = coreerrors.New(coreerrors.KindPrecondition, "lending: unknown method")

var kernelABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(kernelABIJSON))
	if err != nil {
		panic(fmt.Sprintf("lending: parse abi: %v", err))
	}
	return parsed
}()

// PackRepayLoan encodes repayLoan(principal, fee).
func PackRepayLoan(principal, fee *big.Int) ([]byte, error) {
	if fee == nil {
		fee = new(big.Int)
	}
	return kernelABI.Pack("repayLoan", principal, fee)
}

// Invoke executes an ABI-encoded kernel call on behalf of caller.
func (k *Kernel) Invoke(caller crypto.Address, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, ErrUnknownMethod
	}
	method, err := kernelABI.MethodById(payload[:4])
	if err != nil {
		return nil, ErrUnknownMethod
	}
	args, err := method.Inputs.Unpack(payload[4:])
	if err != nil {
		return nil, fmt.Errorf("lending: decode %s: %w", method.Name, err)
	}
	switch method.Name {
	case "repayLoan":
		_, err := k.RepayLoan(caller, args[0].(*big.Int), args[1].(*big.Int))
		return nil, err
	case "activePrincipal":
		principal, err := k.ActivePrincipal(crypto.FromCommon(args[0].(ethcommon.Address)))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(principal)
	}
	return nil, ErrUnknownMethod
}
