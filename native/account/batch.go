package account

import (
	"errors"
	"fmt"
	"math/big"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/asset"
)

// outflow returns the amount a call to the primary asset moves out of
// account. Calls that only read state meter nothing.
func outflow(account crypto.Address, payload []byte) (*big.Int, error) {
	call, err := asset.DecodeCall(payload)
	if err != nil {
		if errors.Is(err, asset.ErrUnknownMethod) {
			return nil, ErrUnrecognizedAssetCall
		}
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedAssetCall, err)
	}
	if call.View() {
		return new(big.Int), nil
	}
	switch call.Method {
	case asset.MethodTransfer, asset.MethodApprove, asset.MethodIncreaseAllowance:
		return call.Amount, nil
	case asset.MethodTransferFrom, asset.MethodTransferWithAuthorization:
		if call.From == account {
			return call.Amount, nil
		}
		return new(big.Int), nil
	}
	return nil, ErrUnrecognizedAssetCall
}

// ExecuteBatch runs calls[i] = (targets[i], payloads[i], values[i]) in order
// as the account. Calls to the primary asset are decoded and metered against
// the daily limit before they run. The first failure aborts the batch and the
// caller's transaction discards the calls already made.
func (e *Engine) ExecuteBatch(caller, account crypto.Address, targets []crypto.Address, payloads [][]byte, values []*big.Int) ([][]byte, error) {
	rec, release, err := e.enter(caller, account)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(targets) != len(payloads) || (values != nil && len(values) != len(targets)) {
		return nil, ErrLengthMismatch
	}
	if e.dispatcher == nil {
		return nil, fmt.Errorf("account: dispatcher not configured")
	}
	metered := new(big.Int)
	results := make([][]byte, len(targets))
	for i, target := range targets {
		if target.IsZero() {
			return nil, fmt.Errorf("account: call %d: %w", i, ErrZeroAddress)
		}
		if target == rec.Asset {
			amount, err := outflow(account, payloads[i])
			if err != nil {
				return nil, fmt.Errorf("account: call %d: %w", i, err)
			}
			if err := e.meter(rec, amount); err != nil {
				return nil, fmt.Errorf("account: call %d: %w", i, err)
			}
			metered.Add(metered, amount)
		}
		var value *big.Int
		if values != nil {
			value = values[i]
		}
		out, err := e.dispatcher.Call(account, target, payloads[i], value)
		if err != nil {
			return nil, fmt.Errorf("account: call %d: %w", i, err)
		}
		results[i] = out
	}
	e.emitter.Emit(events.AccountBatchExecuted{Account: account, Calls: len(targets), Metered: metered})
	return results, nil
}
