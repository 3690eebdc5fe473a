package core

import (
	"context"
	"fmt"
	"math/big"

	"yieldpool/crypto"
)

// call moves value from caller to target and, when a contract lives at
// target, runs payload against it. Must run inside execute.
func (n *Node) call(caller, target crypto.Address, payload []byte, value *big.Int) ([]byte, error) {
	if err := n.bank.Transfer(caller, target, value); err != nil {
		return nil, err
	}
	contract, ok := n.contracts[target]
	if !ok {
		if len(payload) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoContract, target)
		}
		return nil, nil
	}
	return contract.Invoke(caller, payload)
}

// dispatcher lets accounts issue calls from inside a running operation.
type dispatcher struct {
	node *Node
}

func (d dispatcher) Call(caller, target crypto.Address, payload []byte, value *big.Int) ([]byte, error) {
	return d.node.call(caller, target, payload, value)
}

// Invoke runs an ABI-encoded call from caller against target, attaching value
// in native coin. An empty payload to an address without a contract is a
// plain native transfer.
func (n *Node) Invoke(ctx context.Context, caller, target crypto.Address, payload []byte, value *big.Int) ([]byte, *Receipt, error) {
	var out []byte
	receipt, err := n.execute(ctx, "invoke", caller, func() error {
		var err error
		out, err = n.call(caller, target, payload, value)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, receipt, nil
}
