package pool

import (
	"math/big"

	"github.com/holiman/uint256"
)

var one = uint256.NewInt(1)

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// mulDivOffset returns floor(x * (num + 1) / (den + 1)) in 256-bit arithmetic.
// The virtual offset keeps the ratio defined while the pool is empty.
func mulDivOffset(x, num, den *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	un, err := toU256(num)
	if err != nil {
		return nil, err
	}
	ud, err := toU256(den)
	if err != nil {
		return nil, err
	}
	un, carry := new(uint256.Int).AddOverflow(un, one)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	ud, carry = new(uint256.Int).AddOverflow(ud, one)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	result, overflow := new(uint256.Int).MulDivOverflow(ux, un, ud)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return result.ToBig(), nil
}

// sharesForAssets prices a deposit: floor(amount*(totalShares+1)/(tma+1)).
func sharesForAssets(amount, totalShares, managedAssets *big.Int) (*big.Int, error) {
	return mulDivOffset(amount, totalShares, managedAssets)
}

// assetsForShares prices a withdrawal: floor(shares*(tma+1)/(totalShares+1)).
func assetsForShares(shares, totalShares, managedAssets *big.Int) (*big.Int, error) {
	return mulDivOffset(shares, managedAssets, totalShares)
}
