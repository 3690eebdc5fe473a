package lending

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxFeeBps is the upper bound of the performance fee (100%).
const MaxFeeBps = 10_000

var basisPoints = uint256.NewInt(MaxFeeBps)

// splitFee returns floor(fee*bps/10000) for the treasury and the remainder for
// investors.
func splitFee(fee *big.Int, bps uint64) (FeeSplit, error) {
	if fee == nil || fee.Sign() == 0 {
		return FeeSplit{Treasury: new(big.Int), Investor: new(big.Int)}, nil
	}
	if fee.Sign() < 0 {
		return FeeSplit{}, ErrInvalidAmount
	}
	ufee, overflow := uint256.FromBig(fee)
	if overflow {
		return FeeSplit{}, ErrArithmeticOverflow
	}
	dao, overflow := new(uint256.Int).MulDivOverflow(ufee, uint256.NewInt(bps), basisPoints)
	if overflow {
		return FeeSplit{}, ErrArithmeticOverflow
	}
	treasury := dao.ToBig()
	return FeeSplit{
		Treasury: treasury,
		Investor: new(big.Int).Sub(fee, treasury),
	}, nil
}
