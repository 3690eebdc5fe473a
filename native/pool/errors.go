package pool

import (
	coreerrors "yieldpool/core/errors"
	"yieldpool/native/common"
)

var (
	ErrNotOwner         = common.ErrNotOwner
	ErrZeroAddress      = common.ErrZeroAddress
	ErrInvalidAmount    = common.ErrInvalidAmount
	ErrReentrantCall    = common.ErrReentrantCall
	ErrNoPendingUpgrade = common.ErrNoPendingUpgrade
	ErrTimelockActive   = common.ErrTimelockActive
	ErrTransferFailed   = common.ErrTransferFailed

	ErrNotWhitelisted        = coreerrors.New(coreerrors.KindAuthorization, "pool: investor not whitelisted")
	ErrNotKernel             = coreerrors.New(coreerrors.KindAuthorization, "pool: caller is not the active kernel")
	ErrZeroShares            = coreerrors.New(coreerrors.KindPrecondition, "pool: deposit would mint zero shares")
	ErrSlippageExceeded      = coreerrors.New(coreerrors.KindEconomic, "pool: slippage exceeded")
	ErrInsufficientLiquidity = coreerrors.New(coreerrors.KindEconomic, "pool: insufficient liquidity")
	ErrLockedFunds           = coreerrors.New(coreerrors.KindEconomic, "pool: funds locked")
	ErrArithmeticOverflow    = coreerrors.New(coreerrors.KindEconomic, "pool: arithmetic overflow")
	errNilState              = coreerrors.New(coreerrors.KindUnknown, "pool: state not configured")
)
