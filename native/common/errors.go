package common

import coreerrors "yieldpool/core/errors"

// Failures shared by every native module. Module packages re-export the ones
// they raise so callers can match against a single package.
var (
	ErrNotOwner           = coreerrors.New(coreerrors.KindAuthorization, "caller is not the owner")
	ErrNotPendingOwner    = coreerrors.New(coreerrors.KindAuthorization, "caller is not the pending owner")
	ErrZeroAddress        = coreerrors.New(coreerrors.KindPrecondition, "address must not be zero")
	ErrInvalidAmount      = coreerrors.New(coreerrors.KindPrecondition, "amount must be positive")
	ErrReentrantCall      = coreerrors.New(coreerrors.KindPrecondition, "reentrant call")
	ErrNoPendingUpgrade   = coreerrors.New(coreerrors.KindPrecondition, "no pending upgrade")
	ErrTimelockActive     = coreerrors.New(coreerrors.KindPrecondition, "timelock has not elapsed")
	ErrInsufficientFunds  = coreerrors.New(coreerrors.KindEconomic, "insufficient funds")
	ErrTransferFailed     = coreerrors.New(coreerrors.KindEconomic, "asset transfer failed")
	ErrDailyLimitExceeded = coreerrors.New(coreerrors.KindEconomic, "daily limit exceeded")
)
