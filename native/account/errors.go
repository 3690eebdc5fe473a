package account

import (
	coreerrors "yieldpool/core/errors"
	"yieldpool/native/common"
)

var (
	ErrNotOwner           = common.ErrNotOwner
	ErrZeroAddress        = common.ErrZeroAddress
	ErrInvalidAmount      = common.ErrInvalidAmount
	ErrReentrantCall      = common.ErrReentrantCall
	ErrInsufficientFunds  = common.ErrInsufficientFunds
	ErrTransferFailed     = common.ErrTransferFailed
	ErrDailyLimitExceeded = common.ErrDailyLimitExceeded

	ErrAccountExists         = coreerrors.New(coreerrors.KindPrecondition, "account: already exists")
	ErrAccountNotFound       = coreerrors.New(coreerrors.KindPrecondition, "account: not found")
	ErrLengthMismatch        = coreerrors.New(coreerrors.KindPrecondition, "account: batch length mismatch")
	ErrUnrecognizedAssetCall = coreerrors.New(coreerrors.KindPrecondition, "account: unrecognized asset call")
	errNilState              = coreerrors.New(coreerrors.KindUnknown, "account: state not configured")
)
