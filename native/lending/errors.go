package lending

import (
	coreerrors "yieldpool/core/errors"
	"yieldpool/native/common"
)

var (
	ErrNotOwner       = common.ErrNotOwner
	ErrZeroAddress    = common.ErrZeroAddress
	ErrInvalidAmount  = common.ErrInvalidAmount
	ErrReentrantCall  = common.ErrReentrantCall
	ErrTransferFailed = common.ErrTransferFailed

	ErrNotWhitelisted     = coreerrors.New(coreerrors.KindAuthorization, "lending: borrower not whitelisted")
	ErrActiveLoanExists   = coreerrors.New(coreerrors.KindPrecondition, "lending: borrower has an active loan")
	ErrInvalidRepayment   = coreerrors.New(coreerrors.KindPrecondition, "lending: repayment principal does not match the active loan")
	ErrInvalidFee         = coreerrors.New(coreerrors.KindPrecondition, "lending: performance fee exceeds 10000 bps")
	ErrTreasuryUnset      = coreerrors.New(coreerrors.KindPrecondition, "lending: treasury not configured")
	ErrArithmeticOverflow = coreerrors.New(coreerrors.KindEconomic, "lending: arithmetic overflow")
	errNilState           = coreerrors.New(coreerrors.KindUnknown, "lending: state not configured")
)
