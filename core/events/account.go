package events

import (
	"math/big"
	"strconv"

	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	TypeAccountPaymentSent     = "account.payment_sent"
	TypeAccountDailyLimitSet   = "account.daily_limit_set"
	TypeAccountBatchExecuted   = "account.batch_executed"
	TypeAccountSavingsDeposit  = "account.savings_deposit"
	TypeAccountSavingsWithdraw = "account.savings_withdraw"
	TypeAccountFundsRecovered  = "account.funds_recovered"
	TypeAccountCreated         = "account.created"
)

// AccountCreated records the registration of a personal account.
type AccountCreated struct {
	Account crypto.Address
	Owner   crypto.Address
	Pool    crypto.Address
	Asset   crypto.Address
}

func (AccountCreated) EventType() string { return TypeAccountCreated }

func (e AccountCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountCreated,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"owner":   formatAddress(e.Owner),
			"pool":    formatAddress(e.Pool),
			"asset":   formatAddress(e.Asset),
		},
	}
}

// AccountPaymentSent records a direct payment out of a personal account.
type AccountPaymentSent struct {
	Account crypto.Address
	To      crypto.Address
	Amount  *big.Int
}

func (AccountPaymentSent) EventType() string { return TypeAccountPaymentSent }

func (e AccountPaymentSent) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountPaymentSent,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"to":      formatAddress(e.To),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// AccountDailyLimitSet records a change to the daily outflow cap.
type AccountDailyLimitSet struct {
	Account crypto.Address
	Limit   *big.Int
}

func (AccountDailyLimitSet) EventType() string { return TypeAccountDailyLimitSet }

func (e AccountDailyLimitSet) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountDailyLimitSet,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"limit":   formatAmount(e.Limit),
		},
	}
}

// AccountBatchExecuted records a completed batch and the outflow it counted
// against the daily limit.
type AccountBatchExecuted struct {
	Account crypto.Address
	Calls   int
	Metered *big.Int
}

func (AccountBatchExecuted) EventType() string { return TypeAccountBatchExecuted }

func (e AccountBatchExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountBatchExecuted,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"calls":   strconv.Itoa(e.Calls),
			"metered": formatAmount(e.Metered),
		},
	}
}

// AccountSavings records a move into or out of the pool.
type AccountSavings struct {
	Account  crypto.Address
	Withdraw bool
	Assets   *big.Int
	Shares   *big.Int
}

func (e AccountSavings) EventType() string {
	if e.Withdraw {
		return TypeAccountSavingsWithdraw
	}
	return TypeAccountSavingsDeposit
}

func (e AccountSavings) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"assets":  formatAmount(e.Assets),
			"shares":  formatAmount(e.Shares),
		},
	}
}

// AccountFundsRecovered records a sweep of tokens or native coin. Token is
// zero for native coin.
type AccountFundsRecovered struct {
	Account crypto.Address
	Token   crypto.Address
	To      crypto.Address
	Amount  *big.Int
}

func (AccountFundsRecovered) EventType() string { return TypeAccountFundsRecovered }

func (e AccountFundsRecovered) Event() *types.Event {
	attrs := map[string]string{
		"account": formatAddress(e.Account),
		"to":      formatAddress(e.To),
		"amount":  formatAmount(e.Amount),
	}
	if e.Token.IsZero() {
		attrs["asset"] = "native"
	} else {
		attrs["token"] = formatAddress(e.Token)
	}
	return &types.Event{Type: TypeAccountFundsRecovered, Attributes: attrs}
}
