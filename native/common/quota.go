package common

import (
	"math/big"
	"time"
)

// SecondsPerDay is the width of a spend window.
const SecondsPerDay = 86400

// SpendWindow captures the outflow counted in the current day bucket.
type SpendWindow struct {
	Day   uint64
	Spent *big.Int
}

// DayIndex returns the day bucket containing now.
func DayIndex(now time.Time) uint64 {
	ts := now.Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts) / SecondsPerDay
}

// CheckSpend verifies whether amount fits within limit for the day bucket
// today. A zero or nil limit disables enforcement but the outflow is still
// counted. The returned window reflects the updated counters when the limit is
// not exceeded; on denial prev is returned unchanged.
func CheckSpend(limit *big.Int, today uint64, prev SpendWindow, amount *big.Int) (SpendWindow, error) {
	next := SpendWindow{Day: prev.Day, Spent: new(big.Int)}
	if prev.Spent != nil {
		next.Spent.Set(prev.Spent)
	}
	if today > next.Day {
		next = SpendWindow{Day: today, Spent: new(big.Int)}
	}
	if amount == nil || amount.Sign() <= 0 {
		return next, nil
	}
	next.Spent.Add(next.Spent, amount)
	if limit != nil && limit.Sign() > 0 && next.Spent.Cmp(limit) > 0 {
		return prev, ErrDailyLimitExceeded
	}
	return next, nil
}
