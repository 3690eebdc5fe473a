package events

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"yieldpool/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "0"
	}
	return strconv.FormatInt(ts.Unix(), 10)
}

func formatBool(v bool) string { return strconv.FormatBool(v) }

func normalizeMemo(memo string) string {
	return strings.TrimSpace(memo)
}
