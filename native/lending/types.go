package lending

import (
	"math/big"

	"yieldpool/crypto"
)

// Config groups the owner controlled parameters of a kernel instance.
type Config struct {
	// Treasury receives the protocol share of repayment fees.
	Treasury crypto.Address
	// PerformanceFeeBps is the protocol share of each fee, in basis points.
	PerformanceFeeBps uint64
}

// Loan is the outstanding principal of one borrower. A borrower has at most
// one loan at a time.
type Loan struct {
	Borrower  crypto.Address
	Principal *big.Int
	Memo      string
	IssuedAt  uint64
}

// FeeSplit is the division of a repayment fee.
type FeeSplit struct {
	Treasury *big.Int
	Investor *big.Int
}
