package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"yieldpool/crypto"
)

// MaxPerformanceFeeBps mirrors the kernel bound so invalid files fail before
// any state is written.
const MaxPerformanceFeeBps = 10_000

// Spec describes the initial state of a yieldpool deployment.
type Spec struct {
	GenesisTime string               `json:"genesisTime"`
	ChainID     *uint64              `json:"chainId,omitempty"`
	Asset       AssetSpec            `json:"asset"`
	Pool        PoolSpec             `json:"pool"`
	Kernel      KernelSpec           `json:"kernel"`
	Investors   []string             `json:"investors,omitempty"`
	Solvers     []string             `json:"solvers,omitempty"`
	Accounts    []string             `json:"accounts,omitempty"`
	Alloc       map[string]AllocSpec `json:"alloc,omitempty"`

	genesisTimestamp time.Time
	chainIDValue     uint64
	investors        []crypto.Address
	solvers          []crypto.Address
	accounts         []crypto.Address
	alloc            []Allocation
}

type AssetSpec struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Issuer   string `json:"issuer"`

	issuer crypto.Address
}

type PoolSpec struct {
	Owner string `json:"owner"`

	owner crypto.Address
}

type KernelSpec struct {
	Owner             string `json:"owner"`
	Treasury          string `json:"treasury,omitempty"`
	PerformanceFeeBps uint64 `json:"performanceFeeBps"`

	owner    crypto.Address
	treasury crypto.Address
}

// AllocSpec seeds balances of one address. Amounts are base-10 strings.
type AllocSpec struct {
	Asset  string `json:"asset,omitempty"`
	Native string `json:"native,omitempty"`
}

// Allocation is a validated AllocSpec entry.
type Allocation struct {
	Address crypto.Address
	Asset   *big.Int
	Native  *big.Int
}

func (a *AssetSpec) validate() error {
	// Name and symbol feed the authorization domain hash, so equivalent
	// Unicode spellings must collapse to one byte sequence.
	a.Symbol = norm.NFKC.String(strings.TrimSpace(a.Symbol))
	a.Name = norm.NFKC.String(strings.TrimSpace(a.Name))
	if a.Symbol == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if a.Name == "" {
		a.Name = a.Symbol
	}
	issuer, err := parseAddress(a.Issuer)
	if err != nil {
		return fmt.Errorf("issuer: %w", err)
	}
	a.issuer = issuer
	return nil
}

func (p *PoolSpec) validate() error {
	owner, err := parseAddress(p.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	p.owner = owner
	return nil
}

func (k *KernelSpec) validate() error {
	owner, err := parseAddress(k.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	k.owner = owner
	if k.PerformanceFeeBps > MaxPerformanceFeeBps {
		return fmt.Errorf("performanceFeeBps must be <= %d", MaxPerformanceFeeBps)
	}
	if strings.TrimSpace(k.Treasury) != "" {
		treasury, err := parseAddress(k.Treasury)
		if err != nil {
			return fmt.Errorf("treasury: %w", err)
		}
		k.treasury = treasury
	} else if k.PerformanceFeeBps > 0 {
		return fmt.Errorf("treasury must be provided when performanceFeeBps is set")
	}
	return nil
}

func (s *Spec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime
	if s.ChainID != nil {
		s.chainIDValue = *s.ChainID
	}
	if err := s.Asset.validate(); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	if err := s.Pool.validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := s.Kernel.validate(); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if s.investors, err = parseAddressList("investors", s.Investors); err != nil {
		return err
	}
	if s.solvers, err = parseAddressList("solvers", s.Solvers); err != nil {
		return err
	}
	if s.accounts, err = parseAddressList("accounts", s.Accounts); err != nil {
		return err
	}

	// Allocations are applied in address order so the same file always
	// yields the same receipt digest.
	keys := make([]string, 0, len(s.Alloc))
	for key := range s.Alloc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	s.alloc = make([]Allocation, 0, len(keys))
	seen := make(map[crypto.Address]struct{}, len(keys))
	for _, key := range keys {
		addr, err := parseAddress(key)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", key, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("alloc[%q]: duplicate address", key)
		}
		seen[addr] = struct{}{}
		entry := s.Alloc[key]
		assetAmt, err := parseAmountString(entry.Asset)
		if err != nil {
			return fmt.Errorf("alloc[%q].asset: %w", key, err)
		}
		nativeAmt, err := parseAmountString(entry.Native)
		if err != nil {
			return fmt.Errorf("alloc[%q].native: %w", key, err)
		}
		s.alloc = append(s.alloc, Allocation{Address: addr, Asset: assetAmt, Native: nativeAmt})
	}
	sort.Slice(s.alloc, func(i, j int) bool {
		return strings.Compare(s.alloc[i].Address.Hex(), s.alloc[j].Address.Hex()) < 0
	})
	return nil
}

func (s *Spec) GenesisTimestamp() time.Time         { return s.genesisTimestamp }
func (s *Spec) ChainIDValue() uint64                { return s.chainIDValue }
func (s *Spec) Issuer() crypto.Address              { return s.Asset.issuer }
func (s *Spec) PoolOwner() crypto.Address           { return s.Pool.owner }
func (s *Spec) KernelOwner() crypto.Address         { return s.Kernel.owner }
func (s *Spec) Treasury() crypto.Address            { return s.Kernel.treasury }
func (s *Spec) InvestorAddresses() []crypto.Address { return s.investors }
func (s *Spec) SolverAddresses() []crypto.Address   { return s.solvers }
func (s *Spec) AccountOwners() []crypto.Address     { return s.accounts }
func (s *Spec) Allocations() []Allocation           { return s.alloc }

func parseGenesisTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesisTime %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func parseAmountString(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.ZeroAddress, err
	}
	if addr.IsZero() {
		return crypto.ZeroAddress, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}

func parseAddressList(field string, raw []string) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(raw))
	seen := make(map[crypto.Address]struct{}, len(raw))
	for i, entry := range raw {
		addr, err := parseAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%s[%d]: duplicate address %s", field, i, addr)
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
