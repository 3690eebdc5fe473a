package lending

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
)

// Asset is the token the kernel moves between the ledger, borrowers and the
// treasury.
type Asset interface {
	Transfer(caller, to crypto.Address, amount *big.Int) (bool, error)
	TransferFrom(caller, from, to crypto.Address, amount *big.Int) (bool, error)
}

// Ledger is the narrow capital ledger interface a kernel is allowed to use.
type Ledger interface {
	Address() crypto.Address
	PushCapitalToKernel(caller crypto.Address, amount *big.Int) error
	RegisterRepayment(caller crypto.Address, principal, profit *big.Int) error
}

// Kernel is one lending kernel instance. It whitelists borrowers, disburses
// capital pulled from the ledger and splits repayment fees.
type Kernel struct {
	addr    crypto.Address
	ledger  Ledger
	asset   Asset
	store   common.Store
	emitter events.Emitter
	nowFn   func() time.Time
	guard   common.ReentrancyGuard
}

// NewKernel constructs the kernel living at addr.
func NewKernel(addr crypto.Address, ledger Ledger, asset Asset) *Kernel {
	return &Kernel{
		addr:    addr,
		ledger:  ledger,
		asset:   asset,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetState wires the kernel to the external persistence layer.
func (k *Kernel) SetState(store common.Store) { k.store = store }

// SetEmitter configures the event sink.
func (k *Kernel) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	k.emitter = emitter
}

// SetNowFunc overrides the wall clock used to stamp loans.
func (k *Kernel) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	k.nowFn = now
}

// Address returns the kernel address.
func (k *Kernel) Address() crypto.Address { return k.addr }

func (k *Kernel) prefix() string { return "lending/" + k.addr.Hex() + "/" }

func (k *Kernel) scope() string { return "kernel/" + k.addr.Hex() }

func (k *Kernel) configKey() []byte { return []byte(k.prefix() + "config") }

func (k *Kernel) solverKey(addr crypto.Address) []byte {
	return append([]byte(k.prefix()+"solver/"), addr[:]...)
}

func (k *Kernel) loanKey(addr crypto.Address) []byte {
	return append([]byte(k.prefix()+"loan/"), addr[:]...)
}

// Init records the owner and initial parameters of a new instance.
func (k *Kernel) Init(owner crypto.Address, cfg Config) error {
	if k.store == nil {
		return errNilState
	}
	if cfg.PerformanceFeeBps > MaxFeeBps {
		return ErrInvalidFee
	}
	if err := common.InitOwner(k.store, k.scope(), owner); err != nil {
		return err
	}
	return k.store.KVPut(k.configKey(), &cfg)
}

func (k *Kernel) loadConfig() (*Config, error) {
	if k.store == nil {
		return nil, errNilState
	}
	cfg := &Config{}
	if _, err := k.store.KVGet(k.configKey(), cfg); err != nil {
		return nil, fmt.Errorf("lending: load config: %w", err)
	}
	return cfg, nil
}

func (k *Kernel) loadLoan(borrower crypto.Address) (*Loan, error) {
	if k.store == nil {
		return nil, errNilState
	}
	loan := &Loan{}
	ok, err := k.store.KVGet(k.loanKey(borrower), loan)
	if err != nil {
		return nil, fmt.Errorf("lending: load loan: %w", err)
	}
	if !ok || loan.Principal == nil {
		return &Loan{Borrower: borrower, Principal: new(big.Int)}, nil
	}
	return loan, nil
}

func transferred(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	if !ok {
		return ErrTransferFailed
	}
	return nil
}

// SetSolver toggles borrower whitelist membership. Owner only.
func (k *Kernel) SetSolver(caller, solver crypto.Address, eligible bool) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(k.store, k.scope(), caller); err != nil {
		return err
	}
	if solver.IsZero() {
		return ErrZeroAddress
	}
	if eligible {
		err = k.store.KVPut(k.solverKey(solver), true)
	} else {
		err = k.store.KVDelete(k.solverKey(solver))
	}
	if err != nil {
		return err
	}
	k.emitter.Emit(events.KernelSolverStatus{Kernel: k.addr, Solver: solver, Eligible: eligible})
	return nil
}

// SetTreasury changes the fee recipient. Owner only.
func (k *Kernel) SetTreasury(caller, treasury crypto.Address) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(k.store, k.scope(), caller); err != nil {
		return err
	}
	if treasury.IsZero() {
		return ErrZeroAddress
	}
	cfg, err := k.loadConfig()
	if err != nil {
		return err
	}
	cfg.Treasury = treasury
	if err := k.store.KVPut(k.configKey(), cfg); err != nil {
		return err
	}
	k.emitter.Emit(events.KernelTreasurySet{Kernel: k.addr, Treasury: treasury})
	return nil
}

// SetPerformanceFee changes the protocol share of repayment fees. Owner only.
func (k *Kernel) SetPerformanceFee(caller crypto.Address, bps uint64) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(k.store, k.scope(), caller); err != nil {
		return err
	}
	if bps > MaxFeeBps {
		return ErrInvalidFee
	}
	cfg, err := k.loadConfig()
	if err != nil {
		return err
	}
	cfg.PerformanceFeeBps = bps
	if err := k.store.KVPut(k.configKey(), cfg); err != nil {
		return err
	}
	k.emitter.Emit(events.KernelFeeSet{Kernel: k.addr, FeeBps: bps})
	return nil
}

// DeployCapital lends amount to a whitelisted borrower. The loan is recorded
// before capital is pulled from the ledger and before the borrower is paid.
// Owner only.
func (k *Kernel) DeployCapital(caller, borrower crypto.Address, amount *big.Int, memo string) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(k.store, k.scope(), caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	eligible, err := k.IsSolver(borrower)
	if err != nil {
		return err
	}
	if !eligible {
		return ErrNotWhitelisted
	}
	loan, err := k.loadLoan(borrower)
	if err != nil {
		return err
	}
	if loan.Principal.Sign() != 0 {
		return ErrActiveLoanExists
	}

	memo = strings.TrimSpace(memo)
	record := &Loan{
		Borrower:  borrower,
		Principal: new(big.Int).Set(amount),
		Memo:      memo,
		IssuedAt:  uint64(k.nowFn().Unix()),
	}
	if err := k.store.KVPut(k.loanKey(borrower), record); err != nil {
		return err
	}
	if k.ledger == nil {
		return fmt.Errorf("lending: ledger not configured")
	}
	if err := k.ledger.PushCapitalToKernel(k.addr, amount); err != nil {
		return err
	}
	if err := transferred(k.asset.Transfer(k.addr, borrower, amount)); err != nil {
		return err
	}
	k.emitter.Emit(events.KernelLoanDisbursed{Kernel: k.addr, Borrower: borrower, Amount: new(big.Int).Set(amount), Memo: memo})
	return nil
}

// RepayLoan settles the caller's loan in full. principal must equal the
// outstanding principal; fee is split between the treasury and the ledger.
func (k *Kernel) RepayLoan(caller crypto.Address, principal, fee *big.Int) (FeeSplit, error) {
	release, err := k.guard.Enter()
	if err != nil {
		return FeeSplit{}, err
	}
	defer release()

	if fee == nil {
		fee = new(big.Int)
	}
	if fee.Sign() < 0 {
		return FeeSplit{}, ErrInvalidAmount
	}
	loan, err := k.loadLoan(caller)
	if err != nil {
		return FeeSplit{}, err
	}
	if principal == nil || loan.Principal.Sign() == 0 || loan.Principal.Cmp(principal) != 0 {
		return FeeSplit{}, ErrInvalidRepayment
	}
	cfg, err := k.loadConfig()
	if err != nil {
		return FeeSplit{}, err
	}
	split, err := splitFee(fee, cfg.PerformanceFeeBps)
	if err != nil {
		return FeeSplit{}, err
	}
	if split.Treasury.Sign() > 0 && cfg.Treasury.IsZero() {
		return FeeSplit{}, ErrTreasuryUnset
	}

	total := new(big.Int).Add(principal, fee)
	if err := transferred(k.asset.TransferFrom(k.addr, caller, k.addr, total)); err != nil {
		return FeeSplit{}, err
	}
	if err := k.store.KVDelete(k.loanKey(caller)); err != nil {
		return FeeSplit{}, err
	}
	if split.Treasury.Sign() > 0 {
		if err := transferred(k.asset.Transfer(k.addr, cfg.Treasury, split.Treasury)); err != nil {
			return FeeSplit{}, err
		}
	}
	toLedger := new(big.Int).Add(principal, split.Investor)
	if err := transferred(k.asset.Transfer(k.addr, k.ledger.Address(), toLedger)); err != nil {
		return FeeSplit{}, err
	}
	if err := k.ledger.RegisterRepayment(k.addr, principal, split.Investor); err != nil {
		return FeeSplit{}, err
	}
	k.emitter.Emit(events.KernelLoanRepaid{Kernel: k.addr, Borrower: caller, Principal: new(big.Int).Set(principal), Fee: new(big.Int).Set(fee)})
	k.emitter.Emit(events.KernelFeeSplit{Kernel: k.addr, Treasury: cfg.Treasury, TreasuryShare: split.Treasury, InvestorShare: split.Investor})
	return split, nil
}

// TransferOwnership nominates a successor owner.
func (k *Kernel) TransferOwnership(caller, next crypto.Address) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.TransferOwnership(k.store, k.emitter, k.scope(), caller, next)
}

// AcceptOwnership completes an ownership handoff.
func (k *Kernel) AcceptOwnership(caller crypto.Address) error {
	release, err := k.guard.Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.AcceptOwnership(k.store, k.emitter, k.scope(), caller)
}

// ActivePrincipal returns the outstanding principal of borrower.
func (k *Kernel) ActivePrincipal(borrower crypto.Address) (*big.Int, error) {
	loan, err := k.loadLoan(borrower)
	if err != nil {
		return nil, err
	}
	return loan.Principal, nil
}

// Loan returns the full loan record of borrower.
func (k *Kernel) Loan(borrower crypto.Address) (*Loan, error) { return k.loadLoan(borrower) }

// IsSolver reports whether borrower may receive capital.
func (k *Kernel) IsSolver(borrower crypto.Address) (bool, error) {
	if k.store == nil {
		return false, errNilState
	}
	return k.store.KVGet(k.solverKey(borrower), nil)
}

// Treasury returns the fee recipient.
func (k *Kernel) Treasury() (crypto.Address, error) {
	cfg, err := k.loadConfig()
	if err != nil {
		return crypto.ZeroAddress, err
	}
	return cfg.Treasury, nil
}

// PerformanceFeeBps returns the protocol share of repayment fees.
func (k *Kernel) PerformanceFeeBps() (uint64, error) {
	cfg, err := k.loadConfig()
	if err != nil {
		return 0, err
	}
	return cfg.PerformanceFeeBps, nil
}

// Owner returns the kernel owner.
func (k *Kernel) Owner() (crypto.Address, error) {
	rec, err := common.LoadOwnership(k.store, k.scope())
	return rec.Owner, err
}
