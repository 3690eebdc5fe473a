package pool

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
	"yieldpool/observability"
)

const (
	// DefaultLockup is the wait after a deposit before the depositor may
	// withdraw.
	DefaultLockup = 24 * time.Hour
	// DefaultKernelTimelock is the delay between proposing and activating a
	// new kernel.
	DefaultKernelTimelock = 48 * time.Hour

	ownerScope = "pool"
)

// Asset is the token interface the ledger custodies.
type Asset interface {
	BalanceOf(owner crypto.Address) (*big.Int, error)
	Transfer(caller, to crypto.Address, amount *big.Int) (bool, error)
	TransferFrom(caller, from, to crypto.Address, amount *big.Int) (bool, error)
}

var (
	poolStateKey   = []byte("pool/state")
	positionPrefix = []byte("pool/position/")
	investorPrefix = []byte("pool/investor/")
)

func positionKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), positionPrefix...), addr[:]...)
}

func investorKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), investorPrefix...), addr[:]...)
}

// State is the persisted pool record. The on-hand balance is not stored; it
// is read from the asset.
type State struct {
	TotalShares     *big.Int
	CapitalDeployed *big.Int
	Kernel          crypto.Address
	Proposal        common.Timelock
}

// Position is an investor's claim on the pool.
type Position struct {
	Shares        *big.Int
	LastDepositAt uint64
}

// Engine is the capital ledger. It mints and burns shares against deposits
// and withdrawals and is the only custodian of idle capital.
type Engine struct {
	addr     crypto.Address
	asset    Asset
	store    common.Store
	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() time.Time
	guard    common.ReentrancyGuard
	lockup   time.Duration
	timelock time.Duration
}

// NewEngine constructs a ledger living at addr and custodying asset.
func NewEngine(addr crypto.Address, asset Asset) *Engine {
	return &Engine{
		addr:     addr,
		asset:    asset,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		nowFn:    time.Now,
		lockup:   DefaultLockup,
		timelock: DefaultKernelTimelock,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(store common.Store) { e.store = store }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetLogger overrides the logger used for consistency warnings.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the wall clock. Primarily leveraged in tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

// SetDurations overrides the lockup and kernel timelock. Zero keeps the
// current value.
func (e *Engine) SetDurations(lockup, timelock time.Duration) {
	if lockup > 0 {
		e.lockup = lockup
	}
	if timelock > 0 {
		e.timelock = timelock
	}
}

// Address returns the ledger address.
func (e *Engine) Address() crypto.Address { return e.addr }

// Init records the owner and the first kernel. Genesis only.
func (e *Engine) Init(owner, kernel crypto.Address) error {
	if e.store == nil {
		return errNilState
	}
	if err := common.InitOwner(e.store, ownerScope, owner); err != nil {
		return err
	}
	st, err := e.loadState()
	if err != nil {
		return err
	}
	st.Kernel = kernel
	return e.storeState(st)
}

func (e *Engine) loadState() (*State, error) {
	if e.store == nil {
		return nil, errNilState
	}
	st := &State{}
	if _, err := e.store.KVGet(poolStateKey, st); err != nil {
		return nil, fmt.Errorf("pool: load state: %w", err)
	}
	if st.TotalShares == nil {
		st.TotalShares = new(big.Int)
	}
	if st.CapitalDeployed == nil {
		st.CapitalDeployed = new(big.Int)
	}
	return st, nil
}

func (e *Engine) storeState(st *State) error {
	if err := e.store.KVPut(poolStateKey, st); err != nil {
		return fmt.Errorf("pool: store state: %w", err)
	}
	return nil
}

func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	pos := &Position{}
	if _, err := e.store.KVGet(positionKey(addr), pos); err != nil {
		return nil, fmt.Errorf("pool: load position: %w", err)
	}
	if pos.Shares == nil {
		pos.Shares = new(big.Int)
	}
	return pos, nil
}

func (e *Engine) storePosition(addr crypto.Address, pos *Position) error {
	if pos.Shares.Sign() == 0 && pos.LastDepositAt == 0 {
		return e.store.KVDelete(positionKey(addr))
	}
	return e.store.KVPut(positionKey(addr), pos)
}

func (e *Engine) onHand() (*big.Int, error) {
	if e.asset == nil {
		return nil, fmt.Errorf("pool: asset not configured")
	}
	balance, err := e.asset.BalanceOf(e.addr)
	if err != nil {
		return nil, fmt.Errorf("pool: read balance: %w", err)
	}
	return balance, nil
}

func (e *Engine) managedAssets(st *State) (*big.Int, error) {
	balance, err := e.onHand()
	if err != nil {
		return nil, err
	}
	return balance.Add(balance, st.CapitalDeployed), nil
}

func (e *Engine) publishGauges(st *State) {
	managed, err := e.managedAssets(st)
	if err != nil {
		return
	}
	observability.Pool().SetPoolState(st.TotalShares, managed, st.CapitalDeployed)
}

func transferred(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if !ok {
		return ErrTransferFailed
	}
	return nil
}

// Deposit pulls amount from caller and mints shares at the current price.
func (e *Engine) Deposit(caller crypto.Address, amount, minShares *big.Int) (*big.Int, error) {
	release, err := e.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	eligible, err := e.IsInvestor(caller)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrNotWhitelisted
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	managed, err := e.managedAssets(st)
	if err != nil {
		return nil, err
	}
	shares, err := sharesForAssets(amount, st.TotalShares, managed)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}
	if minShares != nil && shares.Cmp(minShares) < 0 {
		return nil, ErrSlippageExceeded
	}

	if err := transferred(e.asset.TransferFrom(e.addr, caller, e.addr, amount)); err != nil {
		return nil, err
	}

	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	pos.Shares.Add(pos.Shares, shares)
	pos.LastDepositAt = uint64(e.nowFn().Unix())
	if err := e.storePosition(caller, pos); err != nil {
		return nil, err
	}
	st.TotalShares.Add(st.TotalShares, shares)
	if err := e.storeState(st); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PoolDeposit{Investor: caller, Assets: new(big.Int).Set(amount), Shares: new(big.Int).Set(shares)})
	e.publishGauges(st)
	return shares, nil
}

// Withdraw burns shares and returns the assets they price to.
func (e *Engine) Withdraw(caller crypto.Address, shares, minAssets *big.Int) (*big.Int, error) {
	release, err := e.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	unlock := time.Unix(int64(pos.LastDepositAt), 0).Add(e.lockup)
	if e.nowFn().Before(unlock) {
		return nil, ErrLockedFunds
	}
	if pos.Shares.Cmp(shares) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	st, err := e.loadState()
	if err != nil {
		return nil, err
	}
	balance, err := e.onHand()
	if err != nil {
		return nil, err
	}
	managed := new(big.Int).Add(balance, st.CapitalDeployed)
	assets, err := assetsForShares(shares, st.TotalShares, managed)
	if err != nil {
		return nil, err
	}
	if minAssets != nil && assets.Cmp(minAssets) < 0 {
		return nil, ErrSlippageExceeded
	}
	if balance.Cmp(assets) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	pos.Shares.Sub(pos.Shares, shares)
	if err := e.storePosition(caller, pos); err != nil {
		return nil, err
	}
	st.TotalShares.Sub(st.TotalShares, shares)
	if err := e.storeState(st); err != nil {
		return nil, err
	}
	if err := transferred(e.asset.Transfer(e.addr, caller, assets)); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PoolWithdraw{Investor: caller, Assets: new(big.Int).Set(assets), Shares: new(big.Int).Set(shares)})
	e.publishGauges(st)
	return assets, nil
}

// PushCapitalToKernel moves idle capital to the active kernel. Only the
// active kernel may call it.
func (e *Engine) PushCapitalToKernel(caller crypto.Address, amount *big.Int) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	st, err := e.loadState()
	if err != nil {
		return err
	}
	if st.Kernel.IsZero() || caller != st.Kernel {
		return ErrNotKernel
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.onHand()
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	st.CapitalDeployed.Add(st.CapitalDeployed, amount)
	if err := e.storeState(st); err != nil {
		return err
	}
	if err := transferred(e.asset.Transfer(e.addr, st.Kernel, amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolCapitalPushed{
		Kernel:          st.Kernel,
		Amount:          new(big.Int).Set(amount),
		CapitalDeployed: new(big.Int).Set(st.CapitalDeployed),
	})
	e.publishGauges(st)
	return nil
}

// RegisterRepayment books principal returning from the kernel. The kernel
// transfers principal plus profit before calling. A principal larger than the
// tracked deployed capital is clamped to zero and reported, never rejected.
func (e *Engine) RegisterRepayment(caller crypto.Address, principal, profit *big.Int) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	st, err := e.loadState()
	if err != nil {
		return err
	}
	if st.Kernel.IsZero() || caller != st.Kernel {
		return ErrNotKernel
	}
	if principal == nil || principal.Sign() < 0 || (profit != nil && profit.Sign() < 0) {
		return ErrInvalidAmount
	}
	if profit == nil {
		profit = new(big.Int)
	}
	if st.CapitalDeployed.Cmp(principal) < 0 {
		tracked := new(big.Int).Set(st.CapitalDeployed)
		e.logger.Warn("repayment principal exceeds deployed capital",
			slog.String("component", "pool"),
			slog.String("kernel", caller.String()),
			slog.String("principal", principal.String()),
			slog.String("tracked", tracked.String()))
		e.emitter.Emit(events.PoolRepaymentDiscrepancy{
			Kernel:    caller,
			Principal: new(big.Int).Set(principal),
			Profit:    new(big.Int).Set(profit),
			Tracked:   tracked,
		})
		observability.Pool().RecordDiscrepancy()
		st.CapitalDeployed.SetInt64(0)
	} else {
		st.CapitalDeployed.Sub(st.CapitalDeployed, principal)
	}
	if err := e.storeState(st); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolRepaymentReceived{
		Kernel:          caller,
		Principal:       new(big.Int).Set(principal),
		Profit:          new(big.Int).Set(profit),
		CapitalDeployed: new(big.Int).Set(st.CapitalDeployed),
	})
	e.publishGauges(st)
	return nil
}

// SetInvestorStatus toggles whitelist membership. Owner only.
func (e *Engine) SetInvestorStatus(caller, investor crypto.Address, eligible bool) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := common.RequireOwner(e.store, ownerScope, caller); err != nil {
		return err
	}
	if investor.IsZero() {
		return ErrZeroAddress
	}
	if eligible {
		err = e.store.KVPut(investorKey(investor), true)
	} else {
		err = e.store.KVDelete(investorKey(investor))
	}
	if err != nil {
		return err
	}
	e.emitter.Emit(events.PoolInvestorStatus{Investor: investor, Eligible: eligible})
	return nil
}

// TransferOwnership nominates a successor owner.
func (e *Engine) TransferOwnership(caller, next crypto.Address) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.TransferOwnership(e.store, e.emitter, ownerScope, caller, next)
}

// AcceptOwnership completes an ownership handoff.
func (e *Engine) AcceptOwnership(caller crypto.Address) error {
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.AcceptOwnership(e.store, e.emitter, ownerScope, caller)
}
