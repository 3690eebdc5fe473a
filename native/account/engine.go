package account

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
)

// Asset is the primary token held by personal accounts.
type Asset interface {
	Address() crypto.Address
	BalanceOf(owner crypto.Address) (*big.Int, error)
	Transfer(caller, to crypto.Address, amount *big.Int) (bool, error)
	Approve(caller, spender crypto.Address, amount *big.Int) (bool, error)
}

// Savings is the capital ledger accounts deposit into.
type Savings interface {
	Address() crypto.Address
	Deposit(caller crypto.Address, amount, minShares *big.Int) (*big.Int, error)
	Withdraw(caller crypto.Address, shares, minAssets *big.Int) (*big.Int, error)
	SharesOf(investor crypto.Address) (*big.Int, error)
}

// Native moves the environment's native coin.
type Native interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
}

// Dispatcher executes an ABI-encoded call against a contract address,
// attaching value in native coin.
type Dispatcher interface {
	Call(caller, target crypto.Address, payload []byte, value *big.Int) ([]byte, error)
}

// Record is the persisted state of one personal account.
type Record struct {
	Address    crypto.Address
	Pool       crypto.Address
	Asset      crypto.Address
	DailyLimit *big.Int
	Window     common.SpendWindow
	CreatedAt  uint64
}

// Engine operates every personal account in the state. Each account is
// addressed explicitly and carries its own owner and reentrancy guard.
type Engine struct {
	store      common.Store
	emitter    events.Emitter
	logger     *slog.Logger
	nowFn      func() time.Time
	asset      Asset
	savings    Savings
	native     Native
	dispatcher Dispatcher
	guards     common.GuardSet
}

// NewEngine constructs an account engine bound to the primary asset and the
// savings ledger.
func NewEngine(asset Asset, savings Savings, native Native, dispatcher Dispatcher) *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		logger:     slog.Default(),
		nowFn:      time.Now,
		asset:      asset,
		savings:    savings,
		native:     native,
		dispatcher: dispatcher,
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(store common.Store) { e.store = store }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the clock that drives day buckets.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

// AddressFor derives the account address owned by owner.
func AddressFor(owner crypto.Address) crypto.Address {
	return crypto.ContractAddress("account/" + owner.Hex())
}

func scope(account crypto.Address) string { return "account/" + account.Hex() }

func recordKey(account crypto.Address) []byte {
	return append([]byte("account/record/"), account[:]...)
}

func (e *Engine) load(account crypto.Address) (*Record, error) {
	if e.store == nil {
		return nil, errNilState
	}
	rec := &Record{}
	ok, err := e.store.KVGet(recordKey(account), rec)
	if err != nil {
		return nil, fmt.Errorf("account: load: %w", err)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	if rec.DailyLimit == nil {
		rec.DailyLimit = new(big.Int)
	}
	if rec.Window.Spent == nil {
		rec.Window.Spent = new(big.Int)
	}
	return rec, nil
}

func (e *Engine) save(rec *Record) error {
	return e.store.KVPut(recordKey(rec.Address), rec)
}

// enter loads the account, checks the caller owns it and takes its guard.
func (e *Engine) enter(caller, account crypto.Address) (*Record, func(), error) {
	release, err := e.guards.For(account).Enter()
	if err != nil {
		return nil, nil, err
	}
	rec, err := e.load(account)
	if err != nil {
		release()
		return nil, nil, err
	}
	if err := common.RequireOwner(e.store, scope(account), caller); err != nil {
		release()
		return nil, nil, err
	}
	return rec, release, nil
}

func (e *Engine) checkSpend(rec *Record, amount *big.Int) (common.SpendWindow, error) {
	return common.CheckSpend(rec.DailyLimit, common.DayIndex(e.nowFn()), rec.Window, amount)
}

// meter applies the daily limit to an outflow of amount and persists the
// updated window.
func (e *Engine) meter(rec *Record, amount *big.Int) error {
	window, err := e.checkSpend(rec, amount)
	if err != nil {
		return err
	}
	rec.Window = window
	return e.save(rec)
}

func transferred(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	if !ok {
		return ErrTransferFailed
	}
	return nil
}

// Create registers the account of owner. The pool and asset bindings are
// fixed for the lifetime of the account.
func (e *Engine) Create(owner crypto.Address) (crypto.Address, error) {
	if e.store == nil {
		return crypto.ZeroAddress, errNilState
	}
	if owner.IsZero() {
		return crypto.ZeroAddress, ErrZeroAddress
	}
	addr := AddressFor(owner)
	exists, err := e.store.KVGet(recordKey(addr), nil)
	if err != nil {
		return crypto.ZeroAddress, err
	}
	if exists {
		return crypto.ZeroAddress, ErrAccountExists
	}
	rec := &Record{
		Address:    addr,
		Pool:       e.savings.Address(),
		Asset:      e.asset.Address(),
		DailyLimit: new(big.Int),
		Window:     common.SpendWindow{Spent: new(big.Int)},
		CreatedAt:  uint64(e.nowFn().Unix()),
	}
	if err := e.save(rec); err != nil {
		return crypto.ZeroAddress, err
	}
	if err := common.InitOwner(e.store, scope(addr), owner); err != nil {
		return crypto.ZeroAddress, err
	}
	e.emitter.Emit(events.AccountCreated{Account: addr, Owner: owner, Pool: rec.Pool, Asset: rec.Asset})
	return addr, nil
}

// Pay sends amount of the primary asset to to, subject to the daily limit.
func (e *Engine) Pay(caller, account, to crypto.Address, amount *big.Int) error {
	rec, release, err := e.enter(caller, account)
	if err != nil {
		return err
	}
	defer release()

	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	window, err := e.checkSpend(rec, amount)
	if err != nil {
		return err
	}
	balance, err := e.asset.BalanceOf(account)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	rec.Window = window
	if err := e.save(rec); err != nil {
		return err
	}
	if err := transferred(e.asset.Transfer(account, to, amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.AccountPaymentSent{Account: account, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// SetDailyLimit changes the daily outflow cap. Zero disables enforcement.
func (e *Engine) SetDailyLimit(caller, account crypto.Address, limit *big.Int) error {
	rec, release, err := e.enter(caller, account)
	if err != nil {
		return err
	}
	defer release()

	if limit == nil || limit.Sign() < 0 {
		return ErrInvalidAmount
	}
	rec.DailyLimit = new(big.Int).Set(limit)
	if err := e.save(rec); err != nil {
		return err
	}
	e.emitter.Emit(events.AccountDailyLimitSet{Account: account, Limit: new(big.Int).Set(limit)})
	return nil
}

// TransferOwnership nominates a successor owner of account.
func (e *Engine) TransferOwnership(caller, account, next crypto.Address) error {
	release, err := e.guards.For(account).Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.TransferOwnership(e.store, e.emitter, scope(account), caller, next)
}

// AcceptOwnership completes an ownership handoff of account.
func (e *Engine) AcceptOwnership(caller, account crypto.Address) error {
	release, err := e.guards.For(account).Enter()
	if err != nil {
		return err
	}
	defer release()
	return common.AcceptOwnership(e.store, e.emitter, scope(account), caller)
}

// Account returns the persisted record of account.
func (e *Engine) Account(account crypto.Address) (*Record, error) { return e.load(account) }

// Owner returns the owner of account.
func (e *Engine) Owner(account crypto.Address) (crypto.Address, error) {
	if _, err := e.load(account); err != nil {
		return crypto.ZeroAddress, err
	}
	rec, err := common.LoadOwnership(e.store, scope(account))
	return rec.Owner, err
}

// SpentToday returns the outflow counted in the current day bucket.
func (e *Engine) SpentToday(account crypto.Address) (*big.Int, error) {
	rec, err := e.load(account)
	if err != nil {
		return nil, err
	}
	if common.DayIndex(e.nowFn()) > rec.Window.Day {
		return new(big.Int), nil
	}
	return rec.Window.Spent, nil
}
