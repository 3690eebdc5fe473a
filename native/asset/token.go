package asset

import (
	"fmt"
	"math/big"
	"time"

	coreerrors "yieldpool/core/errors"
	"yieldpool/core/events"
	"yieldpool/crypto"
	"yieldpool/native/common"
)

var (
	ErrNotOwner                 = common.ErrNotOwner
	ErrZeroAddress              = common.ErrZeroAddress
	ErrInvalidAmount            = common.ErrInvalidAmount
	ErrInsufficientFunds        = common.ErrInsufficientFunds
	ErrInsufficientAllowance    = coreerrors.New(coreerrors.KindEconomic, "asset: insufficient allowance")
	ErrAuthorizationUsed        = coreerrors.New(coreerrors.KindPrecondition, "asset: authorization already used")
	ErrAuthorizationNotYetValid = coreerrors.New(coreerrors.KindPrecondition, "asset: authorization not yet valid")
	ErrAuthorizationExpired     = coreerrors.New(coreerrors.KindPrecondition, "asset: authorization expired")
	ErrInvalidSignature         = coreerrors.New(coreerrors.KindAuthorization, "asset: invalid signature")
)

// Metadata describes the token and the signing domain of its authorizations.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	Version  string
	ChainID  uint64
}

// Token is a state-backed fungible token. Every instance is namespaced by its
// address so several tokens can live in one state.
type Token struct {
	addr    crypto.Address
	meta    Metadata
	store   common.Store
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewToken constructs a token living at addr.
func NewToken(addr crypto.Address, meta Metadata) *Token {
	if meta.Version == "" {
		meta.Version = "1"
	}
	return &Token{
		addr:    addr,
		meta:    meta,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetState wires the persistence backend.
func (t *Token) SetState(store common.Store) { t.store = store }

// SetEmitter configures the event sink.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

// SetNowFunc overrides the clock used to check authorization windows.
func (t *Token) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	t.nowFn = now
}

// Address returns the token address.
func (t *Token) Address() crypto.Address { return t.addr }

// Metadata returns the token description.
func (t *Token) Metadata() Metadata { return t.meta }

func (t *Token) scope() string { return "asset/" + t.addr.Hex() }

func (t *Token) key(kind string, parts ...crypto.Address) []byte {
	key := []byte("asset/" + t.addr.Hex() + "/" + kind)
	for _, p := range parts {
		key = append(key, '/')
		key = append(key, p[:]...)
	}
	return key
}

func (t *Token) loadAmount(key []byte) (*big.Int, error) {
	if t.store == nil {
		return nil, fmt.Errorf("asset: state unavailable")
	}
	amount := new(big.Int)
	if _, err := t.store.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (t *Token) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return t.store.KVDelete(key)
	}
	return t.store.KVPut(key, amount)
}

// InitOwner records the mint authority. Genesis only.
func (t *Token) InitOwner(owner crypto.Address) error {
	return common.InitOwner(t.store, t.scope(), owner)
}

// Owner returns the mint authority.
func (t *Token) Owner() (crypto.Address, error) {
	rec, err := common.LoadOwnership(t.store, t.scope())
	return rec.Owner, err
}

// BalanceOf returns the balance held by owner.
func (t *Token) BalanceOf(owner crypto.Address) (*big.Int, error) {
	return t.loadAmount(t.key("balance", owner))
}

// TotalSupply returns the number of tokens in circulation.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.loadAmount(t.key("supply"))
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	return t.loadAmount(t.key("allowance", owner, spender))
}

// Mint creates amount new tokens for to. Owner only.
func (t *Token) Mint(caller, to crypto.Address, amount *big.Int) error {
	if err := common.RequireOwner(t.store, t.scope(), caller); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if err := t.storeAmount(t.key("supply"), supply.Add(supply, amount)); err != nil {
		return err
	}
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.storeAmount(t.key("balance", to), balance.Add(balance, amount)); err != nil {
		return err
	}
	t.emitter.Emit(events.AssetTransfer{Token: t.addr, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *Token) move(from, to crypto.Address, amount *big.Int) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if from != to {
		if err := t.storeAmount(t.key("balance", from), new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		toBalance, err := t.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := t.storeAmount(t.key("balance", to), toBalance.Add(toBalance, amount)); err != nil {
			return err
		}
	}
	t.emitter.Emit(events.AssetTransfer{Token: t.addr, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to crypto.Address, amount *big.Int) (bool, error) {
	if err := t.move(caller, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// TransferFrom moves amount from from to to, spending caller's allowance.
func (t *Token) TransferFrom(caller, from, to crypto.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() < 0 {
		return false, ErrInvalidAmount
	}
	allowance, err := t.Allowance(from, caller)
	if err != nil {
		return false, err
	}
	if allowance.Cmp(amount) < 0 {
		return false, ErrInsufficientAllowance
	}
	if err := t.storeAmount(t.key("allowance", from, caller), new(big.Int).Sub(allowance, amount)); err != nil {
		return false, err
	}
	if err := t.move(from, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// Approve sets the allowance of spender over caller's tokens.
func (t *Token) Approve(caller, spender crypto.Address, amount *big.Int) (bool, error) {
	if spender.IsZero() {
		return false, ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return false, ErrInvalidAmount
	}
	if err := t.storeAmount(t.key("allowance", caller, spender), amount); err != nil {
		return false, err
	}
	t.emitter.Emit(events.AssetApproval{Token: t.addr, Owner: caller, Spender: spender, Amount: new(big.Int).Set(amount)})
	return true, nil
}

// IncreaseAllowance raises the allowance of spender by amount.
func (t *Token) IncreaseAllowance(caller, spender crypto.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() < 0 {
		return false, ErrInvalidAmount
	}
	current, err := t.Allowance(caller, spender)
	if err != nil {
		return false, err
	}
	return t.Approve(caller, spender, current.Add(current, amount))
}
