package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	coreerrors "yieldpool/core/errors"
	"yieldpool/core/events"
	"yieldpool/core/state"
	"yieldpool/crypto"
	"yieldpool/native/account"
	"yieldpool/native/asset"
	"yieldpool/native/bank"
	"yieldpool/native/lending"
	"yieldpool/native/pool"
	"yieldpool/observability"
	"yieldpool/storage"
)

var (
	// AssetAddress is where the primary token lives.
	AssetAddress = crypto.ContractAddress("asset")
	// PoolAddress is where the capital ledger lives.
	PoolAddress = crypto.ContractAddress("pool")

	ErrUnknownKernel  = coreerrors.New(coreerrors.KindPrecondition, "core: unknown kernel")
	ErrNoContract     = coreerrors.New(coreerrors.KindPrecondition, "core: no contract at target")
	ErrGenesisApplied = coreerrors.New(coreerrors.KindPrecondition, "core: genesis already applied")
)

var tracer = otel.Tracer("yieldpool/core")

var (
	keyAssetMeta = []byte("core/asset/metadata")
	keyKernels   = []byte("core/kernels")
	keyGenesis   = []byte("core/genesis")
)

// KernelAddress returns the address of the index-th deployed kernel. Indices
// start at 1.
func KernelAddress(index int) crypto.Address {
	return crypto.ContractAddress(fmt.Sprintf("kernel/%d", index))
}

// Contract is a component reachable through ABI-encoded calls.
type Contract interface {
	Invoke(caller crypto.Address, payload []byte) ([]byte, error)
}

// Subscriber receives every committed receipt in commit order.
type Subscriber interface {
	Publish(ctx context.Context, receipt *Receipt) error
}

// Option customises the node instance.
type Option func(*Node)

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) { n.now = clock }
}

// WithLogger overrides the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

// WithDurations overrides the pool lockup and kernel timelock.
func WithDurations(lockup, timelock time.Duration) Option {
	return func(n *Node) {
		n.lockup = lockup
		n.timelock = timelock
	}
}

// WithAssetMetadata sets the token metadata used before genesis persists its
// own.
func WithAssetMetadata(meta asset.Metadata) Option {
	return func(n *Node) { n.meta = meta }
}

// WithMeterProvider sets the OTel meter provider for the node's instruments.
// The global provider is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(n *Node) { n.meterProvider = provider }
}

// WithSubscriber registers a receipt subscriber.
func WithSubscriber(sub Subscriber) Option {
	return func(n *Node) { n.subscribers = append(n.subscribers, sub) }
}

// Node executes operations against the pool, kernels, accounts and the asset.
// Operations are serialised; each runs in its own state transaction and its
// events are published only once the transaction commits.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	state    *state.Manager
	buffer   *events.Buffer
	logger   *slog.Logger
	now      func() time.Time
	lockup   time.Duration
	timelock time.Duration
	meta     asset.Metadata

	meterProvider metric.MeterProvider
	instruments   *instruments

	bank      *bank.Ledger
	token     *asset.Token
	pool      *pool.Engine
	accounts  *account.Engine
	kernels   map[crypto.Address]*lending.Kernel
	contracts map[crypto.Address]Contract

	subsMu      sync.RWMutex
	subscribers []Subscriber
}

// NewNode opens the node over db. State written by an earlier run, including
// deployed kernels and asset metadata, is picked up again.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	n := &Node{
		db:       db,
		state:    state.NewManager(db),
		buffer:   events.NewBuffer(),
		logger:   slog.Default(),
		now:      time.Now,
		lockup:   pool.DefaultLockup,
		timelock: pool.DefaultKernelTimelock,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.meterProvider == nil {
		n.meterProvider = otel.GetMeterProvider()
	}
	inst, err := newInstruments(n.meterProvider)
	if err != nil {
		return nil, err
	}
	n.instruments = inst
	var stored asset.Metadata
	ok, err := n.state.KVGet(keyAssetMeta, &stored)
	if err != nil {
		return nil, fmt.Errorf("core: load asset metadata: %w", err)
	}
	if ok {
		n.meta = stored
	}
	if err := n.wire(n.meta); err != nil {
		return nil, err
	}
	return n, nil
}

// wire builds the components over the shared state and restores the kernel
// registry.
func (n *Node) wire(meta asset.Metadata) error {
	n.bank = bank.NewLedger(n.state)
	n.bank.SetEmitter(n.buffer)

	n.token = asset.NewToken(AssetAddress, meta)
	n.token.SetState(n.state)
	n.token.SetEmitter(n.buffer)
	n.token.SetNowFunc(n.now)

	n.pool = pool.NewEngine(PoolAddress, n.token)
	n.pool.SetState(n.state)
	n.pool.SetEmitter(n.buffer)
	n.pool.SetLogger(n.logger)
	n.pool.SetNowFunc(n.now)
	n.pool.SetDurations(n.lockup, n.timelock)

	n.accounts = account.NewEngine(n.token, n.pool, n.bank, dispatcher{node: n})
	n.accounts.SetState(n.state)
	n.accounts.SetEmitter(n.buffer)
	n.accounts.SetLogger(n.logger)
	n.accounts.SetNowFunc(n.now)

	return n.syncKernels()
}

// syncKernels rebuilds the kernel and contract maps from committed state.
func (n *Node) syncKernels() error {
	var registered [][]byte
	if err := n.state.KVGetList(keyKernels, &registered); err != nil {
		return fmt.Errorf("core: load kernels: %w", err)
	}
	n.kernels = make(map[crypto.Address]*lending.Kernel, len(registered))
	n.contracts = map[crypto.Address]Contract{
		AssetAddress: n.token,
		PoolAddress:  n.pool,
	}
	for _, raw := range registered {
		addr := crypto.BytesToAddress(raw)
		k := n.newKernel(addr)
		n.kernels[addr] = k
		n.contracts[addr] = k
	}
	return nil
}

func (n *Node) newKernel(addr crypto.Address) *lending.Kernel {
	k := lending.NewKernel(addr, n.pool, n.token)
	k.SetState(n.state)
	k.SetEmitter(n.buffer)
	k.SetNowFunc(n.now)
	return k
}

// deployKernel registers a new kernel instance. Must run inside execute.
func (n *Node) deployKernel(owner crypto.Address, cfg lending.Config) (crypto.Address, error) {
	addr := KernelAddress(len(n.kernels) + 1)
	k := n.newKernel(addr)
	if err := k.Init(owner, cfg); err != nil {
		return crypto.ZeroAddress, err
	}
	if err := n.state.KVAppend(keyKernels, addr.Bytes()); err != nil {
		return crypto.ZeroAddress, err
	}
	n.kernels[addr] = k
	n.contracts[addr] = k
	return addr, nil
}

func (n *Node) kernel(addr crypto.Address) (*lending.Kernel, error) {
	k, ok := n.kernels[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, addr)
	}
	return k, nil
}

// Subscribe registers sub for receipts committed from now on.
func (n *Node) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	n.subsMu.Lock()
	n.subscribers = append(n.subscribers, sub)
	n.subsMu.Unlock()
}

// execute runs fn as one atomic operation. On error every state write and
// buffered event is discarded.
func (n *Node) execute(ctx context.Context, op string, caller crypto.Address, fn func() error) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("caller", caller.String())))
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	receipt, err := n.apply(op, caller, fn)
	outcome := "success"
	if err != nil {
		outcome = coreerrors.KindOf(err).String()
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.Int64("sequence", int64(receipt.Sequence)))
	}
	elapsed := time.Since(start)
	observability.Pool().ObserveOperation(op, outcome, elapsed)
	n.instruments.record(ctx, op, outcome, elapsed, receipt)
	if err != nil {
		n.logger.Debug("operation rejected",
			slog.String("operation", op),
			slog.String("caller", caller.String()),
			slog.String("outcome", outcome),
			slog.Any("error", err))
		return nil, err
	}
	n.logger.Info("operation committed",
		slog.String("operation", op),
		slog.String("caller", caller.String()),
		slog.String("receipt", receipt.ID.String()),
		slog.Int("events", len(receipt.Events)))
	n.publish(ctx, receipt)
	return receipt, nil
}

func (n *Node) apply(op string, caller crypto.Address, fn func() error) (*Receipt, error) {
	if err := n.state.Begin(); err != nil {
		return nil, err
	}
	n.buffer.Reset()
	abort := func(err error) (*Receipt, error) {
		n.state.Rollback()
		n.buffer.Reset()
		if syncErr := n.syncKernels(); syncErr != nil {
			n.logger.Error("kernel registry resync failed", slog.Any("error", syncErr))
		}
		return nil, err
	}
	if err := fn(); err != nil {
		return abort(err)
	}
	receipt, err := n.seal(op, caller, n.buffer.Drain())
	if err != nil {
		return abort(err)
	}
	if _, err := n.state.Commit(); err != nil {
		return abort(err)
	}
	return receipt, nil
}

func (n *Node) publish(ctx context.Context, receipt *Receipt) {
	for _, evt := range receipt.Events {
		observability.Events().Record(evt.Type)
	}
	n.subsMu.RLock()
	subs := append([]Subscriber(nil), n.subscribers...)
	n.subsMu.RUnlock()
	for _, sub := range subs {
		if err := sub.Publish(ctx, receipt); err != nil {
			n.logger.Warn("receipt subscriber failed",
				slog.String("operation", receipt.Operation),
				slog.String("receipt", receipt.ID.String()),
				slog.Any("error", err))
		}
	}
}

// Close releases the underlying database.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.db.Close()
}
