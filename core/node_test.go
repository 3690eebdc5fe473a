package core_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"yieldpool/core"
	"yieldpool/core/events"
	"yieldpool/core/genesis"
	"yieldpool/crypto"
	"yieldpool/native/account"
	"yieldpool/native/asset"
	"yieldpool/native/lending"
	"yieldpool/native/pool"
	"yieldpool/storage"
)

var (
	issuer   = crypto.ContractAddress("test/issuer")
	admin    = crypto.ContractAddress("test/admin")
	treasury = crypto.ContractAddress("test/treasury")
	investor = crypto.ContractAddress("test/investor")
	solver   = crypto.ContractAddress("test/solver")
	merchant = crypto.ContractAddress("test/merchant")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type collector struct {
	receipts []*core.Receipt
}

func (c *collector) Publish(_ context.Context, receipt *core.Receipt) error {
	c.receipts = append(c.receipts, receipt)
	return nil
}

func genesisSpec(t *testing.T) *genesis.Spec {
	t.Helper()
	doc := fmt.Sprintf(`{
	"genesisTime": "2026-01-01T00:00:00Z",
	"chainId": 7,
	"asset": {"name": "Pool Dollar", "symbol": "PUSD", "decimals": 6, "issuer": %q},
	"pool": {"owner": %q},
	"kernel": {"owner": %q, "treasury": %q, "performanceFeeBps": 2000},
	"investors": [%q],
	"solvers": [%q],
	"accounts": [%q],
	"alloc": {
		%q: {"asset": "1000", "native": "5"},
		%q: {"asset": "50"}
	}
}`, issuer, admin, admin, treasury, investor, solver, merchant, investor, solver)
	spec, err := genesis.DecodeSpec(strings.NewReader(doc))
	require.NoError(t, err)
	return spec
}

func newNode(t *testing.T, db storage.Database, clk *clock, sub core.Subscriber) *core.Node {
	t.Helper()
	opts := []core.Option{core.WithClock(clk.Now)}
	if sub != nil {
		opts = append(opts, core.WithSubscriber(sub))
	}
	node, err := core.NewNode(db, opts...)
	require.NoError(t, err)
	return node
}

func bootstrap(t *testing.T) (*core.Node, *clock, *collector, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	clk := &clock{now: time.Unix(1_767_225_600, 0)}
	sub := &collector{}
	node := newNode(t, db, clk, sub)
	_, err := node.Genesis(context.Background(), genesisSpec(t))
	require.NoError(t, err)
	return node, clk, sub, db
}

func approve(t *testing.T, node *core.Node, owner, spender crypto.Address, amount int64) {
	t.Helper()
	payload, err := asset.PackApprove(spender, big.NewInt(amount))
	require.NoError(t, err)
	_, _, err = node.Invoke(context.Background(), owner, core.AssetAddress, payload, nil)
	require.NoError(t, err)
}

func assetBalance(t *testing.T, node *core.Node, addr crypto.Address) int64 {
	t.Helper()
	bal, err := node.Balances(addr)
	require.NoError(t, err)
	return bal.Asset.Int64()
}

func TestGenesisBootstrapsComponents(t *testing.T) {
	node, _, _, _ := bootstrap(t)

	applied, err := node.GenesisApplied()
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "PUSD", node.AssetMetadata().Symbol)
	require.Equal(t, uint64(7), node.AssetMetadata().ChainID)

	kernels, err := node.Kernels()
	require.NoError(t, err)
	require.Len(t, kernels, 1)
	require.Equal(t, core.KernelAddress(1), kernels[0].Address)
	require.True(t, kernels[0].Active)
	require.Equal(t, uint64(2000), kernels[0].PerformanceFeeBps)
	require.Equal(t, treasury, kernels[0].Treasury)

	rec, err := node.Account(account.AddressFor(merchant))
	require.NoError(t, err)
	require.Equal(t, core.PoolAddress, rec.Pool)
	require.Equal(t, int64(1000), assetBalance(t, node, investor))

	_, err = node.Genesis(context.Background(), genesisSpec(t))
	require.ErrorIs(t, err, core.ErrGenesisApplied)
}

func TestEndToEndLendingCycle(t *testing.T) {
	node, _, sub, _ := bootstrap(t)
	ctx := context.Background()
	kernel := core.KernelAddress(1)

	approve(t, node, investor, core.PoolAddress, 1000)
	shares, _, err := node.Deposit(ctx, investor, big.NewInt(1000), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1000), shares.Int64())

	_, err = node.DeployCapital(ctx, admin, kernel, solver, big.NewInt(500), "invoice 42")
	require.NoError(t, err)
	summary, err := node.PoolSummary()
	require.NoError(t, err)
	require.Equal(t, int64(500), summary.OnHand.Int64())
	require.Equal(t, int64(500), summary.CapitalDeployed.Int64())

	approve(t, node, solver, kernel, 550)
	split, receipt, err := node.RepayLoan(ctx, solver, kernel, big.NewInt(500), big.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, int64(10), split.Treasury.Int64())
	require.Equal(t, int64(40), split.Investor.Int64())

	summary, err = node.PoolSummary()
	require.NoError(t, err)
	require.Equal(t, int64(1040), summary.OnHand.Int64())
	require.Zero(t, summary.CapitalDeployed.Sign())
	require.Equal(t, int64(10), assetBalance(t, node, treasury))

	var kinds []string
	for _, evt := range receipt.Events {
		kinds = append(kinds, evt.Type)
	}
	require.Contains(t, kinds, events.TypeKernelLoanRepaid)
	require.Contains(t, kinds, events.TypeKernelFeeSplit)
	require.Contains(t, kinds, events.TypePoolRepaymentReceived)

	require.NoError(t, core.VerifyChain(sub.receipts))
	seq, digest, err := node.Head()
	require.NoError(t, err)
	last := sub.receipts[len(sub.receipts)-1]
	require.Equal(t, last.Sequence, seq)
	require.Equal(t, last.Digest, digest)
}

func TestFailedOperationRollsBackEverything(t *testing.T) {
	node, _, sub, _ := bootstrap(t)
	ctx := context.Background()
	acct := account.AddressFor(merchant)
	_, err := node.Mint(ctx, issuer, acct, big.NewInt(100))
	require.NoError(t, err)
	published := len(sub.receipts)
	seq, digest, err := node.Head()
	require.NoError(t, err)

	transfer, err := asset.PackTransfer(investor, big.NewInt(30))
	require.NoError(t, err)
	targets := []crypto.Address{core.AssetAddress, core.AssetAddress}
	payloads := [][]byte{transfer, {0xca, 0xfe, 0xba, 0xbe}}
	_, _, err = node.ExecuteBatch(ctx, merchant, acct, targets, payloads, nil)
	require.ErrorIs(t, err, account.ErrUnrecognizedAssetCall)

	require.Equal(t, int64(100), assetBalance(t, node, acct))
	require.Equal(t, int64(1000), assetBalance(t, node, investor))
	require.Len(t, sub.receipts, published)
	afterSeq, afterDigest, err := node.Head()
	require.NoError(t, err)
	require.Equal(t, seq, afterSeq)
	require.Equal(t, digest, afterDigest)
}

func TestDailyLimitAcrossOperations(t *testing.T) {
	node, clk, _, _ := bootstrap(t)
	ctx := context.Background()
	acct := account.AddressFor(merchant)
	_, err := node.Mint(ctx, issuer, acct, big.NewInt(500))
	require.NoError(t, err)
	_, err = node.SetDailyLimit(ctx, merchant, acct, big.NewInt(100))
	require.NoError(t, err)

	_, err = node.Pay(ctx, merchant, acct, investor, big.NewInt(60))
	require.NoError(t, err)
	transfer, err := asset.PackTransfer(investor, big.NewInt(50))
	require.NoError(t, err)
	_, _, err = node.ExecuteBatch(ctx, merchant, acct, []crypto.Address{core.AssetAddress}, [][]byte{transfer}, nil)
	require.ErrorIs(t, err, account.ErrDailyLimitExceeded)

	clk.Advance(24 * time.Hour)
	_, _, err = node.ExecuteBatch(ctx, merchant, acct, []crypto.Address{core.AssetAddress}, [][]byte{transfer}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(390), assetBalance(t, node, acct))
}

func TestKernelUpgradeFlow(t *testing.T) {
	node, clk, _, _ := bootstrap(t)
	ctx := context.Background()
	old := core.KernelAddress(1)

	next, _, err := node.DeployKernel(ctx, admin, lending.Config{Treasury: treasury, PerformanceFeeBps: 500})
	require.NoError(t, err)
	require.Equal(t, core.KernelAddress(2), next)

	_, err = node.ProposeKernel(ctx, admin, next)
	require.NoError(t, err)
	_, _, err = node.UpgradeKernel(ctx, admin)
	require.ErrorIs(t, err, pool.ErrTimelockActive)

	clk.Advance(pool.DefaultKernelTimelock)
	active, _, err := node.UpgradeKernel(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, next, active)

	approve(t, node, investor, core.PoolAddress, 1000)
	_, _, err = node.Deposit(ctx, investor, big.NewInt(1000), nil)
	require.NoError(t, err)

	_, err = node.DeployCapital(ctx, admin, old, solver, big.NewInt(100), "")
	require.ErrorIs(t, err, pool.ErrNotKernel)

	_, err = node.SetSolver(ctx, admin, next, solver, true)
	require.NoError(t, err)
	_, err = node.DeployCapital(ctx, admin, next, solver, big.NewInt(100), "")
	require.NoError(t, err)

	_, err = node.DeployCapital(ctx, admin, crypto.ContractAddress("nowhere"), solver, big.NewInt(1), "")
	require.ErrorIs(t, err, core.ErrUnknownKernel)
}

func TestFailedDeployDoesNotLeakKernel(t *testing.T) {
	node, _, _, _ := bootstrap(t)
	_, _, err := node.DeployKernel(context.Background(), admin, lending.Config{PerformanceFeeBps: 10_001})
	require.ErrorIs(t, err, lending.ErrInvalidFee)
	kernels, err := node.Kernels()
	require.NoError(t, err)
	require.Len(t, kernels, 1)

	addr, _, err := node.DeployKernel(context.Background(), admin, lending.Config{})
	require.NoError(t, err)
	require.Equal(t, core.KernelAddress(2), addr)
}

func TestNodeReopensState(t *testing.T) {
	node, clk, _, db := bootstrap(t)
	ctx := context.Background()
	_, _, err := node.DeployKernel(ctx, admin, lending.Config{})
	require.NoError(t, err)
	seq, digest, err := node.Head()
	require.NoError(t, err)

	reopened := newNode(t, db, clk, nil)
	require.Equal(t, "PUSD", reopened.AssetMetadata().Symbol)
	kernels, err := reopened.Kernels()
	require.NoError(t, err)
	require.Len(t, kernels, 2)
	reSeq, reDigest, err := reopened.Head()
	require.NoError(t, err)
	require.Equal(t, seq, reSeq)
	require.Equal(t, digest, reDigest)
}

func TestInvokeMovesNativeValue(t *testing.T) {
	node, _, _, _ := bootstrap(t)
	ctx := context.Background()

	_, _, err := node.Invoke(ctx, investor, merchant, nil, big.NewInt(2))
	require.NoError(t, err)
	bal, err := node.Balances(merchant)
	require.NoError(t, err)
	require.Equal(t, int64(2), bal.Native.Int64())

	_, _, err = node.Invoke(ctx, investor, merchant, nil, big.NewInt(10))
	require.ErrorIs(t, err, account.ErrInsufficientFunds)

	_, _, err = node.Invoke(ctx, investor, merchant, []byte{0x01}, nil)
	require.ErrorIs(t, err, core.ErrNoContract)
}

func TestNodeExportsOperationInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	clk := &clock{now: time.Unix(1_767_225_600, 0)}
	node, err := core.NewNode(storage.NewMemDB(),
		core.WithClock(clk.Now),
		core.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	require.NoError(t, err)
	_, err = node.Genesis(context.Background(), genesisSpec(t))
	require.NoError(t, err)

	_, _, err = node.Deposit(context.Background(), merchant, big.NewInt(10), nil)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	outcomes := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "yieldpool.node.operations" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				outcomes[op.AsString()+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	require.Equal(t, int64(1), outcomes["genesis/success"])
	require.Equal(t, int64(1), outcomes["pool.deposit/authorization"])
}
