package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"yieldpool/core"
	"yieldpool/core/genesis"
	"yieldpool/crypto"
	"yieldpool/gateway/middleware"
	"yieldpool/gateway/routes"
	"yieldpool/native/asset"
	"yieldpool/storage"
	"yieldpool/storage/audit"
)

const secret = "gateway-test-secret"

var (
	issuer   = crypto.ContractAddress("gw/issuer")
	admin    = crypto.ContractAddress("gw/admin")
	treasury = crypto.ContractAddress("gw/treasury")
	investor = crypto.ContractAddress("gw/investor")
	solver   = crypto.ContractAddress("gw/solver")
	outsider = crypto.ContractAddress("gw/outsider")
)

type fixture struct {
	node   *core.Node
	store  *audit.Store
	hub    *routes.Hub
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := fmt.Sprintf(`{
	"genesisTime": "2026-01-01T00:00:00Z",
	"chainId": 7,
	"asset": {"name": "Pool Dollar", "symbol": "PUSD", "decimals": 6, "issuer": %q},
	"pool": {"owner": %q},
	"kernel": {"owner": %q, "treasury": %q, "performanceFeeBps": 2000},
	"investors": [%q],
	"solvers": [%q],
	"alloc": {
		%q: {"asset": "1000"},
		%q: {"asset": "1000"}
	}
}`, issuer, admin, admin, treasury, investor, solver, investor, outsider)
	spec, err := genesis.DecodeSpec(strings.NewReader(doc))
	require.NoError(t, err)

	store, err := audit.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	hub := routes.NewHub(nil)

	now := time.Unix(1_767_225_600, 0)
	node, err := core.NewNode(storage.NewMemDB(),
		core.WithClock(func() time.Time { return now }),
		core.WithSubscriber(store),
		core.WithSubscriber(hub))
	require.NoError(t, err)
	_, err = node.Genesis(context.Background(), spec)
	require.NoError(t, err)

	handler, err := routes.New(routes.Config{
		Node:  node,
		Audit: store,
		Hub:   hub,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        true,
			HMACSecret:     secret,
			AllowAnonymous: true,
		}, nil),
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"read":  {RequestsPerMinute: 6000, Burst: 100},
			"write": {RequestsPerMinute: 6000, Burst: 100},
		}, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, nil),
	})
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &fixture{node: node, store: store, hub: hub, server: server}
}

func token(t *testing.T, caller crypto.Address, scopes ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": caller.String(), "exp": time.Now().Add(time.Hour).Unix()}
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]interface{}
	if res.Header.Get("Content-Type") == "application/json" {
		var raw interface{}
		require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
		if obj, ok := raw.(map[string]interface{}); ok {
			out = obj
		} else {
			out = map[string]interface{}{"items": raw}
		}
	}
	return res.StatusCode, out
}

func (f *fixture) approvePool(t *testing.T, owner crypto.Address, amount int64) {
	t.Helper()
	payload, err := asset.PackApprove(core.PoolAddress, big.NewInt(amount))
	require.NoError(t, err)
	_, _, err = f.node.Invoke(context.Background(), owner, core.AssetAddress, payload, nil)
	require.NoError(t, err)
}

func TestReadsAllowAnonymousCallers(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0", body["totalShares"])

	status, body = f.do(t, http.MethodGet, "/v1/asset", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "PUSD", body["symbol"])

	status, _ = f.do(t, http.MethodPost, "/v1/pool/deposit", "", map[string]string{"amount": "10"})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestDepositThroughGateway(t *testing.T) {
	f := newFixture(t)
	f.approvePool(t, investor, 400)

	status, body := f.do(t, http.MethodPost, "/v1/pool/deposit", token(t, investor), map[string]string{"amount": "400"})
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	result := body["result"].(map[string]interface{})
	require.NotEqual(t, "0", result["shares"])
	receipt := body["receipt"].(map[string]interface{})
	require.Equal(t, "pool.deposit", receipt["operation"])

	status, body = f.do(t, http.MethodGet, "/v1/balances/"+investor.String(), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "600", body["asset"])
	require.Equal(t, result["shares"], body["shares"])

	status, body = f.do(t, http.MethodGet, "/v1/pool/positions/"+investor.Hex(), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "400", body["assets"])
}

func TestErrorKindsMapToStatus(t *testing.T) {
	f := newFixture(t)
	f.approvePool(t, investor, 1000)
	f.approvePool(t, outsider, 1000)

	// Not whitelisted: authorization.
	status, body := f.do(t, http.MethodPost, "/v1/pool/deposit", token(t, outsider), map[string]string{"amount": "100"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "authorization", body["kind"])

	// Slippage: economic.
	status, body = f.do(t, http.MethodPost, "/v1/pool/deposit", token(t, investor),
		map[string]string{"amount": "100", "minShares": "1000000000000000000000"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "economic", body["kind"])

	// Malformed input never reaches the node.
	status, _ = f.do(t, http.MethodPost, "/v1/pool/deposit", token(t, investor), map[string]string{"amount": "ten"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/v1/pool/deposit", token(t, investor), map[string]string{"amount": "500"})
	require.Equal(t, http.StatusOK, status)

	kernel, err := f.node.PrimaryKernel()
	require.NoError(t, err)
	loanPath := "/v1/kernels/" + kernel.String() + "/loans"
	loan := map[string]string{"borrower": solver.String(), "amount": "200", "memo": "invoice 7"}
	status, body = f.do(t, http.MethodPost, loanPath, token(t, admin), loan)
	require.Equal(t, http.StatusOK, status, "body: %v", body)

	// A second loan to the same solver conflicts with existing state.
	status, _ = f.do(t, http.MethodPost, loanPath, token(t, admin), loan)
	require.Equal(t, http.StatusConflict, status)

	status, body = f.do(t, http.MethodGet, loanPath+"/"+solver.String(), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "200", body["principal"])
	require.Equal(t, "invoice 7", body["memo"])

	status, _ = f.do(t, http.MethodGet, "/v1/kernels/"+crypto.ContractAddress("gw/none").String()+"/loans/"+solver.String(), "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestAuditEndpointsRequireScope(t *testing.T) {
	f := newFixture(t)
	f.approvePool(t, investor, 100)

	status, _ := f.do(t, http.MethodGet, "/v1/audit/receipts", token(t, investor), nil)
	require.Equal(t, http.StatusForbidden, status)
	status, _ = f.do(t, http.MethodGet, "/v1/audit/receipts", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	auditor := token(t, investor, "audit")
	status, body := f.do(t, http.MethodGet, "/v1/audit/receipts", auditor, nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]interface{})
	seq, _, err := f.node.Head()
	require.NoError(t, err)
	require.Len(t, items, int(seq))

	status, body = f.do(t, http.MethodGet, "/v1/audit/receipts?operation=genesis", auditor, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["items"].([]interface{}), 1)

	status, body = f.do(t, http.MethodGet, "/v1/audit/head", auditor, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(seq), body["sequence"])
	require.Equal(t, float64(seq), body["archivedThrough"])

	n, err := f.store.Verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, int(seq), n)
}

func TestEventStreamDeliversReceipts(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, res, err := websocket.Dial(ctx, f.streamURL("?op=pool.deposit"), &websocket.DialOptions{
		HTTPHeader: bearerHeader(token(t, outsider, "audit")),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.approvePool(t, investor, 250)
	_, _, err = f.node.Deposit(context.Background(), investor, big.NewInt(250), nil)
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var receipt core.Receipt
	require.NoError(t, json.Unmarshal(data, &receipt))
	require.Equal(t, "pool.deposit", receipt.Operation)
	require.Equal(t, investor, receipt.Caller)
	require.Equal(t, receipt.ComputeDigest(), receipt.Digest)
}

func (f *fixture) streamURL(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/events/ws" + query
}

func bearerHeader(bearer string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+bearer)
	return h
}

func TestEventStreamRequiresAuditScope(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, res, err := websocket.Dial(ctx, f.streamURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, res, err = websocket.Dial(ctx, f.streamURL(""), &websocket.DialOptions{
		HTTPHeader: bearerHeader(token(t, investor)),
	})
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	require.Equal(t, 0, f.hub.Clients())
}
