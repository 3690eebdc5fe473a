package routes

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"yieldpool/core"
	"yieldpool/crypto"
	"yieldpool/native/asset"
)

type assetView struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Version  string `json:"version"`
	ChainID  uint64 `json:"chainId"`
}

type balancesView struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Native  string `json:"native"`
	Shares  string `json:"shares"`
}

// authorizationRequest is a signed transfer relayed on behalf of From.
type authorizationRequest struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	Value       string        `json:"value"`
	ValidAfter  string        `json:"validAfter"`
	ValidBefore string        `json:"validBefore"`
	Nonce       hexutil.Bytes `json:"nonce"`
	Signature   hexutil.Bytes `json:"signature"`
}

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type invokeRequest struct {
	Target string        `json:"target"`
	Data   hexutil.Bytes `json:"data"`
	Value  string        `json:"value"`
}

func (a *api) mountAsset(r chi.Router) {
	r.Get("/", a.assetMetadata)
	r.Post("/authorizations", a.transferWithAuthorization)
	r.Post("/mint", a.mint)
}

func (a *api) assetMetadata(w http.ResponseWriter, r *http.Request) {
	meta := a.node.AssetMetadata()
	writeJSON(w, http.StatusOK, assetView{
		Address:  core.AssetAddress.String(),
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
		Version:  meta.Version,
		ChainID:  meta.ChainID,
	})
}

func (a *api) balances(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	bal, err := a.node.Balances(addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesView{
		Address: addr.String(),
		Asset:   amountString(bal.Asset),
		Native:  amountString(bal.Native),
		Shares:  amountString(bal.Shares),
	})
}

func (req authorizationRequest) toAuthorization() (*asset.Authorization, error) {
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return nil, err
	}
	value, err := requireAmount("value", req.Value)
	if err != nil {
		return nil, err
	}
	validAfter, err := parseAmount("validAfter", req.ValidAfter)
	if err != nil {
		return nil, err
	}
	if validAfter == nil {
		validAfter = new(big.Int)
	}
	validBefore, err := requireAmount("validBefore", req.ValidBefore)
	if err != nil {
		return nil, err
	}
	if len(req.Nonce) != 32 {
		return nil, fmt.Errorf("nonce: must be 32 bytes")
	}
	v, sigR, sigS, err := crypto.SplitSignature(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	auth := &asset.Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		V:           v,
		R:           sigR,
		S:           sigS,
	}
	copy(auth.Nonce[:], req.Nonce)
	return auth, nil
}

func (a *api) transferWithAuthorization(w http.ResponseWriter, r *http.Request) {
	relayer, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req authorizationRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	auth, err := req.toAuthorization()
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.TransferWithAuthorization(ctx, relayer, auth)
	a.respond(w, r, receipt, err)
}

func (a *api) mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	amount, err := requireAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.Mint(ctx, caller, to, amount)
	a.respond(w, r, receipt, err)
}

func (a *api) invoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req invokeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	target, err := parseAddress("target", req.Target)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	out, receipt, err := a.node.Invoke(ctx, caller, target, req.Data, value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"output": hexutil.Encode(out)}})
}
