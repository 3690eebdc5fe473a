package routes

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"yieldpool/crypto"
)

type accountView struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Pool       string `json:"pool"`
	Asset      string `json:"asset"`
	DailyLimit string `json:"dailyLimit"`
	SpentToday string `json:"spentToday"`
	CreatedAt  uint64 `json:"createdAt"`
}

type payRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type limitRequest struct {
	Limit string `json:"limit"`
}

type batchCall struct {
	Target string        `json:"target"`
	Data   hexutil.Bytes `json:"data"`
	Value  string        `json:"value"`
}

type batchRequest struct {
	Calls []batchCall `json:"calls"`
}

type recoverTokenRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type recoverNativeRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (a *api) mountAccounts(r chi.Router) {
	r.Post("/", a.createAccount)
	r.Route("/{account}", func(ar chi.Router) {
		ar.Get("/", a.account)
		ar.Post("/pay", a.pay)
		ar.Post("/limit", a.setDailyLimit)
		ar.Post("/batch", a.executeBatch)
		ar.Post("/savings/deposit", a.depositToSavings)
		ar.Post("/savings/withdraw", a.withdrawFromSavings)
		ar.Post("/recover/token", a.recoverToken)
		ar.Post("/recover/native", a.recoverNative)
	})
}

func accountParam(r *http.Request) (crypto.Address, error) {
	return parseAddress("account", chi.URLParam(r, "account"))
}

func (a *api) createAccount(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	acct, receipt, err := a.node.CreateAccount(ctx, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, opResponse{Receipt: receipt, Result: map[string]string{"account": acct.String()}})
}

func (a *api) account(w http.ResponseWriter, r *http.Request) {
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	rec, err := a.node.Account(acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner, err := a.node.AccountOwner(acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	spent, err := a.node.SpentToday(acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{
		Address:    rec.Address.String(),
		Owner:      owner.String(),
		Pool:       rec.Pool.String(),
		Asset:      rec.Asset.String(),
		DailyLimit: amountString(rec.DailyLimit),
		SpentToday: amountString(spent),
		CreatedAt:  rec.CreatedAt,
	})
}

func (a *api) pay(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req payRequest
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
	receipt, err := a.node.Pay(ctx, caller, acct, to, amount)
	a.respond(w, r, receipt, err)
}

func (a *api) setDailyLimit(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req limitRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	limit, err := requireAmount("limit", req.Limit)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.SetDailyLimit(ctx, caller, acct, limit)
	a.respond(w, r, receipt, err)
}

func (a *api) executeBatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	targets := make([]crypto.Address, len(req.Calls))
	payloads := make([][]byte, len(req.Calls))
	values := make([]*big.Int, len(req.Calls))
	for i, call := range req.Calls {
		target, err := parseAddress(fmt.Sprintf("calls[%d].target", i), call.Target)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		value, err := parseAmount(fmt.Sprintf("calls[%d].value", i), call.Value)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		if value == nil {
			value = new(big.Int)
		}
		targets[i], payloads[i], values[i] = target, call.Data, value
	}
	ctx, cancel := a.context(r)
	defer cancel()
	results, receipt, err := a.node.ExecuteBatch(ctx, caller, acct, targets, payloads, values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(results))
	for i, result := range results {
		out[fmt.Sprintf("result%d", i)] = hexutil.Encode(result)
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: out})
}

func (a *api) depositToSavings(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	amount, err := requireAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	minShares, err := parseAmount("minShares", req.MinShares)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	shares, receipt, err := a.node.DepositToSavings(ctx, caller, acct, amount, minShares)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"shares": amountString(shares)}})
}

func (a *api) withdrawFromSavings(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req withdrawRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	shares, err := requireAmount("shares", req.Shares)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	minAssets, err := parseAmount("minAssets", req.MinAssets)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	assets, receipt, err := a.node.WithdrawFromSavings(ctx, caller, acct, shares, minAssets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"assets": amountString(assets)}})
}

func (a *api) recoverToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req recoverTokenRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	moved, receipt, err := a.node.RecoverToken(ctx, caller, acct, token, to, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"amount": amountString(moved)}})
}

func (a *api) recoverNative(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	acct, err := accountParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req recoverNativeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	moved, receipt, err := a.node.RecoverNative(ctx, caller, acct, to, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"amount": amountString(moved)}})
}
