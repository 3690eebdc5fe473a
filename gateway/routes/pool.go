package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yieldpool/core"
)

type summaryView struct {
	TotalShares     string `json:"totalShares"`
	CapitalDeployed string `json:"capitalDeployed"`
	OnHand          string `json:"onHand"`
	ManagedAssets   string `json:"managedAssets"`
	Kernel          string `json:"kernel"`
	PendingKernel   string `json:"pendingKernel,omitempty"`
	ActivationAt    string `json:"activationAt,omitempty"`
}

type positionView struct {
	Investor      string `json:"investor"`
	Shares        string `json:"shares"`
	Assets        string `json:"assets"`
	LastDepositAt uint64 `json:"lastDepositAt"`
}

type opResponse struct {
	Receipt *core.Receipt     `json:"receipt"`
	Result  map[string]string `json:"result,omitempty"`
}

type depositRequest struct {
	Amount    string `json:"amount"`
	MinShares string `json:"minShares"`
}

type withdrawRequest struct {
	Shares    string `json:"shares"`
	MinAssets string `json:"minAssets"`
}

type investorRequest struct {
	Investor string `json:"investor"`
	Eligible bool   `json:"eligible"`
}

type kernelRequest struct {
	Kernel string `json:"kernel"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

func (a *api) mountPool(r chi.Router) {
	r.Get("/", a.poolSummary)
	r.Get("/preview/deposit", a.previewDeposit)
	r.Get("/preview/withdraw", a.previewWithdraw)
	r.Get("/positions/{investor}", a.position)
	r.Post("/deposit", a.deposit)
	r.Post("/withdraw", a.withdraw)
	r.Post("/investors", a.setInvestor)
	r.Post("/kernel/propose", a.proposeKernel)
	r.Post("/kernel/upgrade", a.upgradeKernel)
	r.Post("/ownership/transfer", a.transferPoolOwnership)
	r.Post("/ownership/accept", a.acceptPoolOwnership)
}

func (a *api) poolSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.node.PoolSummary()
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := summaryView{
		TotalShares:     amountString(summary.TotalShares),
		CapitalDeployed: amountString(summary.CapitalDeployed),
		OnHand:          amountString(summary.OnHand),
		ManagedAssets:   amountString(summary.ManagedAssets),
		Kernel:          summary.Kernel.String(),
	}
	if !summary.PendingKernel.IsZero() {
		view.PendingKernel = summary.PendingKernel.String()
		view.ActivationAt = summary.ActivationAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) previewDeposit(w http.ResponseWriter, r *http.Request) {
	amount, err := requireAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	shares, err := a.node.PreviewDeposit(amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String(), "shares": amountString(shares)})
}

func (a *api) previewWithdraw(w http.ResponseWriter, r *http.Request) {
	shares, err := requireAmount("shares", r.URL.Query().Get("shares"))
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	assets, err := a.node.PreviewWithdraw(shares)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": shares.String(), "assets": amountString(assets)})
}

func (a *api) position(w http.ResponseWriter, r *http.Request) {
	investor, err := parseAddress("investor", chi.URLParam(r, "investor"))
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	pos, err := a.node.Position(investor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	assets, err := a.node.PreviewWithdraw(pos.Shares)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positionView{
		Investor:      investor.String(),
		Shares:        amountString(pos.Shares),
		Assets:        amountString(assets),
		LastDepositAt: pos.LastDepositAt,
	})
}

func (a *api) deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
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
	shares, receipt, err := a.node.Deposit(ctx, caller, amount, minShares)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"shares": shares.String()}})
}

func (a *api) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
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
	assets, receipt, err := a.node.Withdraw(ctx, caller, shares, minAssets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"assets": assets.String()}})
}

func (a *api) setInvestor(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req investorRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	investor, err := parseAddress("investor", req.Investor)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.SetInvestorStatus(ctx, caller, investor, req.Eligible)
	a.respond(w, r, receipt, err)
}

func (a *api) proposeKernel(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req kernelRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	kernel, err := parseAddress("kernel", req.Kernel)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.ProposeKernel(ctx, caller, kernel)
	a.respond(w, r, receipt, err)
}

func (a *api) upgradeKernel(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	kernel, receipt, err := a.node.UpgradeKernel(ctx, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{"kernel": kernel.String()}})
}

func (a *api) transferPoolOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	next, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.TransferPoolOwnership(ctx, caller, next)
	a.respond(w, r, receipt, err)
}

func (a *api) acceptPoolOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.AcceptPoolOwnership(ctx, caller)
	a.respond(w, r, receipt, err)
}
