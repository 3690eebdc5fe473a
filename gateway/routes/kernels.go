package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"yieldpool/crypto"
	"yieldpool/native/lending"
)

type kernelView struct {
	Address           string `json:"address"`
	Owner             string `json:"owner"`
	Treasury          string `json:"treasury,omitempty"`
	PerformanceFeeBps uint64 `json:"performanceFeeBps"`
	Active            bool   `json:"active"`
}

type loanView struct {
	Kernel    string `json:"kernel"`
	Borrower  string `json:"borrower"`
	Principal string `json:"principal"`
	Memo      string `json:"memo,omitempty"`
	IssuedAt  uint64 `json:"issuedAt"`
}

type deployKernelRequest struct {
	Treasury          string `json:"treasury"`
	PerformanceFeeBps uint64 `json:"performanceFeeBps"`
}

type solverRequest struct {
	Solver   string `json:"solver"`
	Eligible bool   `json:"eligible"`
}

type treasuryRequest struct {
	Treasury string `json:"treasury"`
}

type feeRequest struct {
	PerformanceFeeBps uint64 `json:"performanceFeeBps"`
}

type loanRequest struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
	Memo     string `json:"memo"`
}

type repayRequest struct {
	Principal string `json:"principal"`
	Fee       string `json:"fee"`
}

func (a *api) mountKernels(r chi.Router) {
	r.Get("/", a.listKernels)
	r.Post("/", a.deployKernel)
	r.Route("/{kernel}", func(kr chi.Router) {
		kr.Get("/loans/{borrower}", a.loan)
		kr.Post("/solvers", a.setSolver)
		kr.Post("/treasury", a.setTreasury)
		kr.Post("/fee", a.setFee)
		kr.Post("/loans", a.deployCapital)
		kr.Post("/repay", a.repayLoan)
	})
}

func kernelParam(r *http.Request) (crypto.Address, error) {
	return parseAddress("kernel", chi.URLParam(r, "kernel"))
}

func (a *api) listKernels(w http.ResponseWriter, r *http.Request) {
	kernels, err := a.node.Kernels()
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]kernelView, 0, len(kernels))
	for _, k := range kernels {
		view := kernelView{
			Address:           k.Address.String(),
			Owner:             k.Owner.String(),
			PerformanceFeeBps: k.PerformanceFeeBps,
			Active:            k.Active,
		}
		if !k.Treasury.IsZero() {
			view.Treasury = k.Treasury.String()
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) loan(w http.ResponseWriter, r *http.Request) {
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	borrower, err := parseAddress("borrower", chi.URLParam(r, "borrower"))
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	loan, err := a.node.Loan(kernel, borrower)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loan.Principal == nil || loan.Principal.Sign() == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no active loan", Kind: "precondition"})
		return
	}
	writeJSON(w, http.StatusOK, loanView{
		Kernel:    kernel.String(),
		Borrower:  borrower.String(),
		Principal: amountString(loan.Principal),
		Memo:      loan.Memo,
		IssuedAt:  loan.IssuedAt,
	})
}

func (a *api) deployKernel(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req deployKernelRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	cfg := lending.Config{PerformanceFeeBps: req.PerformanceFeeBps}
	if req.Treasury != "" {
		treasury, err := parseAddress("treasury", req.Treasury)
		if err != nil {
			writeBadRequest(w, r, err)
			return
		}
		cfg.Treasury = treasury
	}
	ctx, cancel := a.context(r)
	defer cancel()
	kernel, receipt, err := a.node.DeployKernel(ctx, caller, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, opResponse{Receipt: receipt, Result: map[string]string{"kernel": kernel.String()}})
}

func (a *api) setSolver(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req solverRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	solver, err := parseAddress("solver", req.Solver)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.SetSolver(ctx, caller, kernel, solver, req.Eligible)
	a.respond(w, r, receipt, err)
}

func (a *api) setTreasury(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req treasuryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.SetTreasury(ctx, caller, kernel, treasury)
	a.respond(w, r, receipt, err)
}

func (a *api) setFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req feeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipt, err := a.node.SetPerformanceFee(ctx, caller, kernel, req.PerformanceFeeBps)
	a.respond(w, r, receipt, err)
}

func (a *api) deployCapital(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req loanRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	borrower, err := parseAddress("borrower", req.Borrower)
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
	receipt, err := a.node.DeployCapital(ctx, caller, kernel, borrower, amount, req.Memo)
	a.respond(w, r, receipt, err)
}

func (a *api) repayLoan(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	kernel, err := kernelParam(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	var req repayRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	principal, err := requireAmount("principal", req.Principal)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	split, receipt, err := a.node.RepayLoan(ctx, caller, kernel, principal, fee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt, Result: map[string]string{
		"treasuryShare": amountString(split.Treasury),
		"investorShare": amountString(split.Investor),
	}})
}
