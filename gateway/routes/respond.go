package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"yieldpool/core"
	coreerrors "yieldpool/core/errors"
	"yieldpool/crypto"
	"yieldpool/gateway/middleware"
	"yieldpool/native/account"
	"yieldpool/native/common"
	"yieldpool/native/lending"
)

const requestLimit = 1 << 20 // 1 MiB

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
}

// conflicts are precondition failures caused by existing state rather than
// by malformed input.
var conflicts = []error{
	lending.ErrActiveLoanExists,
	account.ErrAccountExists,
	common.ErrTimelockActive,
	common.ErrReentrantCall,
	core.ErrGenesisApplied,
}

// statusFor maps an operation failure to its HTTP status.
func statusFor(err error) int {
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	if errors.Is(err, core.ErrUnknownKernel) || errors.Is(err, account.ErrAccountNotFound) {
		return http.StatusNotFound
	}
	switch coreerrors.KindOf(err) {
	case coreerrors.KindAuthorization:
		return http.StatusForbidden
	case coreerrors.KindPrecondition:
		return http.StatusBadRequest
	case coreerrors.KindEconomic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{
		Error:     msg,
		Kind:      coreerrors.KindOf(err).String(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     err.Error(),
		Kind:      coreerrors.KindPrecondition.String(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func decodeRequest(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// parseAmount reads a base-10 amount. Empty input yields nil so optional
// fields keep their operation defaults.
func parseAmount(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, raw)
	}
	return value, nil
}

func requireAmount(field, raw string) (*big.Int, error) {
	value, err := parseAmount(field, raw)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%s: required", field)
	}
	return value, nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
