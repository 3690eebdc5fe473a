package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"yieldpool/core"
	"yieldpool/storage/audit"
)

// AuditLog is the archive queried by the audit endpoints.
type AuditLog interface {
	Receipts(ctx context.Context, q audit.Query) ([]*core.Receipt, error)
	Latest(ctx context.Context) (uint64, error)
}

type headView struct {
	Sequence        uint64 `json:"sequence"`
	Digest          string `json:"digest"`
	ArchivedThrough uint64 `json:"archivedThrough"`
}

func parseQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	q := audit.Query{
		Operation: values.Get("operation"),
		EventType: values.Get("event"),
	}
	if raw := values.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("after: %w", err)
		}
		q.AfterSequence = after
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("limit: invalid value %q", raw)
		}
		q.Limit = limit
	}
	if raw := values.Get("caller"); raw != "" {
		caller, err := parseAddress("caller", raw)
		if err != nil {
			return q, err
		}
		q.Caller = caller
	}
	return q, nil
}

func (a *api) auditReceipts(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	receipts, err := a.audit.Receipts(ctx, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (a *api) auditHead(w http.ResponseWriter, r *http.Request) {
	seq, digest, err := a.node.Head()
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := a.context(r)
	defer cancel()
	archived, err := a.audit.Latest(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, headView{Sequence: seq, Digest: digest.Hex(), ArchivedThrough: archived})
}
