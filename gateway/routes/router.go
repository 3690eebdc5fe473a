package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yieldpool/core"
	"yieldpool/crypto"
	"yieldpool/gateway/config"
	"yieldpool/gateway/middleware"
)

type Config struct {
	Node           *core.Node
	Audit          AuditLog
	Hub            *Hub
	Authenticator  *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	Observability  *middleware.Observability
	CORS           middleware.CORSConfig
	AuditScope     string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type api struct {
	node    *core.Node
	audit   AuditLog
	timeout time.Duration
	logger  *slog.Logger
}

// New builds the HTTP surface over the node. Writes execute as the caller
// resolved by the authenticator.
func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, fmt.Errorf("routes: node required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AuditScope == "" {
		cfg.AuditScope = "audit"
	}
	a := &api{node: cfg.Node, audit: cfg.Audit, timeout: cfg.RequestTimeout, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	group := func(module, bucket string, scopes ...string) []func(http.Handler) http.Handler {
		var mws []func(http.Handler) http.Handler
		if obs != nil {
			mws = append(mws, obs.Middleware(module))
		}
		if cfg.Authenticator != nil {
			mws = append(mws, cfg.Authenticator.Middleware(scopes...))
		}
		if cfg.RateLimiter != nil && bucket != "" {
			mws = append(mws, cfg.RateLimiter.Middleware(bucket))
		}
		return mws
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		mount := func(prefix, module string, fn func(chi.Router)) {
			v1.Route(prefix, func(sr chi.Router) {
				sr.Use(group(module, "")...)
				sr.Use(bucketByMethod(cfg.RateLimiter))
				fn(sr)
			})
		}
		mount("/pool", "pool", a.mountPool)
		mount("/kernels", "kernels", a.mountKernels)
		mount("/accounts", "accounts", a.mountAccounts)
		mount("/asset", "asset", a.mountAsset)
		mount("/balances", "asset", func(sr chi.Router) { sr.Get("/{address}", a.balances) })
		mount("/invoke", "invoke", func(sr chi.Router) { sr.Post("/", a.invoke) })

		if cfg.Audit != nil {
			v1.Route("/audit", func(sr chi.Router) {
				sr.Use(group("audit", config.LimitAudit, cfg.AuditScope)...)
				sr.Get("/receipts", a.auditReceipts)
				sr.Get("/head", a.auditHead)
			})
		}
		if cfg.Hub != nil {
			v1.Route("/events", func(sr chi.Router) {
				sr.Use(group("events", config.LimitStream, cfg.AuditScope)...)
				sr.Get("/ws", cfg.Hub.serveStream)
			})
		}
	})
	return r, nil
}

// bucketByMethod applies the read bucket to GET requests and the write bucket
// to everything else.
func bucketByMethod(limiter *middleware.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		read := limiter.Middleware(config.LimitRead)(next)
		write := limiter.Middleware(config.LimitWrite)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				read.ServeHTTP(w, r)
				return
			}
			write.ServeHTTP(w, r)
		})
	}
}

func (a *api) caller(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:     "caller identity required",
			Kind:      "authorization",
			RequestID: middleware.RequestIDFromContext(r.Context()),
		})
		return crypto.Address{}, false
	}
	return caller, true
}

func (a *api) context(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := a.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (a *api) respond(w http.ResponseWriter, r *http.Request, receipt *core.Receipt, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Receipt: receipt})
}
