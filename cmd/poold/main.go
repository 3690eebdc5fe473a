package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yieldpool/config"
	"yieldpool/core"
	"yieldpool/core/genesis"
	gwconfig "yieldpool/gateway/config"
	"yieldpool/gateway/middleware"
	"yieldpool/gateway/routes"
	"yieldpool/observability/logging"
	telemetry "yieldpool/observability/otel"
	"yieldpool/storage"
	"yieldpool/storage/audit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	gatewayPath := flag.String("gateway", "", "override the gateway configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithFile("poold", cfg.Environment, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logCloser.Close()

	if *gatewayPath != "" {
		cfg.GatewayConfig = *gatewayPath
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("poold stopped", slog.Any("error", err))
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.StateBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}

	archive, err := audit.Open(cfg.Audit.DSN)
	if err != nil {
		db.Close()
		return fmt.Errorf("open audit archive: %w", err)
	}
	defer archive.Close()
	archive.SetLogger(logger)

	hub := routes.NewHub(logger)
	node, err := core.NewNode(db,
		core.WithLogger(logger),
		core.WithDurations(cfg.Lockup(), cfg.KernelTimelock()),
		core.WithSubscriber(archive),
		core.WithSubscriber(hub),
	)
	if err != nil {
		db.Close()
		return fmt.Errorf("open node: %w", err)
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := applyGenesis(ctx, node, cfg.GenesisFile, logger); err != nil {
		return err
	}

	gwCfg, err := gwconfig.Load(cfg.GatewayConfig)
	if err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "poold",
		Environment: cfg.Environment,
		Endpoint:    gwCfg.Observability.OTLPEndpoint,
		Insecure:    gwCfg.Observability.OTLPInsecure,
		Headers:     telemetry.ParseHeaders(gwCfg.Observability.OTLPHeaders),
		Traces:      gwCfg.Observability.Tracing,
		Metrics:     gwCfg.Observability.OTLPMetrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	handler, err := buildGateway(gwCfg, node, archive, hub, logger)
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	if gwCfg.Observability.Tracing {
		handler = otelhttp.NewHandler(handler, "poold")
	}

	server := &http.Server{
		Addr:         gwCfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  gwCfg.ReadTimeout,
		WriteTimeout: gwCfg.WriteTimeout,
		IdleTimeout:  gwCfg.IdleTimeout,
	}
	listener, err := net.Listen("tcp", gwCfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	useTLS := gwCfg.Security.TLSCertFile != ""
	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		logger.Info("gateway listening", slog.String("address", scheme+"://"+listener.Addr().String()))
		var err error
		if useTLS {
			err = server.ServeTLS(listener, gwCfg.Security.TLSCertFile, gwCfg.Security.TLSKeyFile)
		} else {
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	if dir := strings.TrimSpace(cfg.Audit.ExportDir); dir != "" {
		exportArchive(shutdownCtx, archive, dir, logger)
	}
	logger.Info("poold stopped")
	return nil
}

func applyGenesis(ctx context.Context, node *core.Node, path string, logger *slog.Logger) error {
	applied, err := node.GenesisApplied()
	if err != nil {
		return fmt.Errorf("check genesis: %w", err)
	}
	if applied {
		return nil
	}
	if path == "" {
		logger.Warn("state has no genesis and no genesis file is configured")
		return nil
	}
	spec, err := genesis.LoadSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	receipt, err := node.Genesis(ctx, spec)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied",
		slog.String("file", path),
		slog.Uint64("sequence", receipt.Sequence),
		slog.String("digest", receipt.Digest.Hex()))
	return nil
}

func buildGateway(cfg gwconfig.Config, node *core.Node, archive *audit.Store, hub *routes.Hub, logger *slog.Logger) (http.Handler, error) {
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     cfg.Auth.HMACSecret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AddressClaim:   cfg.Auth.AddressClaim,
		ScopeClaim:     cfg.Auth.ScopeClaim,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		ClockSkew:      cfg.Auth.ClockSkew,
	}, logger)

	limits := make(map[string]middleware.RateLimit)
	for id, entry := range cfg.Limits() {
		limits[id] = middleware.RateLimit{
			RequestsPerMinute: entry.RequestsPerMinute,
			Burst:             entry.Burst,
		}
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		LogRequests: cfg.Observability.LogRequests,
		Enabled:     cfg.Observability.Metrics,
	}, logger)

	return routes.New(routes.Config{
		Node:           node,
		Audit:          archive,
		Hub:            hub,
		Authenticator:  auth,
		RateLimiter:    middleware.NewRateLimiter(limits, logger),
		Observability:  obs,
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		AuditScope:     cfg.Auth.AuditScope,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
}

// exportArchive snapshots the whole archive to a timestamped parquet file.
func exportArchive(ctx context.Context, archive *audit.Store, dir string, logger *slog.Logger) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("create export dir", slog.Any("error", err))
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("receipts-%s.parquet", time.Now().UTC().Format("20060102T150405Z")))
	rows, err := archive.ExportParquet(ctx, path, audit.Query{})
	if err != nil {
		logger.Warn("export audit archive", slog.String("path", path), slog.Any("error", err))
		return
	}
	logger.Info("audit archive exported", slog.String("path", path), slog.Int("rows", rows))
}
