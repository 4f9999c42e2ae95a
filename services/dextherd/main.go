package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dexther/core/events"
	"dexther/core/state"
	nativecommon "dexther/native/common"
	"dexther/native/dexther"
	"dexther/observability/logging"
	"dexther/observability/metrics"
	telemetry "dexther/observability/otel"
	"dexther/services/dextherd/assets"
	"dexther/services/dextherd/config"
	"dexther/services/dextherd/server"
	"dexther/services/dextherd/storage"
	kvstore "dexther/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/dextherd/config.yaml", "path to dextherd configuration file (.yaml or .toml)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		log.Fatalf("dextherd: %v", err)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog := logging.New(logging.Config{
		Service:    "dextherd",
		Env:        cfg.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closeLog.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "dextherd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := openState(cfg.State)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()
	mgr := state.NewManager(db)

	specs, err := assetSpecs(cfg.Assets)
	if err != nil {
		return err
	}
	book, err := assets.NewBook(specs)
	if err != nil {
		return err
	}
	registry := dexther.NewRegistry()
	if err := book.Register(registry); err != nil {
		return err
	}

	broadcaster := events.NewBroadcaster()
	engine := dexther.NewEngine(dexther.NewDomain(cfg.ChainIDBig(), cfg.VaultAddress()), registry)
	engine.SetState(mgr)
	engine.SetPauses(nativecommon.NewStaticPauses(cfg.PausedModules...))
	engine.SetEmitter(events.Multi{broadcaster, logEmitter{logger: logger}})
	if err := engine.Bootstrap(cfg.AdminAddress(), cfg.TreasuryAddress(), cfg.FeeBps); err != nil {
		return fmt.Errorf("bootstrap engine: %w", err)
	}

	receipts, err := storage.Open(cfg.Receipts.Driver, cfg.Receipts.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = receipts.Close() }()

	srv, err := server.New(server.Config{
		Engine:      engine,
		State:       mgr,
		Book:        book,
		Receipts:    receipts,
		Broadcaster: broadcaster,
		Metrics:     metrics.Dexther(),
		Logger:      logger,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.Secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(srv.Handler(), "dextherd"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("dextherd listening",
			"listen", cfg.ListenAddress,
			"domain", engine.DomainSeparator().Hex(),
			"vault", engine.Vault().Hex())
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func openState(cfg config.StateConfig) (kvstore.Database, error) {
	switch cfg.Backend {
	case "leveldb":
		return kvstore.NewLevelDB(cfg.Path)
	case "bolt":
		return kvstore.NewBoltDB(cfg.Path)
	default:
		return kvstore.NewMemDB(), nil
	}
}

func assetSpecs(in []config.AssetConfig) ([]assets.Spec, error) {
	specs := make([]assets.Spec, 0, len(in))
	for i, asset := range in {
		kind, err := dexther.ParseAssetKind(asset.Kind)
		if err != nil {
			return nil, fmt.Errorf("assets[%d]: %w", i, err)
		}
		specs = append(specs, assets.Spec{
			Kind:    kind,
			Address: ethcommon.HexToAddress(strings.TrimSpace(asset.Address)),
			Symbol:  asset.Symbol,
		})
	}
	return specs, nil
}

// logEmitter writes every committed engine event to the service log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	payload := events.Payload(evt)
	if payload == nil {
		return
	}
	args := make([]any, 0, 2+2*len(payload.Attributes))
	args = append(args, "component", "events")
	for k, v := range payload.Attributes {
		args = append(args, k, v)
	}
	l.logger.Debug(payload.Type, args...)
}
