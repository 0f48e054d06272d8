package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/api"
	audithook "github.com/xraph/escrow/audit_hook"
	"github.com/xraph/escrow/linkstore"
	"github.com/xraph/escrow/linkstore/httpclient"
	linkmemory "github.com/xraph/escrow/linkstore/memory"
	"github.com/xraph/escrow/linkstore/server"
	"github.com/xraph/escrow/observability"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
)

// app wires the engine, its plugins and the HTTP surfaces.
type app struct {
	cfg     Config
	logger  *slog.Logger
	engine  *escrow.Escrow
	router  *mux.Router
	metrics http.Handler
	indexer *linkstore.Indexer
}

func newApp(cfg Config, s store.Store, logger *slog.Logger) (*app, error) {
	policy, err := access.ParsePolicy(cfg.ClaimPolicy)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []escrow.Option{
		escrow.WithLogger(logger),
		escrow.WithOwner(access.Address(cfg.Owner)),
		escrow.WithRelayer(access.Address(cfg.Relayer)),
		escrow.WithFeeBps(cfg.FeeBps),
		escrow.WithSettlementFee(types.Amount(cfg.SettlementFee)),
		escrow.WithClaimPolicy(policy),
		escrow.WithVerifyInterval(cfg.VerifyEvery),
		escrow.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		escrow.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		router:  mux.NewRouter(),
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	if cfg.Linkstore.Enabled() {
		var links linkstore.Store
		if cfg.Linkstore.URL != "" {
			links = httpclient.New(cfg.Linkstore.URL)
		} else {
			mem := linkmemory.New()
			server.New(mem, logger).Register(a.router)
			links = mem
		}
		a.indexer = linkstore.NewIndexer(links,
			linkstore.WithContractAddress(cfg.Linkstore.ContractAddress),
			linkstore.WithQueueSize(cfg.Linkstore.QueueSize),
			linkstore.WithLogger(logger),
		)
		opts = append(opts, escrow.WithPlugin(a.indexer))
	}

	a.engine = escrow.New(s, opts...)

	apiOpts := []api.Option{api.WithLogger(logger), api.WithBasePath(cfg.BasePath)}
	if cfg.RateLimit > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	if cfg.Auth.Mode == "jwt" {
		apiOpts = append(apiOpts, api.WithAuthenticator(api.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret))))
	} else {
		apiOpts = append(apiOpts, api.WithAuthenticator(api.HeaderAuthenticator{Header: cfg.Auth.Header}))
	}
	api.New(a.engine, apiOpts...).Register(a.router)

	return a, nil
}

// auditLog writes audit events to the structured log.
func auditLog(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"actor", ev.Actor,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
		)
		return nil
	})
}

// run starts the engine and serves until ctx is cancelled, then shuts down.
func (a *app) run(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	servers := []*http.Server{{Addr: a.cfg.Listen, Handler: a.router, ReadHeaderTimeout: 10 * time.Second}}
	if a.cfg.MetricsListen != "" {
		servers = append(servers, &http.Server{Addr: a.cfg.MetricsListen, Handler: a.metrics, ReadHeaderTimeout: 10 * time.Second})
	} else {
		a.router.Handle("/metrics", a.metrics)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			a.logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, a.engine.Stop())
		return errors.Join(errs...)
	})

	return g.Wait()
}
