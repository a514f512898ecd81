package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/whimxiqal/journey-sub005/internal/config"
	"github.com/whimxiqal/journey-sub005/internal/observerproto"
	"github.com/whimxiqal/journey-sub005/internal/sched"
	"github.com/whimxiqal/journey-sub005/internal/session"
	"github.com/whimxiqal/journey-sub005/internal/transport/httpapi"
	"github.com/whimxiqal/journey-sub005/internal/transport/observer"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event stream and search scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", "", "http listen address (overrides server.addr)")
	return cmd
}

const shutdownTimeout = 5 * time.Second

func serve(parent context.Context, cfg config.Config) error {
	logger := newLogger("server")

	rt, err := buildRuntime(cfg, runtimeOpts{Server: true, LoadSnapshot: true}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}()

	loop := sched.NewLoop(cfg.Server.TickRateHz, newLogger("sched"))
	mgr := session.NewManager(rt.env())

	api := httpapi.NewServer(mgr, rt.ports, loop, httpapi.Options{
		StepsPerTick:       cfg.Search.StepsPerTick,
		Async:              cfg.Search.Async,
		CompletionDistance: cfg.Search.CompletionDistance,
		Journey:            cfg.Journey.Options(),
		AnimatePeriodTicks: uint64(cfg.Journey.AnimatePeriodTicks),
	}, newLogger("http"))

	domains := make([]string, 0, len(cfg.Domains))
	for _, d := range cfg.Domains {
		domains = append(domains, d.ID)
	}
	obs := observer.NewServer(rt.hub, observerproto.BootstrapResponse{
		TickRateHz: cfg.Server.TickRateHz,
		Domains:    domains,
	}, newLogger("observer"))
	obs.AllowRemote = cfg.Server.AllowRemoteObservers

	api.Metrics = rt.metrics.Handler()
	api.Events = obs.WSHandler()
	api.EventsBootstrap = obs.BootstrapHandler()
	api.Waypoints = rt.hub.PublishWaypoints

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("listening on %s (%d Hz)", cfg.Server.Addr, cfg.Server.TickRateHz)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
		}
		loop.Stop()
		return nil
	})
	runErr := g.Wait()

	for _, s := range mgr.Sessions() {
		s.Cancel()
	}
	loop.Wait()

	if err := rt.saveSnapshot(); err != nil {
		logger.Printf("snapshot: %v", err)
	}
	if st := rt.hub.Dropped(); st > 0 {
		logger.Printf("observer dropped %d messages", st)
	}
	return runErr
}
