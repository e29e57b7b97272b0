package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aeranixia/Inventory-Bot/internal/alert"
	"github.com/aeranixia/Inventory-Bot/internal/api"
	"github.com/aeranixia/Inventory-Bot/internal/attach"
	"github.com/aeranixia/Inventory-Bot/internal/auth"
	"github.com/aeranixia/Inventory-Bot/internal/imaging"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringP("addr", "a", "", "listen address")
	mustBind(a.v, "server.address", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	database, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, err := a.buildServices(ctx, database, m)
	if err != nil {
		return err
	}

	secret := a.cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return err
		}
	}

	deps := api.Deps{
		DB:      database,
		Clock:   svc.clock,
		Issuer:  auth.NewIssuer(secret, a.cfg.Auth.TokenTTL, svc.clock.Source()),
		Ledger:  svc.ledger,
		Alerts:  alert.NewTracker(database, svc.clock, svc.notifier, m),
		Jobs:    svc.engine,
		Backups: svc.backups,
		Images:  imaging.NewStore(a.cfg.Images.Dir),
		Waiter:  attach.New(clockwork.NewRealClock(), a.cfg.Images.WaitTimeout, attach.DefaultMaxPending),
		Metrics: m,
	}
	if a.cfg.Metrics.Enabled {
		deps.Gatherer = reg
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return svc.engine.Start(gctx, a.cfg.Jobs.TickInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing database")
	return err
}
