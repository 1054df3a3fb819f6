// Command lifecycled loads a service configuration snapshot, brings the
// eager services up, exposes metrics and tears everything down on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	services "github.com/centraunit/goallin_lifecycle"
	"github.com/centraunit/goallin_lifecycle/config"
	"github.com/centraunit/goallin_lifecycle/logging"
	"github.com/centraunit/goallin_lifecycle/metrics"
	"github.com/centraunit/goallin_lifecycle/request"
)

var (
	configPath      = flag.String("config", "services.yaml", "Path to the service configuration (.yaml or .properties)")
	logVerbosity    = flag.Int("v", logging.DEFAULT, "number for the log level verbosity")
	development     = flag.Bool("development", false, "Use human readable development logging")
	metricsAddr     = flag.String("metrics-addr", ":9090", "Address the /metrics endpoint listens on; empty disables it")
	initTimeout     = flag.Duration("init-timeout", 0, "Upper bound for a single service init hook; 0 means no bound")
	shutdownTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Upper bound for the whole shutdown sweep")
)

func main() {
	flag.Parse()

	logger, err := logging.NewLogger(*logVerbosity, *development)
	if err != nil {
		os.Stderr.WriteString("lifecycled: " + err.Error() + "\n")
		os.Exit(1)
	}
	setupLog := logger.WithName("setup")

	flags := make(map[string]any)
	flag.VisitAll(func(f *flag.Flag) {
		flags[f.Name] = f.Value
	})
	setupLog.Info("Flags processed", "flags", flags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logging.Fatal(setupLog, err, "Lifecycle runner exited with error")
	}
}

func run(ctx context.Context, logger logr.Logger) error {
	setupLog := logger.WithName("setup")

	catalog := services.NewCatalog()
	if err := request.Bind(catalog); err != nil {
		return err
	}

	descs, err := config.LoadFile(*configPath)
	if err != nil {
		setupLog.Error(err, "Failed to load configuration", "path", *configPath)
		return err
	}

	registry := services.NewRegistry(catalog,
		services.WithLogger(logger),
		services.WithInitTimeout(*initTimeout),
	)
	services.SetDefault(registry)
	if err := registry.RegisterAll(descs); err != nil {
		setupLog.Error(err, "Failed to register services")
		return err
	}
	setupLog.Info("Services registered", "count", len(descs), "names", registry.Names())

	metrics.Register(prometheus.DefaultRegisterer)

	if err := registry.InitializeEager(ctx); err != nil {
		// Whatever came up before the failure still gets torn down.
		shutdown(registry, setupLog)
		return err
	}
	setupLog.Info("Eager services initialized", "order", registry.InitOrder())

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			setupLog.Info("Serving metrics", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		setupLog.Info("Shutting down")
		if srv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}
		return nil
	})

	serveErr := g.Wait()
	if err := shutdown(registry, setupLog); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func shutdown(registry *services.Registry, logger logr.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := registry.Shutdown(ctx); err != nil {
		logger.Error(err, "Shutdown completed with errors")
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
