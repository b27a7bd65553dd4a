// Command syncstartd launches the children declared in a manifest, waiting
// for each one's phase-2 readiness acknowledgment, then serves metrics until
// it is signalled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jrepp/syncstart/pkg/observability"
	"github.com/jrepp/syncstart/pkg/supervisor"
	"github.com/jrepp/syncstart/pkg/syncstart"
	"github.com/jrepp/syncstart/pkg/workers"
)

const envPrefix = "SYNCSTARTD"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "syncstartd",
		Short:         "Start supervised workers and wait for their readiness handshake",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("children", "children.yaml", "path to the children manifest")
	flags.Duration("default-timeout", syncstart.DefaultStartTimeout, "readiness timeout for children without start_timeout")
	flags.Int("metrics-port", 9091, "Prometheus metrics port (0 disables)")
	flags.Bool("trace", false, "enable OpenTelemetry tracing (stdout exporter)")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.BindPFlags(flags)

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	manifestPath := v.GetString("children")
	defaultTimeout := v.GetDuration("default-timeout")
	if defaultTimeout < 0 {
		return errors.New("default-timeout must be non-negative")
	}

	workers.RegisterAll()

	manifest, err := supervisor.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	metrics := syncstart.NewPrometheusMetricsCollector("syncstart")
	obs := observability.NewManager(&observability.Config{
		ServiceName:    "syncstartd",
		ServiceVersion: "0.1.0",
		MetricsPort:    v.GetInt("metrics-port"),
		EnableTracing:  v.GetBool("trace"),
	}, metrics.Registry())

	if err := obs.Initialize(ctx); err != nil {
		return err
	}
	defer obs.Shutdown(context.Background())

	sup := supervisor.New(supervisor.WithLogger(logger))
	defer sup.Shutdown(context.Background())

	starterOpts := []syncstart.Option{
		syncstart.WithMetricsCollector(metrics),
		syncstart.WithDefaultTimeout(defaultTimeout),
	}
	if tp := obs.TracerProvider(); tp != nil {
		starterOpts = append(starterOpts, syncstart.WithTracerProvider(tp))
	}
	starter := syncstart.NewStarter(sup, starterOpts...)

	for _, child := range manifest.Children {
		timeout := child.StartTimeout.Std()
		if timeout == 0 {
			timeout = defaultTimeout
		}

		begin := time.Now()
		started, err := starter.StartChildTimeout(ctx, child.Spec(), timeout)
		if err != nil {
			logger.Error("child failed to start",
				"child_id", child.ID,
				"worker", child.Worker,
				"error", err,
				"timed_out", syncstart.IsTimeout(err))
			return fmt.Errorf("start child %s: %w", child.ID, err)
		}

		logger.Info("child ready",
			"child_id", started.Child.ID(),
			"uid", started.Child.UID(),
			"has_info", started.HasInfo,
			"elapsed", time.Since(begin))
	}

	logger.Info("all children ready", "count", len(manifest.Children))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sup.Shutdown(shutdownCtx)
}
