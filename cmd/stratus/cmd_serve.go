package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/telemetry"
)

var (
	serveCacheInterval  time.Duration
	serveScrapeInterval time.Duration
	serveMailInterval   time.Duration
	serveMetricsPort    int
	serveOTELEndpoint   string
	serveOTELInsecure   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console schedulers",
	Long: `Run the background schedulers: instance-cache refresh, catalog and
pricing scrapes, inbound-email sync with DMARC ingestion, plus a
Prometheus metrics endpoint. Shuts down cleanly on SIGTERM/SIGINT.`,
	Example: `  stratus serve
  stratus serve --cache-interval 30s --metrics-port 9090
  stratus serve --scrape-interval 12h --mail-interval 10m`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().DurationVar(&serveCacheInterval, "cache-interval", time.Minute, "Instance cache refresh interval")
	serveCmd.Flags().DurationVar(&serveScrapeInterval, "scrape-interval", 24*time.Hour, "Catalog and pricing scrape interval")
	serveCmd.Flags().DurationVar(&serveMailInterval, "mail-interval", 15*time.Minute, "Inbound-email sync interval")
	serveCmd.Flags().IntVar(&serveMetricsPort, "metrics-port", 2112, "Metrics HTTP server port")
	serveCmd.Flags().StringVar(&serveOTELEndpoint, "otel-endpoint", "", "OTLP trace collector endpoint")
	serveCmd.Flags().BoolVar(&serveOTELInsecure, "otel-insecure", false, "Disable TLS towards the OTLP collector")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTELEndpoint:   serveOTELEndpoint,
		Insecure:       serveOTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := telemetry.NewLogger("serve")

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGTERM, syscall.SIGINT, os.Interrupt))

	addTicker(&g, ctx, "instance cache", serveCacheInterval, func(ctx context.Context) error {
		_, err := a.orch.FillInstanceList(ctx)
		return err
	})
	addTicker(&g, ctx, "catalog scrape", serveScrapeInterval, newScraper(a).Run)
	addTicker(&g, ctx, "pricing scrape", serveScrapeInterval, newPricingRefresher(a).Run)
	if a.mailroom != nil {
		addTicker(&g, ctx, "mail sync", serveMailInterval, func(ctx context.Context) error {
			if err := a.mailroom.SyncDB(ctx); err != nil {
				return err
			}
			return a.mailroom.ProcessDmarc(ctx)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", serveMetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		logger.Info().Int("port", serveMetricsPort).Msg("metrics server listening")
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	logger.Info().Msg("schedulers running")
	err = g.Run()
	if _, ok := err.(run.SignalError); ok {
		logger.Info().Msg("signal received, shut down")
		return nil
	}
	return err
}

// addTicker registers a periodic actor that runs fn once at startup and
// then on every tick until the group is interrupted.
func addTicker(g *run.Group, parent context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithCancel(parent)
	logger := telemetry.NewLogger("scheduler")
	g.Add(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := fn(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}, func(error) {
		cancel()
	})
}
