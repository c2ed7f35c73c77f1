package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/cache"
	"github.com/sanket-telunagi/k8sfs/internal/collector"
	"github.com/sanket-telunagi/k8sfs/internal/config"
	"github.com/sanket-telunagi/k8sfs/internal/exporter"
	"github.com/sanket-telunagi/k8sfs/internal/k8s/client"
	"github.com/sanket-telunagi/k8sfs/internal/kube"
	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/orchestrator"
	"github.com/sanket-telunagi/k8sfs/internal/pool"
	"github.com/sanket-telunagi/k8sfs/internal/retry"
	"github.com/sanket-telunagi/k8sfs/internal/timeseries"
)

// app holds the wired collection pipeline
type app struct {
	logger       *zap.Logger
	cfg          *config.Config
	api          kube.ClusterAPI
	orchestrator *orchestrator.Orchestrator
	exporter     exporter.Exporter
	store        *exporter.SnapshotStore
	history      *exporter.History
	metrics      *metrics.Prometheus
}

func newApp(logger *zap.Logger, cfg *config.Config) (*app, error) {
	factory, err := client.NewFactory(logger.Named("factory"), client.Options{
		Mode:           client.ClientMode(cfg.Kubernetes.Mode),
		KubeconfigPath: cfg.Kubernetes.KubeconfigPath,
		Context:        cfg.Kubernetes.Context,
		Timeout:        cfg.Kubernetes.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	api := kube.NewClient(logger.Named("kube"), factory.Client(), kube.Options{
		RequestTimeout: cfg.Kubernetes.RequestTimeout,
		QPS:            cfg.Kubernetes.QPS,
		Burst:          cfg.Kubernetes.Burst,
		Retry: retry.Policy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.Delay,
			Backoff:      cfg.Retry.Backoff,
			Logger:       logger.Named("retry"),
		},
	})

	return buildApp(logger, cfg, api, os.Stdout), nil
}

// buildApp wires the pipeline on top of an existing cluster API
func buildApp(logger *zap.Logger, cfg *config.Config, api kube.ClusterAPI, console io.Writer) *app {
	var store *cache.Store
	if cfg.CacheEnabled() {
		store = cache.NewStore(cfg.Cache.TTL)
	} else {
		store = cache.NewStore(0, cache.Disabled())
	}

	prom := metrics.NewPrometheus()
	pods := collector.NewPodCollector(logger.Named("collector"), api, store, prom)
	claims := collector.NewClaimCollector(logger.Named("collector"), api, store, prom)
	nodes := kube.NewNodesAdapter(logger.Named("nodes"), api)

	workers := pool.New(logger.Named("pool"), cfg.Collection.MaxWorkers, cfg.Collection.Timeout)
	orch := orchestrator.New(logger.Named("orchestrator"), workers, pods, claims, nodes, prom,
		orchestrator.WithTimeout(cfg.Collection.Timeout))

	snapshots := exporter.NewSnapshotStore()
	history := exporter.NewHistory(logger.Named("history"), timeseries.NewMemStore(timeseries.DefaultConfig()))
	exporters := []exporter.Exporter{snapshots, history}
	if cfg.HasOutput(config.OutputConsole) && console != nil {
		exporters = append(exporters, exporter.NewConsole(console))
	}
	if cfg.HasOutput(config.OutputJSON) {
		exporters = append(exporters, exporter.NewJSONFile(logger.Named("export"), cfg.Export.OutputDir, cfg.Export.JSONFilename))
	}
	if cfg.HasOutput(config.OutputPrometheus) {
		exporters = append(exporters, exporter.NewNodeGauges(logger.Named("export"), prom))
	}

	return &app{
		logger:       logger,
		cfg:          cfg,
		api:          api,
		orchestrator: orch,
		exporter:     exporter.NewMulti(logger.Named("export"), exporters...),
		store:        snapshots,
		history:      history,
		metrics:      prom,
	}
}

// namespaces resolves the namespaces to collect in this cycle
func (a *app) namespaces(ctx context.Context) ([]string, error) {
	if !a.cfg.Collection.AllNamespaces {
		return a.cfg.Collection.Namespaces, nil
	}
	names, err := a.api.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	return names, nil
}

// cycle runs one collection and hands the result to every exporter
func (a *app) cycle(ctx context.Context) (exporter.Cycle, error) {
	names, err := a.namespaces(ctx)
	if err != nil {
		return exporter.Cycle{}, err
	}

	specs := a.cfg.NamespaceSpecs(names)
	startedAt := time.Now().UTC()
	snapshot := a.orchestrator.CollectAll(ctx, specs)
	cycle := exporter.NewCycle(snapshot, startedAt, time.Now().UTC())

	a.logger.Info("Collection cycle completed",
		zap.String("cycleId", cycle.ID),
		zap.Int("namespaces", len(snapshot)),
		zap.Duration("elapsed", cycle.CompletedAt.Sub(startedAt)))

	if err := a.exporter.Export(ctx, cycle); err != nil {
		return cycle, fmt.Errorf("failed to export cycle %s: %w", cycle.ID, err)
	}
	return cycle, nil
}

func (a *app) runOnce(ctx context.Context) error {
	_, err := a.cycle(ctx)
	return err
}

// watch collects every interval until ctx is cancelled. Export failures are logged and
// the loop keeps going. The HTTP server runs when the prometheus output is enabled.
func (a *app) watch(ctx context.Context) error {
	serverErr := make(chan error, 1)
	if a.cfg.HasOutput(config.OutputPrometheus) {
		server := exporter.NewServer(a.logger.Named("server"), a.cfg.Export.MetricsAddr, a.store, a.metrics,
			exporter.WithHistory(a.history.Store()))
		go func() {
			serverErr <- server.Start(ctx)
		}()
	}

	interval := a.cfg.Collection.WatchInterval
	if interval <= 0 {
		interval = config.Default().Collection.WatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("Watching", zap.Duration("interval", interval))
	for {
		if _, err := a.cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Collection cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return waitServer(serverErr, a.cfg.HasOutput(config.OutputPrometheus))
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func waitServer(serverErr <-chan error, started bool) error {
	if !started {
		return nil
	}
	return <-serverErr
}
