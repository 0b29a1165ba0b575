package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/agentpool/pkg/admission"
	"github.com/cuemby/agentpool/pkg/backend"
	"github.com/cuemby/agentpool/pkg/catalog"
	"github.com/cuemby/agentpool/pkg/coordinator"
	"github.com/cuemby/agentpool/pkg/graph"
	"github.com/cuemby/agentpool/pkg/log"
	"github.com/cuemby/agentpool/pkg/memmodel"
	"github.com/cuemby/agentpool/pkg/metrics"
	"github.com/cuemby/agentpool/pkg/registry"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration core: boot main backends, serve metrics, wait for shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	serveLog := log.WithComponent("serve")

	models, err := catalog.LoadModelCatalog(cfg.Catalog.ModelPath)
	if err != nil {
		return fmt.Errorf("load model catalog: %w", err)
	}

	arch := memmodel.Detect(ctx, memmodel.DetectOptions{CatalogHasRemoteEntry: models.HasRemoteEntry()})
	var overrides *memmodel.Overrides
	if cfg.Memory.MaxOverride != nil || cfg.Memory.ReserveOverride != nil {
		overrides = &memmodel.Overrides{Max: cfg.Memory.MaxOverride, Reserve: cfg.Memory.ReserveOverride}
	}
	if cfg.Memory.ArchitectureOverride != "" {
		arch = memmodel.Architecture(cfg.Memory.ArchitectureOverride)
	}
	accountant := memmodel.New(arch, overrides)

	reg := registry.New()
	adm := admission.New()
	dispatcher := backend.NewDispatcher(log.WithComponent("backend"))

	coord := coordinator.New(coordinator.Config{
		Registry:        reg,
		Accountant:      accountant,
		Admission:       adm,
		Backend:         dispatcher,
		Log:             log.WithComponent("coordinator"),
		HealthTimeout:   cfg.Backend.HealthTimeoutDuration(),
		ShutdownTimeout: cfg.Backend.ShutdownTimeoutDuration(),
	})

	metrics.RegisterComponent("registry", true, "")
	metrics.RegisterComponent("admission", true, "")
	metrics.RegisterComponent("backend", true, "")
	metrics.RegisterComponent("coordinator", true, "")

	for _, entry := range models.List() {
		if !entry.IsMainAgent {
			continue
		}
		endpoint := endpointFromModelEntry(entry)
		modelLog := log.WithModelKey(serveLog, endpoint.ModelKey())
		modelLog.Info().Str("model", entry.ID).Msg("starting main backend")
		if _, err := coord.StartMainBackend(ctx, endpoint); err != nil {
			modelLog.Error().Err(err).Str("model", entry.ID).Msg("main backend failed to start")
			metrics.UpdateComponent("backend", false, err.Error())
		}
	}

	collector := metrics.NewCollector(reg, accountant, adm)
	collector.Start()
	defer collector.Stop()

	var graphStore graph.Store
	var graphScheduler *graph.Scheduler
	if cfg.Graph.Enabled {
		store, err := graph.NewBoltStore(cfg.Graph.DataDir)
		if err != nil {
			return fmt.Errorf("open graph store: %w", err)
		}
		defer store.Close()
		graphStore = store
		metrics.RegisterComponent("graph", true, "")

		graphScheduler = graph.NewScheduler(graphStore, graph.SchedulerConfig{
			HalfLife:               cfg.Graph.HalfLifeDuration(),
			CleanupInterval:        cfg.Graph.CleanupIntervalDuration(),
			LowConfidenceThreshold: cfg.Graph.LowConfidenceThreshold,
			MaxNodeAge:             cfg.Graph.MaxNodeAgeDuration(),
		}, log.WithComponent("graph"))
		graphScheduler.Start()
		defer graphScheduler.Stop()
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", metrics.HealthHandler())
		mux.Handle("/readyz", metrics.ReadyHandler())
		mux.Handle("/livez", metrics.LivenessHandler())
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveLog.Error().Err(err).Msg("metrics server stopped unexpectedly")
			}
		}()
		serveLog.Info().Str("addr", cfg.Metrics.ListenAddr).Msg("metrics endpoint listening")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	serveLog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	coord.StopAll(shutdownCtx, true)

	return nil
}

// endpointFromModelEntry builds the Endpoint StartMainBackend needs from a
// persisted model catalog row. Local-exec providers leave BaseURL empty;
// the backend driver assigns the real address once a port is allocated.
func endpointFromModelEntry(e *catalog.ModelCatalogEntry) types.Endpoint {
	ep := types.Endpoint{
		Provider: e.Provider,
		Model:    e.ModelPathOrHostedID,
		APIKey:   e.APIKey,
		Server:   e.Server,
		Hints:    e.Hints,
	}
	if e.Server != nil && e.Server.Host != "" {
		ep.BaseURL = fmt.Sprintf("http://%s:%d", e.Server.Host, e.Server.Port)
	}
	return ep
}
