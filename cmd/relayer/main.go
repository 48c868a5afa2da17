// Command relayer is the process-level entrypoint: it parses
// configuration, wires the Registry, FilterPolicy and Supervisor
// together, and runs the reactor until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/oasislabs/relayer/chain"
	"github.com/oasislabs/relayer/config"
	"github.com/oasislabs/relayer/filter"
	"github.com/oasislabs/relayer/internal/logging"
	"github.com/oasislabs/relayer/registry"
	"github.com/oasislabs/relayer/spawn"
	"github.com/oasislabs/relayer/supervisor"
	"github.com/oasislabs/relayer/telemetry"
	"github.com/oasislabs/relayer/worker"
)

const (
	cfgConfigFile  = "config"
	cfgMetricsAddr = "metrics.addr"
	cfgCacheSize   = "filter.cache_size"
)

var (
	rootCmd = &cobra.Command{
		Use:   "relayer",
		Short: "Inter-chain relayer supervisor",
		Run:   runSupervisor,
	}

	log = logging.GetLogger("cmd")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String(cfgConfigFile, "relayer.yaml", "path to the relayer configuration file")
	rootCmd.Flags().String(cfgMetricsAddr, "", "address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().Int(cfgCacheSize, 256, "FilterPolicy permission cache size")
	_ = viper.BindPFlags(rootCmd.Flags())
}

func runSupervisor(cmd *cobra.Command, args []string) {
	cfgPath := viper.GetString(cfgConfigFile)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error("failed to load configuration", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	metrics := telemetry.New()

	reg := registry.New(cfg, mockSpawner)

	policy, err := filter.New(cfg, reg, viper.GetInt(cfgCacheSize))
	if err != nil {
		log.Error("failed to construct filter policy", "err", err)
		os.Exit(1)
	}

	sup := supervisor.New(cfg, reg, policy, metrics, worker.DefaultBody(nil))

	sc := spawn.New(spawn.Startup, cfg, reg, policy, sup.Workers())
	sc.SpawnWorkers(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if addr := viper.GetString(cfgMetricsAddr); addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr, metrics) })
	}

	log.Info("supervisor starting", "chains", reg.Size())
	if err := sup.Start(); err != nil {
		log.Error("supervisor failed to start", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		sup.Stop()
	}()

	<-sup.Quit()
	log.Info("supervisor stopped")
	cancel()

	if err := g.Wait(); err != nil {
		log.Error("exiting on error", "err", err)
		os.Exit(1)
	}
}

// mockSpawner wires every configured chain to an in-memory chain.Mock.
// Dialing a real chain runtime (RPC, signing, light-client
// verification) is a collaborator outside this repository's scope
// (§1); operators embedding this package supply their own Spawner.
func mockSpawner(cc config.ChainConfig) (chain.Handle, error) {
	return chain.NewMock(cc.ID), nil
}

func serveMetrics(ctx context.Context, addr string, m *telemetry.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
