// Command mediaproxy is the minimal process entrypoint wiring the core
// packages together: a root cancellation context, the three managers,
// the metrics collector fanned out to Prometheus and the agent, and the
// agent command stream driving the reconciler. Grounded on
// original_source/media-proxy/src/mesh/main.cc's wiring order, restated
// idiomatically the way the teacher's own cmd/authn/main.go parses
// flags, installs a signal handler, and runs until told to stop.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/agentclient"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/manager"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry/promsink"
)

var (
	agentURL  string
	metricsAddr string
)

func init() {
	flag.StringVar(&agentURL, "agent", "http://127.0.0.1:8990", "agent command/metrics endpoint base URL")
	flag.StringVar(&metricsAddr, "metrics-listen", ":9400", "address the Prometheus /metrics endpoint listens on")
}

func main() {
	flag.Parse()

	root := concurrency.Background()
	installSignalHandler(root)

	localMgr := manager.NewLocalManager()
	bridgesMgr := manager.NewBridgesManager()
	metricsReg := telemetry.NewRegistry()
	groupMgr := manager.NewGroupManager(localMgr, bridgesMgr, metricsReg)

	promSink := promsink.New(prometheus.DefaultRegisterer, "mediaproxy")
	agent := agentclient.NewClient(agentURL)
	sink := telemetry.ReportSinkFunc(func(batch []telemetry.Metric) {
		promSink.Report(batch)
		agent.Report(batch)
	})

	collector := telemetry.NewCollector(metricsReg, localMgr, sink, "collector")
	go collector.Run(root)

	go serveMetrics(metricsAddr)

	xlog.Infof("mediaproxy started, agent=%s metrics=%s", agentURL, metricsAddr)

	err := agent.Stream(root, func(cmd agentclient.Command) error {
		switch cmd.Kind {
		case agentclient.CommandApplyConfig:
			// Acknowledge before applying, §6.1: the ack path must never
			// wait on the reconciler's locks.
			if err := agent.Ack(root, cmd.ID); err != nil {
				xlog.Warningf("ack command %q: %v", cmd.ID, err)
			}
			if cmd.Config == nil {
				return nil
			}
			return groupMgr.ApplyConfig(root, *cmd.Config)

		case agentclient.CommandDebug:
			xlog.Infof("agent debug: %s", cmd.Debug)
			return agent.Ack(root, cmd.ID)
		}
		return nil
	})
	if err != nil {
		xlog.Errorf("agent command stream ended: %v", err)
	}

	shutdown(root, collector, groupMgr, bridgesMgr, localMgr)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		xlog.Errorf("metrics listener stopped: %v", err)
	}
}

// installSignalHandler cancels root on SIGINT/SIGTERM, unblocking
// agent.Stream and every Sleep loop hanging off root.
func installSignalHandler(root *concurrency.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		xlog.Infof("received signal %v, shutting down", sig)
		root.Cancel()
	}()
}

// shutdown tears every component down in dependency order: groups
// first (they hold links into local connections and bridges), then
// bridges, then local connections, joining the bridge manager's
// structured shutdown tasks before the collector stops sampling.
func shutdown(root *concurrency.Context, collector *telemetry.Collector, groupMgr *manager.GroupManager, bridgesMgr *manager.BridgesManager, localMgr *manager.LocalManager) {
	groupMgr.Shutdown(root)
	bridgesMgr.Shutdown(root)
	localMgr.Shutdown(root)
	collector.Stop()
	xlog.Infof("mediaproxy stopped")
}
