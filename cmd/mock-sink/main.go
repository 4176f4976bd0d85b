// Command mock-sink serves the sink connector stream protocol with the
// in-memory state machine, for local harness runs and CI. The file
// connector kind actually persists rows; every other kind only enforces
// the protocol.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/risingwavelabs/connector-harness/pkg/mocksink"
)

func main() {
	addr := flag.String("addr", ":50051", "listen address for the connector service")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for Prometheus metrics")
	flag.Parse()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		slog.Error("failed to listen", "addr", *addr, "error", err)
		os.Exit(1)
	}

	mocksink.ServeMetrics(*metricsAddr)
	srv := mocksink.NewGRPCServer(mocksink.New(slog.Default()))

	slog.Info("mock sink listening", "addr", *addr, "metrics_addr", *metricsAddr)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down mock sink...")
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("mock sink stopped")
}
