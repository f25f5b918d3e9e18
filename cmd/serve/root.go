package serve

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/demo"
	cmdUtil "github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/peer"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("serve")

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a dRPC host serving the demo calculator",
		Long: `Start a dRPC host serving the demo calculator on one or more endpoints.
The configuration can be set via command line flags or environment variables.
The format of the environment variables is DRPC_<flag> (e.g. DRPC_TIMEOUT=15)`,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cmdUtil.BindCommandFlags(cmd) },
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupPeerFlags(ServeCmd, "0.0.0.0:8080")

	key := "extra-endpoints"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of additional endpoints served with the same configuration (e.g. /tmp/drpc.sock)"))

	key = "metrics"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the prometheus metrics endpoint (e.g. localhost:9090, empty = disabled)"))
}

// run starts one host per endpoint and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	config := cmdUtil.GetPeerConfig()
	connector, err := cmdUtil.GetServerConnector()
	if err != nil {
		return err
	}

	endpoints := []string{config.Transport.Endpoint}
	if extra := viper.GetString("extra-endpoints"); extra != "" {
		for _, e := range strings.Split(extra, ",") {
			endpoints = append(endpoints, strings.TrimSpace(e))
		}
	}

	var opts []peer.Option
	if strings.EqualFold(config.LogLevel, "debug") {
		opts = append(opts, peer.WithMiddleware(server.LoggingMiddleware))
	}

	calc := &demo.Calculator{}
	hosts := peer.NewHostRegistry()
	defer hosts.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(config.String())

	errCh := make(chan error, len(endpoints))
	for _, endpoint := range endpoints {
		hostConfig := config
		hostConfig.Transport.Endpoint = endpoint

		if _, ok := hosts.Get(endpoint); ok {
			Logger.Warningf("endpoint %s is listed twice, skipping", endpoint)
			continue
		}
		host, err := hosts.GetOrCreate(endpoint, func() (*peer.Host, error) {
			h := peer.NewHost(connector, hostConfig, func(net.Conn) any { return calc }, opts...)
			if err := h.Listen(); err != nil {
				return nil, err
			}
			return h, nil
		})
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", endpoint, err)
		}
		host.OnConnect(func(p *peer.Peer) {
			Logger.Debugf("peer %s connected to %s", p.RemoteAddr(), endpoint)
		})

		Logger.Infof("serving on %s (%s)", host.Addr(), connector.GetName())
		go func() {
			errCh <- host.Serve(ctx)
		}()
	}

	if addr := viper.GetString("metrics"); addr != "" {
		srv := startMetricsServer(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	select {
	case <-ctx.Done():
		Logger.Infof("shutting down, served %d calls", calc.Calls())
		return nil
	case err := <-errCh:
		return err
	}
}

// startMetricsServer exposes all metrics in the prometheus text format
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server failed: %v", err)
		}
	}()
	Logger.Infof("metrics available at http://%s/metrics", addr)
	return srv
}
