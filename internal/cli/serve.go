package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/entitystore/internal/server"
	"github.com/nainya/entitystore/pkg/query"
)

// ServeOptions overrides server settings from the config file
type ServeOptions struct {
	Port        int
	MetricsPort int
}

// NewServeCommand runs the gRPC server until interrupted. The index is
// loaded at startup and saved on shutdown.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "gRPC port (overrides server.port)")
	cmd.Flags().IntVar(&opts.MetricsPort, "metrics-port", -1, "observability port, 0 disables (overrides server.metrics_port)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions, opts *ServeOptions) error {
	e, err := openEnv(ctx, rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	port := e.cfg.Server.Port
	if opts.Port > 0 {
		port = opts.Port
	}
	metricsPort := e.cfg.Server.MetricsPort
	if opts.MetricsPort >= 0 {
		metricsPort = opts.MetricsPort
	}

	e.log.LogServerStart(port, e.backend.Name)

	exec := query.NewExecutor(query.WithLogger(e.log), query.WithMetrics(e.metrics))
	srv := server.NewServer(e.index, exec, e.cfg.Index.Key, e.log)
	if err := srv.LoadIndex(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	var obs *server.ObservabilityServer
	if metricsPort > 0 {
		obs = server.NewObservabilityServer(metricsPort, e.log, e.reg, srv.Ready)
	}

	runErr := server.Run(ctx, srv, lis, server.RunOptions{
		Port: port,
		GRPC: server.GRPCOptions{RateLimit: e.cfg.Server.RateLimit, Burst: e.cfg.Server.Burst},
	}, obs, e.metrics, e.log)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return errors.Join(runErr, srv.SaveIndex(saveCtx))
}
