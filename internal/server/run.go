// gRPC server construction and the serve loop with graceful shutdown
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
)

const maxMessageSize = 100 * 1024 * 1024

// GRPCOptions configures the gRPC server
type GRPCOptions struct {
	// RateLimit is requests per second; 0 disables limiting
	RateLimit float64
	Burst     int
}

// NewGRPCServer builds a gRPC server with the EntityStore service, the
// standard health service and reflection registered
func NewGRPCServer(srv *Server, opts GRPCOptions, m *metrics.Metrics, log *logger.Logger) *grpc.Server {
	if log == nil {
		log = logger.Nop()
	}

	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDInterceptor(),
		GrpcMetricsInterceptor(m, log),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		interceptors = append(interceptors, RateLimitInterceptor(rate.NewLimiter(rate.Limit(opts.RateLimit), burst), m, log))
	}

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
	)
	RegisterEntityStoreServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)
	return gs
}

// RunOptions configures Run
type RunOptions struct {
	Port int
	GRPC GRPCOptions
}

// Run serves gRPC on lis (and observability when configured) until ctx is
// cancelled, then stops both gracefully
func Run(ctx context.Context, srv *Server, lis net.Listener, opts RunOptions, obs *ObservabilityServer, m *metrics.Metrics, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	gs := NewGRPCServer(srv, opts.GRPC, m, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.LogServerReady(opts.Port)
		if err := gs.Serve(lis); err != nil {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil
	})

	if obs != nil {
		g.Go(obs.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()

		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			gs.Stop()
		}

		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return obs.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
