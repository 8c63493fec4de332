package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"serverPortal/internal/db"
)

// ServiceName is the health service name probes can ask for besides "".
const ServiceName = "serverportal"

const defaultProbeInterval = 10 * time.Second

// Options configure StartGRPC.
type Options struct {
	Address       string
	ProbeInterval time.Duration
	Logger        *zap.Logger
}

// StartGRPC serves grpc.health.v1.Health on opts.Address. The status of both
// the overall server and ServiceName follows a periodic database ping.
// It returns the bound address and a shutdown function.
func StartGRPC(opts Options, bdb *bun.DB) (string, func(context.Context) error, error) {
	addr := opts.Address
	if addr == "" {
		addr = ":50051"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	p := &prober{db: bdb, health: hs, logger: logger}
	p.probe(context.Background())

	probeCtx, stopProbe := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.run(probeCtx, interval)
	}()
	go func() {
		defer wg.Done()
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()

	return lis.Addr().String(), func(ctx context.Context) error {
		stopProbe()
		hs.Shutdown()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		var err error
		select {
		case <-done:
		case <-ctx.Done():
			srv.Stop()
			<-done
			err = ctx.Err()
		}
		wg.Wait()
		return err
	}, nil
}

// prober flips the health status as the database comes and goes.
type prober struct {
	db     *bun.DB
	health *health.Server
	logger *zap.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

func (p *prober) run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.probe(ctx)
		}
	}
}

func (p *prober) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := db.Ping(ctx, p.db); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if p.last != status {
			p.logger.Warn("database ping failed", zap.Error(err))
		}
	}
	if p.last != status {
		p.logger.Info("health status changed", zap.String("status", status.String()))
		p.last = status
	}
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(ServiceName, status)
}
