// Package grpc provides the gRPC transport with health and reflection services.
package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcopts "github.com/kart-io/rubric-grader/pkg/options/server/grpc"
)

// Server is the gRPC server implementation.
type Server struct {
	opts   *grpcopts.Options
	server *grpc.Server
	health *health.Server
}

// NewServer creates a new gRPC server with the given options.
func NewServer(opts *grpcopts.Options, extra ...grpc.ServerOption) *Server {
	if opts == nil {
		opts = grpcopts.NewOptions()
	}

	serverOpts := append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(opts.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(opts.MaxSendMsgSize),
	}, extra...)

	s := &Server{
		opts:   opts,
		server: grpc.NewServer(serverOpts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	if opts.EnableReflection {
		reflection.Register(s.server)
	}
	// 初始化完成前处于 NOT_SERVING
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return "grpc"
}

// RegisterService registers a service implementation.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.server.RegisterService(desc, impl)
}

// Server returns the underlying grpc.Server.
func (s *Server) Server() *grpc.Server {
	return s.server
}

// SetServing marks the server and the named services SERVING.
func (s *Server) SetServing(services ...string) {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range services {
		s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop stops the gRPC server gracefully, forcing it when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	case <-done:
		return nil
	}
}
