// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package server runs the operational endpoints of the matchmaker: grpc
// health and the prometheus scrape endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/health"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	monitor    *health.Monitor

	grpcListener    net.Listener
	metricsListener net.Listener
}

// New builds the grpc server with tracing, metrics, logging and panic
// recovery, and the http server exposing registry.
func New(registry *prometheus.Registry, monitor *health.Monitor) *Server {
	serverMetrics := grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(grpcprom.WithHistogramBuckets(prometheus.DefBuckets)),
	)
	registry.MustRegister(serverMetrics)

	recoveryHandler := recovery.WithRecoveryHandler(func(p any) error {
		logrus.Errorf("recovered from panic in grpc handler: %v", p)
		return status.Errorf(codes.Internal, "internal error")
	})

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			serverMetrics.UnaryServerInterceptor(),
			logging.UnaryServerInterceptor(interceptorLogger(logrus.StandardLogger())),
			recovery.UnaryServerInterceptor(recoveryHandler),
		),
		grpc.ChainStreamInterceptor(
			serverMetrics.StreamServerInterceptor(),
			logging.StreamServerInterceptor(interceptorLogger(logrus.StandardLogger())),
			recovery.StreamServerInterceptor(recoveryHandler),
		),
	)
	healthpb.RegisterHealthServer(grpcServer, monitor.Server())
	serverMetrics.InitializeMetrics(grpcServer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &Server{
		grpcServer: grpcServer,
		httpServer: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		monitor:    monitor,
	}
}

// interceptorLogger adapts logrus to the grpc middleware logger.
func interceptorLogger(l logrus.FieldLogger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, level logging.Level, msg string, fields ...any) {
		f := make(logrus.Fields, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			f[fmt.Sprint(fields[i])] = fields[i+1]
		}
		entry := l.WithFields(f)

		switch level {
		case logging.LevelDebug:
			entry.Debug(msg)
		case logging.LevelInfo:
			entry.Info(msg)
		case logging.LevelWarn:
			entry.Warn(msg)
		case logging.LevelError:
			entry.Error(msg)
		default:
			entry.Info(msg)
		}
	})
}

// Listen binds both addresses.
func (s *Server) Listen(grpcAddress, metricsAddress string) error {
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on %s", grpcAddress)
	}

	metricsListener, err := net.Listen("tcp", metricsAddress)
	if err != nil {
		grpcListener.Close()
		return eris.Wrapf(err, "failed to listen on %s", metricsAddress)
	}

	s.grpcListener = grpcListener
	s.metricsListener = metricsListener

	return nil
}

func (s *Server) GRPCAddr() net.Addr {
	return s.grpcListener.Addr()
}

func (s *Server) MetricsAddr() net.Addr {
	return s.metricsListener.Addr()
}

// Serve blocks until the scope's context ends, then drains both servers.
func (s *Server) Serve(rootScope *envelope.Scope) error {
	if s.grpcListener == nil || s.metricsListener == nil {
		return eris.New("server is not listening")
	}

	group, ctx := errgroup.WithContext(rootScope.Ctx)

	group.Go(func() error {
		rootScope.Log.Infof("grpc server listening on %s", s.grpcListener.Addr())
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return eris.Wrap(err, "grpc server failed")
		}
		return nil
	})
	group.Go(func() error {
		rootScope.Log.Infof("metrics server listening on %s", s.metricsListener.Addr())
		if err := s.httpServer.Serve(s.metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "metrics server failed")
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		s.monitor.Shutdown()
		s.grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
