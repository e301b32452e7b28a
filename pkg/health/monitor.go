// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package health tracks the dependencies the matchmaker fails closed on.
package health

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
)

// Monitor reports each dependency as its own grpc health service and as a
// gauge. A degraded dependency never takes the whole server out of SERVING.
type Monitor struct {
	server  *health.Server
	metrics metrics.MatchmakingMetrics

	mu       sync.Mutex
	degraded map[string]string
}

func NewMonitor(m metrics.MatchmakingMetrics, dependencies ...string) *Monitor {
	monitor := &Monitor{
		server:   health.NewServer(),
		metrics:  m,
		degraded: make(map[string]string),
	}
	monitor.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, dependency := range dependencies {
		monitor.SetHealthy(dependency)
	}

	return monitor
}

// Server is the grpc health service to register.
func (m *Monitor) Server() *health.Server {
	return m.server
}

func (m *Monitor) SetDegraded(dependency string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}

	m.mu.Lock()
	_, already := m.degraded[dependency]
	m.degraded[dependency] = reason
	m.mu.Unlock()

	if !already {
		logrus.WithField("dependency", dependency).Warnf("dependency degraded: %s", reason)
	}
	m.server.SetServingStatus(dependency, healthpb.HealthCheckResponse_NOT_SERVING)
	if m.metrics != nil {
		m.metrics.SetDependencyDegraded(dependency, true)
	}
}

func (m *Monitor) SetHealthy(dependency string) {
	m.mu.Lock()
	_, was := m.degraded[dependency]
	delete(m.degraded, dependency)
	m.mu.Unlock()

	if was {
		logrus.WithField("dependency", dependency).Info("dependency recovered")
	}
	m.server.SetServingStatus(dependency, healthpb.HealthCheckResponse_SERVING)
	if m.metrics != nil {
		m.metrics.SetDependencyDegraded(dependency, false)
	}
}

// Degraded returns the failing dependencies, sorted.
func (m *Monitor) Degraded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.degraded))
	for name := range m.degraded {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Shutdown flips every service to NOT_SERVING so load balancers drain.
func (m *Monitor) Shutdown() {
	m.server.Shutdown()
}
