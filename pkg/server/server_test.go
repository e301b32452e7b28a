// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/health"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/testsetup"
)

func TestServer_HealthAndMetrics(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	registry := prometheus.NewRegistry()
	mmMetrics := metrics.NewMetrics(registry)
	monitor := health.NewMonitor(mmMetrics, constants.DependencyRatingStore)

	srv := New(registry, monitor)
	g.Expect(srv.Listen("127.0.0.1:0", "127.0.0.1:0")).To(Succeed())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(envelope.NewRootScope(ctx, "server-test", "")) }()

	conn, err := grpc.DialContext(ctx, srv.GRPCAddr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	g.Expect(err).ToNot(HaveOccurred())
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	monitor.SetDegraded(constants.DependencyRatingStore, errors.New("timeout"))
	g.Eventually(func() healthpb.HealthCheckResponse_ServingStatus {
		response, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: constants.DependencyRatingStore})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return response.Status
	}).Should(Equal(healthpb.HealthCheckResponse_NOT_SERVING))

	response, err := http.Get("http://" + srv.MetricsAddr().String() + "/metrics")
	g.Expect(err).ToNot(HaveOccurred())
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(body)).To(ContainSubstring(`ab_skillmm_dependency_degraded{dependency="rating_store"} 1`))
	g.Expect(string(body)).To(ContainSubstring("grpc_server_handled_total"))

	cancel()
	g.Eventually(done).Should(Receive(BeNil()))
}
