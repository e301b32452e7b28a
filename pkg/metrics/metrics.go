// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatchmakingMetrics interface {
	TicketsInQueue(activityType, mode, region string, numTickets int)
	AddTicketAdmitted(activityType, mode string)
	AddRejection(activityType, mode, reason string)
	AddRangeExpansion(activityType, mode string)
	AddElapsedTimeMs(activityType, mode, function string, elapsedTime time.Duration)
	AddUnmatchedReason(activityType, mode, reason string)
	AddProposal(activityType, mode string, crossRegion bool)
	AddReadyCheckOutcome(activityType, mode, outcome string)
	AddCommitResult(activityType, mode, result string)
	ObserveWaitTime(activityType, mode string, waited time.Duration)
	ObserveMatchQuality(activityType, mode string, quality float64)
	SetDependencyDegraded(dependency string, degraded bool)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
