// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"time"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) TicketsInQueue(activityType, mode, region string, numTickets int) {}

func (s stubMetricsCollection) AddTicketAdmitted(activityType, mode string) {}

func (s stubMetricsCollection) AddRejection(activityType, mode, reason string) {}

func (s stubMetricsCollection) AddRangeExpansion(activityType, mode string) {}

func (s stubMetricsCollection) AddElapsedTimeMs(activityType, mode, function string, elapsedTime time.Duration) {
}

func (s stubMetricsCollection) AddUnmatchedReason(activityType, mode, reason string) {}

func (s stubMetricsCollection) AddProposal(activityType, mode string, crossRegion bool) {}

func (s stubMetricsCollection) AddReadyCheckOutcome(activityType, mode, outcome string) {}

func (s stubMetricsCollection) AddCommitResult(activityType, mode, result string) {}

func (s stubMetricsCollection) ObserveWaitTime(activityType, mode string, waited time.Duration) {}

func (s stubMetricsCollection) ObserveMatchQuality(activityType, mode string, quality float64) {}

func (s stubMetricsCollection) SetDependencyDegraded(dependency string, degraded bool) {}

func NewMetrics() metrics.MatchmakingMetrics {
	return stubMetricsCollection{}
}
