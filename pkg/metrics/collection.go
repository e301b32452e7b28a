// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	ticketsInQueue     prometheus.GaugeVec
	ticketsAdmitted    prometheus.CounterVec
	rejections         prometheus.CounterVec
	rangeExpansions    prometheus.CounterVec
	elapsedTime        prometheus.HistogramVec
	unmatchedReasons   prometheus.CounterVec
	proposals          prometheus.CounterVec
	readyCheckOutcomes prometheus.CounterVec
	commitResults      prometheus.CounterVec
	waitTime           prometheus.HistogramVec
	matchQuality       prometheus.HistogramVec
	dependencyDegraded prometheus.GaugeVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)
	modeLabelDimensions := []string{"activity_type", "mode"}

	ticketsInQueue := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ab_skillmm_tickets_in_queue",
			Help: "Number of queued tickets per activity, mode and region seen by the last scan",
		}, append(modeLabelDimensions, "region"))

	ticketsAdmitted := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_tickets_admitted_total",
			Help: "Number of tickets admitted into the queue",
		}, modeLabelDimensions)

	rejections := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_admission_rejections_total",
			Help: "Number of queue requests rejected at admission",
		}, append(modeLabelDimensions, "reason"))

	rangeExpansions := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_range_expansions_total",
			Help: "Number of rating range widenings",
		}, modeLabelDimensions)

	//nolint:promlinter
	elapsedTime := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_skillmm_elapsed_time_ms",
			Help:    "A histogram of matchmaking functions elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, append(modeLabelDimensions, "function"))

	//nolint:promlinter
	unmatchedReasons := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_unmatched_reasons",
			Help: "Reasons a scan did not produce a proposal",
		}, append(modeLabelDimensions, "reason"))

	proposals := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_proposals_total",
			Help: "Number of match proposals sent to the ready check",
		}, append(modeLabelDimensions, "cross_region"))

	readyCheckOutcomes := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_ready_check_outcomes_total",
			Help: "Number of resolved ready checks per outcome",
		}, append(modeLabelDimensions, "outcome"))

	commitResults := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_skillmm_session_commits_total",
			Help: "Number of matches handed to the session service per result",
		}, append(modeLabelDimensions, "result"))

	//nolint:promlinter
	waitTime := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_skillmm_wait_time_seconds",
			Help:    "Time from enqueue to match",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, modeLabelDimensions)

	matchQuality := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_skillmm_match_quality",
			Help:    "Quality score of committed matches, 1 is ideal",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, modeLabelDimensions)

	dependencyDegraded := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ab_skillmm_dependency_degraded",
			Help: "1 while a dependency is failing and the core is failing closed",
		}, []string{"dependency"})

	return prometheusMetrics{
		ticketsInQueue:     *ticketsInQueue,
		ticketsAdmitted:    *ticketsAdmitted,
		rejections:         *rejections,
		rangeExpansions:    *rangeExpansions,
		elapsedTime:        *elapsedTime,
		unmatchedReasons:   *unmatchedReasons,
		proposals:          *proposals,
		readyCheckOutcomes: *readyCheckOutcomes,
		commitResults:      *commitResults,
		waitTime:           *waitTime,
		matchQuality:       *matchQuality,
		dependencyDegraded: *dependencyDegraded,
	}
}

func modeLabels(activityType, mode string) prometheus.Labels {
	return prometheus.Labels{"activity_type": activityType, "mode": mode}
}

func withLabel(labels prometheus.Labels, key, value string) prometheus.Labels {
	labels[key] = value
	return labels
}

func (metrics prometheusMetrics) TicketsInQueue(activityType, mode, region string, numTickets int) {
	metrics.ticketsInQueue.With(withLabel(modeLabels(activityType, mode), "region", region)).Set(float64(numTickets))
}

func (metrics prometheusMetrics) AddTicketAdmitted(activityType, mode string) {
	metrics.ticketsAdmitted.With(modeLabels(activityType, mode)).Inc()
}

func (metrics prometheusMetrics) AddRejection(activityType, mode, reason string) {
	metrics.rejections.With(withLabel(modeLabels(activityType, mode), "reason", reason)).Inc()
}

func (metrics prometheusMetrics) AddRangeExpansion(activityType, mode string) {
	metrics.rangeExpansions.With(modeLabels(activityType, mode)).Inc()
}

func (metrics prometheusMetrics) AddElapsedTimeMs(activityType, mode, function string, elapsedTime time.Duration) {
	metrics.elapsedTime.With(withLabel(modeLabels(activityType, mode), "function", function)).Observe(float64(elapsedTime.Milliseconds()))
}

func (metrics prometheusMetrics) AddUnmatchedReason(activityType, mode, reason string) {
	metrics.unmatchedReasons.With(withLabel(modeLabels(activityType, mode), "reason", reason)).Add(float64(1))
}

func (metrics prometheusMetrics) AddProposal(activityType, mode string, crossRegion bool) {
	metrics.proposals.With(withLabel(modeLabels(activityType, mode), "cross_region", strconv.FormatBool(crossRegion))).Inc()
}

func (metrics prometheusMetrics) AddReadyCheckOutcome(activityType, mode, outcome string) {
	metrics.readyCheckOutcomes.With(withLabel(modeLabels(activityType, mode), "outcome", outcome)).Inc()
}

func (metrics prometheusMetrics) AddCommitResult(activityType, mode, result string) {
	metrics.commitResults.With(withLabel(modeLabels(activityType, mode), "result", result)).Inc()
}

func (metrics prometheusMetrics) ObserveWaitTime(activityType, mode string, waited time.Duration) {
	metrics.waitTime.With(modeLabels(activityType, mode)).Observe(waited.Seconds())
}

func (metrics prometheusMetrics) ObserveMatchQuality(activityType, mode string, quality float64) {
	metrics.matchQuality.With(modeLabels(activityType, mode)).Observe(quality)
}

func (metrics prometheusMetrics) SetDependencyDegraded(dependency string, degraded bool) {
	value := 0.0
	if degraded {
		value = 1
	}
	metrics.dependencyDegraded.With(prometheus.Labels{"dependency": dependency}).Set(value)
}
