// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"time"
)

// AnalyticsWindow is the rollup period of an aggregate.
type AnalyticsWindow string

const (
	WindowLast5M  AnalyticsWindow = "LAST_5M"
	WindowLast15M AnalyticsWindow = "LAST_15M"
	WindowHourly  AnalyticsWindow = "HOURLY"
	WindowDaily   AnalyticsWindow = "DAILY"
)

// AllWindows lists every supported window, shortest first.
var AllWindows = []AnalyticsWindow{WindowLast5M, WindowLast15M, WindowHourly, WindowDaily}

// Duration returns the length of the window, 0 for unknown windows.
func (w AnalyticsWindow) Duration() time.Duration {
	switch w {
	case WindowLast5M:
		return 5 * time.Minute
	case WindowLast15M:
		return 15 * time.Minute
	case WindowHourly:
		return time.Hour
	case WindowDaily:
		return 24 * time.Hour
	}
	return 0
}

// WaitSample is emitted on every ticket transition.
type WaitSample struct {
	At            time.Time `json:"at"`
	TicketID      string    `json:"ticketId"`
	ActivityType  string    `json:"activityType"`
	Mode          string    `json:"mode"`
	Region        string    `json:"region"`
	WaitedSeconds float64   `json:"waitedSeconds"`
	FromStatus    Status    `json:"fromStatus,omitempty"`
	ToStatus      Status    `json:"toStatus"`
}

// QualitySample is emitted when a proposal becomes a match.
type QualitySample struct {
	At            time.Time `json:"at"`
	MatchID       string    `json:"matchId"`
	ActivityType  string    `json:"activityType"`
	Mode          string    `json:"mode"`
	Region        string    `json:"region"`
	Quality       float64   `json:"quality"`
	RatingSpread  float64   `json:"ratingSpread"`
	LatencySpread float64   `json:"latencySpread"`
}

// AnalyticsFilter selects the partition of an aggregate. Empty fields match anything.
type AnalyticsFilter struct {
	ActivityType string `json:"activityType,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Region       string `json:"region,omitempty"`
}

// Matches reports whether a sample partition passes the filter.
func (f AnalyticsFilter) Matches(activityType, mode, region string) bool {
	return (f.ActivityType == "" || f.ActivityType == activityType) &&
		(f.Mode == "" || f.Mode == mode) &&
		(f.Region == "" || f.Region == region)
}

// WaitTimeAnalytics is the time-to-match rollup of a window.
type WaitTimeAnalytics struct {
	Window       AnalyticsWindow `json:"window"`
	ActivityType string          `json:"activityType,omitempty"`
	Mode         string          `json:"mode,omitempty"`
	Region       string          `json:"region,omitempty"`
	SampleCount  int             `json:"sampleCount"`
	MeanSeconds  float64         `json:"meanSeconds"`
	P50Seconds   float64         `json:"p50Seconds"`
	P90Seconds   float64         `json:"p90Seconds"`
	P99Seconds   float64         `json:"p99Seconds"`
	MaxSeconds   float64         `json:"maxSeconds"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// MatchQualityAnalytics is the match quality rollup of a window.
type MatchQualityAnalytics struct {
	Window              AnalyticsWindow `json:"window"`
	ActivityType        string          `json:"activityType,omitempty"`
	Mode                string          `json:"mode,omitempty"`
	Region              string          `json:"region,omitempty"`
	MatchCount          int             `json:"matchCount"`
	MeanQuality         float64         `json:"meanQuality"`
	P50Quality          float64         `json:"p50Quality"`
	P90Quality          float64         `json:"p90Quality"`
	P99Quality          float64         `json:"p99Quality"`
	MinQuality          float64         `json:"minQuality"`
	MeanRatingSpread    float64         `json:"meanRatingSpread"`
	MeanLatencySpreadMs float64         `json:"meanLatencySpreadMs"`
	GeneratedAt         time.Time       `json:"generatedAt"`
}

// QueueEntryDetail is the status poll view of a ticket.
type QueueEntryDetail struct {
	TicketID                string           `json:"ticketId"`
	PlayerID                string           `json:"playerId"`
	PartyID                 string           `json:"partyId,omitempty"`
	ActivityType            string           `json:"activityType"`
	Mode                    string           `json:"mode"`
	Region                  string           `json:"region,omitempty"`
	Status                  Status           `json:"status"`
	QueuedAt                time.Time        `json:"queuedAt"`
	ExpiresAt               time.Time        `json:"expiresAt"`
	WaitedSeconds           int64            `json:"waitedSeconds"`
	EtaSeconds              *int64           `json:"etaSeconds,omitempty"`
	WaitTimeEstimateSeconds *int64           `json:"waitTimeEstimateSeconds,omitempty"`
	Priority                int              `json:"priority"`
	PriorityState           PriorityState    `json:"priorityState"`
	CurrentRatingRange      int              `json:"currentRatingRange"`
	Expansions              []RangeExpansion `json:"expansions"`
	History                 []StatusChange   `json:"history"`
	ProposalID              string           `json:"proposalId,omitempty"`
	TraceID                 string           `json:"traceId,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
