// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package analytics keeps the transition and match quality samples and rolls
// them up per window.
package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Store is an in-memory sample log. Samples older than the retention are
// dropped as new ones arrive.
type Store struct {
	retention time.Duration
	metrics   metrics.MatchmakingMetrics
	now       func() time.Time

	mu          sync.RWMutex
	transitions []models.WaitSample
	matches     []models.QualitySample
}

type Option func(*Store)

func WithRetention(retention time.Duration) Option {
	return func(s *Store) { s.retention = retention }
}

// WithMetrics also observes every time-to-match in the wait time histogram.
func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		retention: models.WindowDaily.Duration(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) RecordTransition(sample models.WaitSample) {
	if sample.ToStatus == models.StatusMatched && s.metrics != nil {
		s.metrics.ObserveWaitTime(sample.ActivityType, sample.Mode, time.Duration(sample.WaitedSeconds*float64(time.Second)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, sample)
	s.transitions = pruneBefore(s.transitions, s.now().Add(-s.retention), func(sample models.WaitSample) time.Time { return sample.At })
}

func (s *Store) RecordMatch(sample models.QualitySample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, sample)
	s.matches = pruneBefore(s.matches, s.now().Add(-s.retention), func(sample models.QualitySample) time.Time { return sample.At })
}

// WaitTime returns the time-to-match rollup of the window.
func (s *Store) WaitTime(window models.AnalyticsWindow, filter models.AnalyticsFilter) (models.WaitTimeAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return WaitTimeRollup(s.transitions, window, filter, s.now())
}

// MatchQuality returns the match quality rollup of the window.
func (s *Store) MatchQuality(window models.AnalyticsWindow, filter models.AnalyticsFilter) (models.MatchQualityAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MatchQualityRollup(s.matches, window, filter, s.now())
}

// EstimateWait is the LAST_15M median time-to-match of the partition. It
// reports false when nothing was matched there recently.
func (s *Store) EstimateWait(activityType, mode, region string) (time.Duration, bool) {
	rollup, err := s.WaitTime(models.WindowLast15M, models.AnalyticsFilter{ActivityType: activityType, Mode: mode, Region: region})
	if err != nil || rollup.SampleCount == 0 {
		return 0, false
	}
	return time.Duration(math.Round(rollup.P50Seconds)) * time.Second, true
}

// Transitions returns a copy of the retained transition samples.
func (s *Store) Transitions() []models.WaitSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.WaitSample(nil), s.transitions...)
}

// pruneBefore drops the leading samples older than cutoff. Samples arrive in
// time order, so it stops at the first one to keep.
func pruneBefore[T any](samples []T, cutoff time.Time, at func(T) time.Time) []T {
	drop := 0
	for drop < len(samples) && at(samples[drop]).Before(cutoff) {
		drop++
	}
	if drop == 0 {
		return samples
	}
	return append(samples[:0], samples[drop:]...)
}
