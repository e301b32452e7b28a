// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package analytics

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// WaitTimeRollup aggregates the time-to-match of the samples that moved a
// ticket to MATCHED inside (now - window, now]. It only depends on its input.
func WaitTimeRollup(samples []models.WaitSample, window models.AnalyticsWindow, filter models.AnalyticsFilter, now time.Time) (models.WaitTimeAnalytics, error) {
	since, err := windowStart(window, now)
	if err != nil {
		return models.WaitTimeAnalytics{}, err
	}

	waits := make([]float64, 0)
	for _, sample := range samples {
		if sample.ToStatus != models.StatusMatched || !inWindow(sample.At, since, now) {
			continue
		}
		if filter.Matches(sample.ActivityType, sample.Mode, sample.Region) {
			waits = append(waits, sample.WaitedSeconds)
		}
	}

	result := models.WaitTimeAnalytics{
		Window:       window,
		ActivityType: filter.ActivityType,
		Mode:         filter.Mode,
		Region:       filter.Region,
		SampleCount:  len(waits),
		GeneratedAt:  now,
	}
	if len(waits) == 0 {
		return result, nil
	}

	sort.Float64s(waits)
	result.MeanSeconds = stat.Mean(waits, nil)
	result.P50Seconds = stat.Quantile(0.5, stat.Empirical, waits, nil)
	result.P90Seconds = stat.Quantile(0.9, stat.Empirical, waits, nil)
	result.P99Seconds = stat.Quantile(0.99, stat.Empirical, waits, nil)
	result.MaxSeconds = floats.Max(waits)

	return result, nil
}

// MatchQualityRollup aggregates the quality samples inside (now - window, now].
func MatchQualityRollup(samples []models.QualitySample, window models.AnalyticsWindow, filter models.AnalyticsFilter, now time.Time) (models.MatchQualityAnalytics, error) {
	since, err := windowStart(window, now)
	if err != nil {
		return models.MatchQualityAnalytics{}, err
	}

	qualities := make([]float64, 0)
	ratingSpreads := make([]float64, 0)
	latencySpreads := make([]float64, 0)
	for _, sample := range samples {
		if !inWindow(sample.At, since, now) || !filter.Matches(sample.ActivityType, sample.Mode, sample.Region) {
			continue
		}
		qualities = append(qualities, sample.Quality)
		ratingSpreads = append(ratingSpreads, sample.RatingSpread)
		latencySpreads = append(latencySpreads, sample.LatencySpread)
	}

	result := models.MatchQualityAnalytics{
		Window:       window,
		ActivityType: filter.ActivityType,
		Mode:         filter.Mode,
		Region:       filter.Region,
		MatchCount:   len(qualities),
		GeneratedAt:  now,
	}
	if len(qualities) == 0 {
		return result, nil
	}

	sort.Float64s(qualities)
	result.MeanQuality = stat.Mean(qualities, nil)
	result.P50Quality = stat.Quantile(0.5, stat.Empirical, qualities, nil)
	result.P90Quality = stat.Quantile(0.9, stat.Empirical, qualities, nil)
	result.P99Quality = stat.Quantile(0.99, stat.Empirical, qualities, nil)
	result.MinQuality = floats.Min(qualities)
	result.MeanRatingSpread = stat.Mean(ratingSpreads, nil)
	result.MeanLatencySpreadMs = stat.Mean(latencySpreads, nil)

	return result, nil
}

func windowStart(window models.AnalyticsWindow, now time.Time) (time.Time, error) {
	d := window.Duration()
	if d == 0 {
		return time.Time{}, fmt.Errorf("%w: %q", models.ErrUnknownWindow, window)
	}
	return now.Add(-d), nil
}

func inWindow(at, since, now time.Time) bool {
	return at.After(since) && !at.After(now)
}
