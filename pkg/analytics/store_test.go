// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/testsetup"
)

func matched(at time.Time, region string, waited float64) models.WaitSample {
	return models.WaitSample{
		At:            at,
		TicketID:      "t",
		ActivityType:  "arena",
		Mode:          "ranked-duel",
		Region:        region,
		WaitedSeconds: waited,
		FromStatus:    models.StatusProposed,
		ToStatus:      models.StatusMatched,
	}
}

// stream is ten matches in eu over the last minutes, one older eu match and
// one us match, plus transitions that are not matches.
func stream(now time.Time) []models.WaitSample {
	samples := []models.WaitSample{
		matched(now.Add(-10*time.Minute), "eu", 500),
		matched(now.Add(-time.Minute), "us", 7),
		{At: now.Add(-time.Minute), Region: "eu", ActivityType: "arena", Mode: "ranked-duel", WaitedSeconds: 900, ToStatus: models.StatusExpired},
	}
	for i := 1; i <= 10; i++ {
		samples = append(samples, matched(now.Add(-time.Duration(i)*time.Second), "eu", float64(i*10)))
	}
	return samples
}

func TestWaitTime_Rollups(t *testing.T) {
	clock := testsetup.NewClock()
	clock.Advance(time.Hour)
	store := New(WithClock(clock.Now), WithMetrics(testsetup.NewMetrics()))
	for _, sample := range stream(clock.Now()) {
		store.RecordTransition(sample)
	}

	eu := models.AnalyticsFilter{ActivityType: "arena", Mode: "ranked-duel", Region: "eu"}

	last5, err := store.WaitTime(models.WindowLast5M, eu)
	require.NoError(t, err)
	assert.Equal(t, 10, last5.SampleCount)
	assert.InDelta(t, 55, last5.MeanSeconds, 1e-9)
	assert.Equal(t, 50.0, last5.P50Seconds)
	assert.Equal(t, 90.0, last5.P90Seconds)
	assert.Equal(t, 100.0, last5.P99Seconds)
	assert.Equal(t, 100.0, last5.MaxSeconds)
	assert.Equal(t, models.WindowLast5M, last5.Window)
	assert.Equal(t, "eu", last5.Region)

	last15, err := store.WaitTime(models.WindowLast15M, eu)
	require.NoError(t, err)
	assert.Equal(t, 11, last15.SampleCount)
	assert.Equal(t, 500.0, last15.MaxSeconds)

	everywhere, err := store.WaitTime(models.WindowHourly, models.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 12, everywhere.SampleCount)

	_, err = store.WaitTime("WEEKLY", eu)
	assert.ErrorIs(t, err, models.ErrUnknownWindow)

	estimate, ok := store.EstimateWait("arena", "ranked-duel", "eu")
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, estimate)

	_, ok = store.EstimateWait("arena", "ranked-duel", "ap")
	assert.False(t, ok)
}

func TestRollups_DeterministicReplay(t *testing.T) {
	clock := testsetup.NewClock()
	samples := stream(clock.Now().Add(time.Hour))
	quality := []models.QualitySample{
		{At: clock.Now().Add(50 * time.Minute), ActivityType: "arena", Mode: "ranked-duel", Region: "eu", Quality: 0.9, RatingSpread: 40, LatencySpread: 10},
		{At: clock.Now().Add(55 * time.Minute), ActivityType: "arena", Mode: "ranked-duel", Region: "eu", Quality: 0.5, RatingSpread: 200, LatencySpread: 60},
	}

	replay := func() *Store {
		replayClock := testsetup.NewClock()
		replayClock.Advance(time.Hour)
		store := New(WithClock(replayClock.Now))
		for _, sample := range samples {
			store.RecordTransition(sample)
		}
		for _, sample := range quality {
			store.RecordMatch(sample)
		}
		return store
	}

	first, second := replay(), replay()
	for _, window := range models.AllWindows {
		a, err := first.WaitTime(window, models.AnalyticsFilter{})
		require.NoError(t, err)
		b, err := second.WaitTime(window, models.AnalyticsFilter{})
		require.NoError(t, err)
		assert.Equal(t, a, b, "window %s", window)

		qa, err := first.MatchQuality(window, models.AnalyticsFilter{})
		require.NoError(t, err)
		qb, err := second.MatchQuality(window, models.AnalyticsFilter{})
		require.NoError(t, err)
		assert.Equal(t, qa, qb, "window %s", window)
	}

	hourly, err := first.MatchQuality(models.WindowHourly, models.AnalyticsFilter{Region: "eu"})
	require.NoError(t, err)
	assert.Equal(t, 2, hourly.MatchCount)
	assert.InDelta(t, 0.7, hourly.MeanQuality, 1e-9)
	assert.Equal(t, 0.5, hourly.MinQuality)
	assert.InDelta(t, 120, hourly.MeanRatingSpread, 1e-9)
	assert.InDelta(t, 35, hourly.MeanLatencySpreadMs, 1e-9)

	last5, err := first.MatchQuality(models.WindowLast5M, models.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, last5.MatchCount)
}

func TestStore_DropsSamplesPastRetention(t *testing.T) {
	clock := testsetup.NewClock()
	store := New(WithClock(clock.Now), WithRetention(time.Hour))

	store.RecordTransition(matched(clock.Now(), "eu", 10))
	clock.Advance(2 * time.Hour)
	store.RecordTransition(matched(clock.Now(), "eu", 20))

	transitions := store.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, 20.0, transitions[0].WaitedSeconds)
}
