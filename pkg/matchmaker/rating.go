// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// PartyProfile fetches every member's profile and folds them into one.
// Rating is the mean, SmurfScore and PlacementMatchesRemaining the maximum,
// FetchedAt the oldest fetch. Any failing or stale member fails the whole
// party, so callers never act on unknown data.
func PartyProfile(ctx context.Context, store RatingStore, playerIDs []string, activityType string, now time.Time, maxStaleness time.Duration) (models.RatingProfile, error) {
	if len(playerIDs) == 0 {
		return models.RatingProfile{}, eris.New("party has no members")
	}

	merged := models.RatingProfile{ActivityType: activityType, PlayerID: playerIDs[0]}
	total := 0.0
	for i, playerID := range playerIDs {
		profile, err := store.GetRating(ctx, playerID, activityType)
		if err != nil {
			return models.RatingProfile{}, fmt.Errorf("%w: rating of player %s: %v", models.ErrDependencyUnavailable, playerID, err)
		}
		if profile.IsStaleAt(now, maxStaleness) {
			return models.RatingProfile{}, fmt.Errorf("%w: rating of player %s fetched at %s", models.ErrRatingStale, playerID, profile.FetchedAt.Format(time.RFC3339))
		}

		total += profile.Rating
		if i == 0 || profile.PeakRating > merged.PeakRating {
			merged.PeakRating = profile.PeakRating
		}
		if profile.SmurfScore > merged.SmurfScore {
			merged.SmurfScore = profile.SmurfScore
		}
		if profile.PlacementMatchesRemaining > merged.PlacementMatchesRemaining {
			merged.PlacementMatchesRemaining = profile.PlacementMatchesRemaining
		}
		if i == 0 || profile.FetchedAt.Before(merged.FetchedAt) {
			merged.FetchedAt = profile.FetchedAt
		}
		if i == 0 {
			merged.Tier = profile.Tier
			merged.Division = profile.Division
		}
		merged.GamesPlayed += profile.GamesPlayed
	}
	merged.Rating = total / float64(len(playerIDs))

	return merged, nil
}
