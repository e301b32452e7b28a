// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import "time"

// RatingProfile is a player's skill data for one activity, owned by the rating store.
type RatingProfile struct {
	PlayerID                  string    `json:"playerId"`
	ActivityType              string    `json:"activityType"`
	Rating                    float64   `json:"rating"`
	PeakRating                float64   `json:"peakRating"`
	Tier                      string    `json:"tier,omitempty"`
	Division                  string    `json:"division,omitempty"`
	GamesPlayed               int       `json:"gamesPlayed"`
	WinRate                   float64   `json:"winRate"`
	Streak                    int       `json:"streak"`
	PlacementMatchesRemaining int       `json:"placementMatchesRemaining"`
	SmurfScore                float64   `json:"smurfScore"`
	FetchedAt                 time.Time `json:"fetchedAt"`
}

// InPlacement reports whether the player is still playing placement matches.
func (p RatingProfile) InPlacement() bool {
	return p.PlacementMatchesRemaining > 0
}

// IsStaleAt reports whether the profile is older than maxAge. A zero maxAge never goes stale.
func (p RatingProfile) IsStaleAt(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || p.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(p.FetchedAt) > maxAge
}
