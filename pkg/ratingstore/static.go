// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package ratingstore provides the rating store adapters used by the
// matchmaker binary.
package ratingstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

type profileKey struct {
	playerID     string
	activityType string
}

// Static serves profiles held in memory. Unknown players get the default
// rating, or ErrRatingNotFound when no default is set.
type Static struct {
	defaultRating *float64
	now           func() time.Time

	mu       sync.RWMutex
	profiles map[profileKey]models.RatingProfile
}

type StaticOption func(*Static)

func WithDefaultRating(rating float64) StaticOption {
	return func(s *Static) { s.defaultRating = &rating }
}

func WithStaticClock(now func() time.Time) StaticOption {
	return func(s *Static) { s.now = now }
}

func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		now:      time.Now,
		profiles: make(map[profileKey]models.RatingProfile),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type staticFile struct {
	Profiles []struct {
		PlayerID                  string  `yaml:"player_id"`
		ActivityType              string  `yaml:"activity_type"`
		Rating                    float64 `yaml:"rating"`
		PeakRating                float64 `yaml:"peak_rating"`
		Tier                      string  `yaml:"tier"`
		Division                  string  `yaml:"division"`
		GamesPlayed               int     `yaml:"games_played"`
		WinRate                   float64 `yaml:"win_rate"`
		Streak                    int     `yaml:"streak"`
		PlacementMatchesRemaining int     `yaml:"placement_matches_remaining"`
		SmurfScore                float64 `yaml:"smurf_score"`
	} `yaml:"profiles"`
}

// LoadStatic reads profiles from a yaml file.
func LoadStatic(path string, opts ...StaticOption) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read ratings %s", path)
	}

	var file staticFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "failed to parse ratings %s", path)
	}

	s := NewStatic(opts...)
	for i, p := range file.Profiles {
		if p.PlayerID == "" || p.ActivityType == "" {
			return nil, eris.Errorf("profile %d in %s needs player_id and activity_type", i, path)
		}
		s.Put(models.RatingProfile{
			PlayerID:                  p.PlayerID,
			ActivityType:              p.ActivityType,
			Rating:                    p.Rating,
			PeakRating:                p.PeakRating,
			Tier:                      p.Tier,
			Division:                  p.Division,
			GamesPlayed:               p.GamesPlayed,
			WinRate:                   p.WinRate,
			Streak:                    p.Streak,
			PlacementMatchesRemaining: p.PlacementMatchesRemaining,
			SmurfScore:                p.SmurfScore,
		})
	}

	return s, nil
}

func (s *Static) Put(profile models.RatingProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profileKey{profile.PlayerID, profile.ActivityType}] = profile
}

func (s *Static) GetRating(_ context.Context, playerID string, activityType string) (models.RatingProfile, error) {
	s.mu.RLock()
	profile, ok := s.profiles[profileKey{playerID, activityType}]
	s.mu.RUnlock()

	if !ok {
		if s.defaultRating == nil {
			return models.RatingProfile{}, fmt.Errorf("%w: player %s activity %s", models.ErrRatingNotFound, playerID, activityType)
		}
		profile = models.RatingProfile{
			PlayerID:     playerID,
			ActivityType: activityType,
			Rating:       *s.defaultRating,
			PeakRating:   *s.defaultRating,
		}
	}
	profile.FetchedAt = s.now()

	return profile, nil
}
