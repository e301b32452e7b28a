// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package readycheck

import (
	"gonum.org/v1/gonum/floats"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/mathutil"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// QualityModel scores a match in [0, 1], 1 being ideal. A rating spread of
// RatingNorm or a latency spread of LatencyNorm is the worst case of its term.
type QualityModel struct {
	RatingNorm   float64
	LatencyNorm  float64
	RatingWeight float64
}

func DefaultQualityModel() QualityModel {
	return QualityModel{RatingNorm: 400, LatencyNorm: 150, RatingWeight: 0.7}
}

// Score is 1 - (w * ratingSpread/RatingNorm + (1-w) * latencySpread/LatencyNorm),
// each term capped at 1.
func (q QualityModel) Score(ratingSpread float64, latencySpread float64) float64 {
	weight := mathutil.Clamp(q.RatingWeight, 0, 1)
	penalty := weight*normalize(ratingSpread, q.RatingNorm) + (1-weight)*normalize(latencySpread, q.LatencyNorm)
	return mathutil.Clamp(1-penalty, 0, 1)
}

func normalize(value, norm float64) float64 {
	if norm <= 0 || value <= 0 {
		return 0
	}
	return mathutil.Min(value/norm, 1)
}

// RatingSpread is the gap between the best and worst team average. A single
// team match uses the gap between its parties.
func RatingSpread(teams []models.Team) float64 {
	ratings := make([]float64, 0, len(teams))
	if len(teams) == 1 {
		for _, party := range teams[0].Parties {
			ratings = append(ratings, party.Rating)
		}
	} else {
		for _, team := range teams {
			if team.PlayerCount() > 0 {
				ratings = append(ratings, team.AverageRating())
			}
		}
	}
	if len(ratings) < 2 {
		return 0
	}
	return floats.Max(ratings) - floats.Min(ratings)
}

// Latency summarises the parties' latency to region. Parties that reported no
// latency for it are left out.
func Latency(region string, parties []models.PartyRef) models.LatencyProfile {
	profile := models.LatencyProfile{Region: region}

	latencies := make([]float64, 0, len(parties))
	for _, party := range parties {
		if latency, ok := party.Latencies[region]; ok {
			latencies = append(latencies, float64(latency))
		}
	}
	if len(latencies) == 0 {
		return profile
	}

	profile.MinMs = int(floats.Min(latencies))
	profile.MaxMs = int(floats.Max(latencies))
	profile.AvgMs = floats.Sum(latencies) / float64(len(latencies))
	return profile
}
