// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package ratingstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

const selectProfile = `
SELECT rating, peak_rating, tier, division, games_played, win_rate, streak,
       placement_matches_remaining, smurf_score
FROM player_ratings
WHERE player_id = $1 AND activity_type = $2`

// rowQuerier is the part of *pgxpool.Pool the store uses.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads profiles from the player_ratings table of the rating
// service's database.
type Postgres struct {
	db  rowQuerier
	now func() time.Time
}

// Connect opens a pool on dsn and checks it answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse rating store dsn")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create rating store pool")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "failed to ping rating store")
	}

	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return newPostgres(pool, time.Now)
}

func newPostgres(db rowQuerier, now func() time.Time) *Postgres {
	return &Postgres{db: db, now: now}
}

func (p *Postgres) GetRating(ctx context.Context, playerID string, activityType string) (models.RatingProfile, error) {
	profile := models.RatingProfile{PlayerID: playerID, ActivityType: activityType}
	var tier, division *string

	err := p.db.QueryRow(ctx, selectProfile, playerID, activityType).Scan(
		&profile.Rating,
		&profile.PeakRating,
		&tier,
		&division,
		&profile.GamesPlayed,
		&profile.WinRate,
		&profile.Streak,
		&profile.PlacementMatchesRemaining,
		&profile.SmurfScore,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RatingProfile{}, fmt.Errorf("%w: player %s activity %s", models.ErrRatingNotFound, playerID, activityType)
	}
	if err != nil {
		return models.RatingProfile{}, eris.Wrapf(err, "failed to read rating of player %s", playerID)
	}

	if tier != nil {
		profile.Tier = *tier
	}
	if division != nil {
		profile.Division = *division
	}
	profile.FetchedAt = p.now()

	return profile, nil
}
