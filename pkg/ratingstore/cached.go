// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package ratingstore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Cached keeps profiles of the wrapped store for ttl. Errors are not cached.
// The cached FetchedAt is the one of the original read, so staleness checks
// still see the real age.
type Cached struct {
	store matchmaker.RatingStore
	cache *cache.Cache
}

func NewCached(store matchmaker.RatingStore, ttl time.Duration) *Cached {
	return &Cached{
		store: store,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) GetRating(ctx context.Context, playerID string, activityType string) (models.RatingProfile, error) {
	key := activityType + "/" + playerID
	if cached, ok := c.cache.Get(key); ok {
		return cached.(models.RatingProfile), nil
	}

	profile, err := c.store.GetRating(ctx, playerID, activityType)
	if err != nil {
		return models.RatingProfile{}, err
	}
	c.cache.SetDefault(key, profile)

	return profile, nil
}

// Invalidate drops the cached profile, for instance after a match result was
// written.
func (c *Cached) Invalidate(playerID string, activityType string) {
	c.cache.Delete(activityType + "/" + playerID)
}
