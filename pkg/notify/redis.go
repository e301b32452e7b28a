// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package notify carries ready check prompts, participant answers and
// confirmed matches over redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

const (
	DefaultReadyCheckPrefix = "skillmm:ready-check:"
	DefaultAnswerChannel    = "skillmm:ready-check-answers"
	DefaultMatchStream      = "skillmm:matches"
)

// ReadyCheckMessage is published to a ticket's channel when its ready check
// opens.
type ReadyCheckMessage struct {
	TicketID string               `json:"ticketId"`
	Proposal models.MatchProposal `json:"proposal"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes ready check prompts on one pub/sub channel per ticket.
type Redis struct {
	client publisher
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return newRedis(client, prefix)
}

func newRedis(client publisher, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultReadyCheckPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Channel returns the channel the ticket's client listens on.
func (r *Redis) Channel(ticketID string) string {
	return r.prefix + ticketID
}

func (r *Redis) Notify(ctx context.Context, ticketID string, proposal models.MatchProposal) error {
	payload, err := json.Marshal(ReadyCheckMessage{TicketID: ticketID, Proposal: proposal})
	if err != nil {
		return eris.Wrapf(err, "failed to encode ready check of ticket %s", ticketID)
	}

	receivers, err := r.client.Publish(ctx, r.Channel(ticketID), payload).Result()
	if err != nil {
		return eris.Wrapf(err, "failed to publish ready check of ticket %s", ticketID)
	}
	if receivers == 0 {
		// nobody is subscribed, the ready check will time out
		return fmt.Errorf("%w: no client listening on %s", models.ErrDependencyUnavailable, r.Channel(ticketID))
	}

	return nil
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSession hands confirmed matches to the session service through a
// redis stream.
type RedisSession struct {
	client streamAdder
	stream string
	maxLen int64
}

func NewRedisSession(client redis.UniversalClient, stream string, maxLen int64) *RedisSession {
	return newRedisSession(client, stream, maxLen)
}

func newRedisSession(client streamAdder, stream string, maxLen int64) *RedisSession {
	if stream == "" {
		stream = DefaultMatchStream
	}
	return &RedisSession{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSession) Commit(ctx context.Context, match models.MatchDetail) error {
	body, err := json.Marshal(match)
	if err != nil {
		return eris.Wrapf(err, "failed to encode match %s", match.MatchID)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"matchId":      match.MatchID,
			"activityType": match.ActivityType,
			"mode":         match.Mode,
			"region":       match.Region,
			"body":         body,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err = s.client.XAdd(ctx, args).Err(); err != nil {
		return eris.Wrapf(err, "failed to hand over match %s", match.MatchID)
	}

	return nil
}
