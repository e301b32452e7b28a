// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package expansion widens the rating range of waiting tickets on a fixed tick.
package expansion

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/mathutil"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

type Scheduler struct {
	registry     *registry.Registry
	ratings      matchmaker.RatingStore
	policy       Policy
	metrics      metrics.MatchmakingMetrics
	degraded     matchmaker.DegradedReporter
	interval     time.Duration
	maxStaleness time.Duration
	now          func() time.Time

	tick atomic.Int64
}

type Option func(*Scheduler)

// WithRatingStore lets the policy see each ticket's rating profile.
func WithRatingStore(store matchmaker.RatingStore, maxStaleness time.Duration) Option {
	return func(s *Scheduler) {
		s.ratings = store
		s.maxStaleness = maxStaleness
	}
}

func WithPolicy(policy Policy) Option {
	return func(s *Scheduler) { s.policy = policy }
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithDegradedReporter(reporter matchmaker.DegradedReporter) Option {
	return func(s *Scheduler) { s.degraded = reporter }
}

func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.interval = interval }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(reg *registry.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: reg,
		policy:   FixedPolicy{},
		interval: constants.DefaultExpansionTick,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run ticks until the context ends.
func (s *Scheduler) Run(rootScope *envelope.Scope) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootScope.Ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(rootScope)
		}
	}
}

// Tick expires due tickets then widens every QUEUED ticket that waited past
// its mode's delay. A ticket is widened at most once per tick.
func (s *Scheduler) Tick(rootScope *envelope.Scope) *matchmaker.WorkerInfo {
	scope := rootScope.NewChildScope("expansion.Tick")
	defer scope.Finish()

	now := s.now()
	tickID := s.tick.Add(1)
	info := matchmaker.NewWorkerInfo(constants.ExpansionFunction, tickID, now)
	start := time.Now()

	expired := s.registry.ExpireDue(scope, now)
	info.TicketExpired = len(expired)

	ratingFailed, ratingOK := false, false
	var lastRatingErr error
	for _, ticket := range s.registry.Queued() {
		info.TotalTicketScanned++

		rule, ok := s.registry.Rules().Lookup(ticket.ActivityType, ticket.Mode)
		if !ok || ticket.CurrentRatingRange >= rule.MaxRatingRange {
			continue
		}
		if ticket.WaitedAt(now) <= rule.ExpansionDelay() {
			continue
		}

		var profile *models.RatingProfile
		if s.ratings != nil {
			fetched, err := matchmaker.PartyProfile(scope.Ctx, s.ratings, ticket.Members(), ticket.ActivityType, now, s.maxStaleness)
			if err != nil {
				// unknown rating, no widening this tick
				ratingFailed = true
				lastRatingErr = err
				info.RatingFailures++
				continue
			}
			ratingOK = true
			profile = &fetched
		}

		step := s.policy.Step(rule, ticket, profile)
		if step <= 0 {
			continue
		}
		toRange := mathutil.Min(ticket.CurrentRatingRange+step, rule.MaxRatingRange)

		expanded, err := s.registry.Expand(scope, ticket.TicketID, tickID, toRange, now)
		if err != nil {
			if !errors.Is(err, models.ErrStaleState) && !errors.Is(err, models.ErrTicketNotFound) {
				scope.Log.WithField("ticketID", ticket.TicketID).Warnf("failed to expand ticket: %v", err)
			}
			continue
		}
		if expanded {
			info.TicketExpanded++
			if s.metrics != nil {
				s.metrics.AddRangeExpansion(ticket.ActivityType, ticket.Mode)
			}
		}
	}

	s.reportRatingHealth(ratingFailed, ratingOK, lastRatingErr)
	if s.metrics != nil {
		s.metrics.AddElapsedTimeMs("", "", constants.ExpansionFunction, time.Since(start))
	}
	scope.Log.WithFields(info.Fields()).Debug("expansion tick done")

	return info
}

// TickID returns the id of the last tick.
func (s *Scheduler) TickID() int64 {
	return s.tick.Load()
}

func (s *Scheduler) reportRatingHealth(failed, ok bool, err error) {
	if s.degraded == nil {
		return
	}
	switch {
	case failed:
		s.degraded.SetDegraded(constants.DependencyRatingStore, err)
	case ok:
		s.degraded.SetHealthy(constants.DependencyRatingStore)
	}
}
