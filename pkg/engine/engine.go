// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package engine wires the registry, the range expansion scheduler, the
// candidate matcher, the ready check coordinator and analytics into the
// matchmaking facade.
package engine

import (
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/analytics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/config"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/candidate"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/expansion"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/readycheck"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Dependencies are the collaborators the engine talks to.
type Dependencies struct {
	Ratings  matchmaker.RatingStore
	Notifier matchmaker.ParticipantNotifier
	Session  matchmaker.SessionService
	// Journal is optional. Without it tickets only live in memory.
	Journal  registry.Journal
	Metrics  metrics.MatchmakingMetrics
	Degraded matchmaker.DegradedReporter
}

type Engine struct {
	registry    *registry.Registry
	scheduler   *expansion.Scheduler
	matcher     *candidate.Matcher
	coordinator *readycheck.Coordinator
	analytics   *analytics.Store

	journal      registry.Journal
	ratings      matchmaker.RatingStore
	maxStaleness time.Duration
	sweep        time.Duration
	now          func() time.Time
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(cfg *config.Config, rules *models.ModeRules, deps Dependencies, opts ...Option) *Engine {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	store := analytics.New(
		analytics.WithRetention(cfg.AnalyticsRetention()),
		analytics.WithMetrics(deps.Metrics),
		analytics.WithClock(o.now))

	registryOpts := []registry.Option{
		registry.WithRecorder(store),
		registry.WithMetrics(deps.Metrics),
		registry.WithDegradedReporter(deps.Degraded),
		registry.WithClock(o.now),
		registry.WithTombstoneTTL(cfg.TombstoneTTL()),
	}
	if deps.Journal != nil {
		registryOpts = append(registryOpts, registry.WithJournal(deps.Journal))
	}
	reg := registry.New(rules, registryOpts...)

	coordinator := readycheck.New(reg, deps.Notifier, deps.Session,
		readycheck.WithRecorder(store),
		readycheck.WithMetrics(deps.Metrics),
		readycheck.WithDegradedReporter(deps.Degraded),
		readycheck.WithQualityModel(readycheck.QualityModel{
			RatingNorm:   cfg.QualityRatingNorm,
			LatencyNorm:  cfg.QualityLatencyNorm,
			RatingWeight: cfg.QualityRatingWeight,
		}),
		readycheck.WithWindow(cfg.ReadyCheckWindow()),
		readycheck.WithPriorityBump(cfg.PriorityBump),
		readycheck.WithPenaltyPolicy(readycheck.FixedPenalty(cfg.DeclinePenalty())),
		readycheck.WithClock(o.now))

	schedulerOpts := []expansion.Option{
		expansion.WithPolicy(expansion.SmurfAwarePolicy{Threshold: cfg.SmurfThreshold, StepFactor: cfg.SmurfStepFactor}),
		expansion.WithMetrics(deps.Metrics),
		expansion.WithDegradedReporter(deps.Degraded),
		expansion.WithInterval(cfg.ExpansionTick()),
		expansion.WithClock(o.now),
	}
	matcherOpts := []candidate.Option{
		candidate.WithMetrics(deps.Metrics),
		candidate.WithDegradedReporter(deps.Degraded),
		candidate.WithMaxRetries(cfg.MaxProposalRetries),
		candidate.WithCrossRegionAfter(cfg.CrossRegionAfterPasses),
		candidate.WithInterval(cfg.ScanInterval()),
		candidate.WithClock(o.now),
	}
	if deps.Ratings != nil {
		schedulerOpts = append(schedulerOpts, expansion.WithRatingStore(deps.Ratings, cfg.MaxRatingStaleness()))
		matcherOpts = append(matcherOpts, candidate.WithRatingStore(deps.Ratings, cfg.MaxRatingStaleness()))
	}

	return &Engine{
		registry:     reg,
		scheduler:    expansion.New(reg, schedulerOpts...),
		matcher:      candidate.New(reg, coordinator, matcherOpts...),
		coordinator:  coordinator,
		analytics:    store,
		journal:      deps.Journal,
		ratings:      deps.Ratings,
		maxStaleness: cfg.MaxRatingStaleness(),
		sweep:        cfg.ScanInterval(),
		now:          o.now,
	}
}

// Restore replays the journal into the registry. It is a no-op without one.
func (e *Engine) Restore(scope *envelope.Scope) (int, error) {
	if e.journal == nil {
		return 0, nil
	}
	return e.registry.Restore(scope, e.journal)
}

// Enqueue admits a request. The party's rating profile is looked up first so
// placement players start with a wider range; a failing lookup does not block
// admission.
func (e *Engine) Enqueue(rootScope *envelope.Scope, request models.QueueRequest) (models.QueueEntryDetail, error) {
	scope := rootScope.NewChildScope("engine.Enqueue")
	defer scope.Finish()

	var admitOpts []registry.AdmitOption
	if e.ratings != nil && request.ActivityType != "" && request.PlayerID != "" {
		profile, err := matchmaker.PartyProfile(scope.Ctx, e.ratings, request.Members(), request.ActivityType, e.now(), e.maxStaleness)
		if err != nil {
			scope.Log.WithField("playerID", request.PlayerID).Debugf("admitting without rating profile: %v", err)
		} else {
			admitOpts = append(admitOpts, registry.WithRatingProfile(profile))
		}
	}

	ticket, err := e.registry.Admit(scope, request, admitOpts...)
	if err != nil {
		return models.QueueEntryDetail{}, err
	}

	return e.detail(ticket), nil
}

// Cancel cancels a ticket. Cancelling a PROPOSED ticket is deferred: it counts
// as a decline of its ready check, which ends the ticket CANCELLED and requeues
// the other participants. When the check is not open yet the pending cancel is
// honoured once it resolves.
func (e *Engine) Cancel(rootScope *envelope.Scope, ticketID string) (models.CancelOutcome, error) {
	scope := rootScope.NewChildScope("engine.Cancel").WithField("ticketID", ticketID)
	defer scope.Finish()

	outcome, err := e.registry.Cancel(scope, ticketID)
	if err != nil || outcome != models.CancelOutcomeDeferred {
		return outcome, err
	}

	if withdrawErr := e.coordinator.Withdraw(scope, ticketID); withdrawErr != nil {
		scope.Log.Debugf("cancel left for the ready check to resolve: %v", withdrawErr)
	}

	return outcome, nil
}

// Status returns the ticket's current view, terminal tickets included for a
// while after they ended.
func (e *Engine) Status(rootScope *envelope.Scope, ticketID string) (models.QueueEntryDetail, error) {
	scope := rootScope.NewChildScope("engine.Status")
	defer scope.Finish()

	ticket, err := e.registry.Get(ticketID)
	if err != nil {
		return models.QueueEntryDetail{}, err
	}
	return e.detail(ticket), nil
}

func (e *Engine) Accept(rootScope *envelope.Scope, ticketID string) error {
	return e.coordinator.Accept(rootScope, ticketID)
}

func (e *Engine) Decline(rootScope *envelope.Scope, ticketID string) error {
	return e.coordinator.Decline(rootScope, ticketID)
}

// Match returns the outcome of a resolved proposal.
func (e *Engine) Match(proposalID string) (models.MatchDetail, bool) {
	return e.coordinator.Result(proposalID)
}

func (e *Engine) WaitTimeAnalytics(window models.AnalyticsWindow, filter models.AnalyticsFilter) (models.WaitTimeAnalytics, error) {
	return e.analytics.WaitTime(window, filter)
}

func (e *Engine) MatchQualityAnalytics(window models.AnalyticsWindow, filter models.AnalyticsFilter) (models.MatchQualityAnalytics, error) {
	return e.analytics.MatchQuality(window, filter)
}

// Step runs one expansion tick, the ready check sweep and one scan, in that
// order.
func (e *Engine) Step(scope *envelope.Scope) {
	e.scheduler.Tick(scope)
	e.coordinator.ExpireDue(scope)
	e.matcher.Scan(scope)
}

// Run drives the scheduler, the matcher and the ready check sweep until the
// context ends. Call Close once every other caller of the engine stopped.
func (e *Engine) Run(rootScope *envelope.Scope) error {
	group, ctx := errgroup.WithContext(rootScope.Ctx)
	scope := rootScope.WithContext(ctx)

	group.Go(func() error { return e.scheduler.Run(scope) })
	group.Go(func() error { return e.matcher.Run(scope) })
	group.Go(func() error {
		ticker := time.NewTicker(e.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.coordinator.ExpireDue(scope)
			}
		}
	})

	err := group.Wait()
	if errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Close stops the ready check timers and flushes the journal. The engine keeps
// working in memory afterwards.
func (e *Engine) Close() {
	e.coordinator.Close()
	e.registry.Close()
}

func (e *Engine) detail(ticket models.Ticket) models.QueueEntryDetail {
	now := e.now()
	waited := int64(ticket.WaitedAt(now) / time.Second)

	detail := models.QueueEntryDetail{
		TicketID:           ticket.TicketID,
		PlayerID:           ticket.PlayerID,
		PartyID:            ticket.PartyID,
		ActivityType:       ticket.ActivityType,
		Mode:               ticket.Mode,
		Region:             ticket.Region,
		Status:             ticket.ReportedStatus(),
		QueuedAt:           ticket.QueuedAt,
		ExpiresAt:          ticket.ExpiresAt,
		WaitedSeconds:      waited,
		Priority:           ticket.Priority,
		PriorityState:      ticket.PriorityState(),
		CurrentRatingRange: ticket.CurrentRatingRange,
		Expansions:         ticket.Expansions,
		History:            ticket.History,
		ProposalID:         ticket.ProposalID,
		TraceID:            ticket.TraceID,
		Metadata:           ticket.Metadata,
	}

	if estimate, ok := e.analytics.EstimateWait(ticket.ActivityType, ticket.Mode, ticket.Region); ok {
		estimateSeconds := int64(estimate / time.Second)
		detail.WaitTimeEstimateSeconds = &estimateSeconds
		if ticket.Status.IsActive() {
			eta := max(estimateSeconds-waited, 0)
			detail.EtaSeconds = &eta
		}
	}

	return detail
}
