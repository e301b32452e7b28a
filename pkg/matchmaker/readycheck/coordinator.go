// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package readycheck confirms match proposals with their participants and
// hands confirmed matches to the session service.
package readycheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/common"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

const resultTTL = 15 * time.Minute

// PenaltyPolicy returns how long a ticket that declined is kept out of matching.
type PenaltyPolicy func(ticketID string) time.Duration

// FixedPenalty holds every decliner for d.
func FixedPenalty(d time.Duration) PenaltyPolicy {
	return func(string) time.Duration { return d }
}

type check struct {
	proposal  models.MatchProposal
	state     models.ReadyCheckState
	deadline  time.Time
	responses map[string]models.ParticipantResponse
	timer     *time.Timer
	resolved  bool
}

func (c *check) allAccepted() bool {
	for _, response := range c.responses {
		if response != models.ResponseAccepted {
			return false
		}
	}
	return true
}

func (c *check) snapshot(resolvedAt time.Time) models.ReadyCheck {
	responses := make(map[string]models.ParticipantResponse, len(c.responses))
	for ticketID, response := range c.responses {
		responses[ticketID] = response
	}
	return models.ReadyCheck{State: c.state, Deadline: c.deadline, Responses: responses, ResolvedAt: resolvedAt}
}

type Coordinator struct {
	registry     *registry.Registry
	notifier     matchmaker.ParticipantNotifier
	session      matchmaker.SessionService
	recorder     matchmaker.AnalyticsRecorder
	metrics      metrics.MatchmakingMetrics
	degraded     matchmaker.DegradedReporter
	quality      QualityModel
	window       time.Duration
	priorityBump int
	penalty      PenaltyPolicy
	now          func() time.Time

	mu       sync.Mutex
	checks   map[string]*check // by proposal id
	byTicket map[string]string

	// proposal id per ticket whose check already resolved
	closed *cache.Cache
	// match detail per proposal id
	results *cache.Cache
}

type Option func(*Coordinator)

func WithRecorder(recorder matchmaker.AnalyticsRecorder) Option {
	return func(c *Coordinator) { c.recorder = recorder }
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithDegradedReporter(reporter matchmaker.DegradedReporter) Option {
	return func(c *Coordinator) { c.degraded = reporter }
}

func WithQualityModel(model QualityModel) Option {
	return func(c *Coordinator) { c.quality = model }
}

// WithWindow sets how long participants have to answer.
func WithWindow(window time.Duration) Option {
	return func(c *Coordinator) { c.window = window }
}

// WithPriorityBump sets the priority added to tickets requeued after a failed
// ready check.
func WithPriorityBump(bump int) Option {
	return func(c *Coordinator) { c.priorityBump = bump }
}

func WithPenaltyPolicy(policy PenaltyPolicy) Option {
	return func(c *Coordinator) { c.penalty = policy }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(reg *registry.Registry, notifier matchmaker.ParticipantNotifier, session matchmaker.SessionService, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:     reg,
		notifier:     notifier,
		session:      session,
		quality:      DefaultQualityModel(),
		window:       constants.DefaultReadyCheckWindow,
		priorityBump: 1,
		penalty:      FixedPenalty(0),
		now:          time.Now,
		checks:       make(map[string]*check),
		byTicket:     make(map[string]string),
		closed:       cache.New(resultTTL, resultTTL),
		results:      cache.New(resultTTL, resultTTL),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Propose opens the ready check of a proposal whose tickets are PROPOSED and
// notifies every ticket. The check resolves as TIMED_OUT when the window ends
// before everyone answered.
func (c *Coordinator) Propose(rootScope *envelope.Scope, proposal models.MatchProposal) error {
	scope := rootScope.NewChildScope("readycheck.Propose").
		WithField("proposalID", proposal.ProposalID)
	defer scope.Finish()
	scope.SetAttributes(envelope.ProposalIDTag, proposal.ProposalID)

	ticketIDs := proposal.TicketIDs()
	chk := &check{
		proposal:  proposal,
		state:     models.ReadyCheckPending,
		deadline:  c.now().Add(c.window),
		responses: make(map[string]models.ParticipantResponse, len(ticketIDs)),
	}
	for _, ticketID := range ticketIDs {
		chk.responses[ticketID] = models.ResponsePending
	}

	c.mu.Lock()
	if _, exists := c.checks[proposal.ProposalID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("ready check of proposal %s already open", proposal.ProposalID)
	}
	c.checks[proposal.ProposalID] = chk
	for _, ticketID := range ticketIDs {
		c.byTicket[ticketID] = proposal.ProposalID
		c.closed.Delete(ticketID)
	}
	timerCtx := context.WithoutCancel(scope.Ctx)
	chk.timer = time.AfterFunc(c.window, func() {
		timerScope := envelope.ChildScopeFromRemoteScope(timerCtx, "readycheck.Timeout")
		defer timerScope.Finish()
		c.timeout(timerScope, proposal.ProposalID)
	})
	c.mu.Unlock()

	var notifyErr error
	for _, ticketID := range ticketIDs {
		if err := c.notifier.Notify(scope.Ctx, ticketID, proposal); err != nil {
			// the participant can still answer, or the check times out
			notifyErr = err
			scope.Log.WithField("ticketID", ticketID).Warnf("unable to notify participant: %v", err)
		}
	}
	c.reportDependency(constants.DependencyNotifier, notifyErr)

	return nil
}

// Accept records the ticket's acceptance. Duplicate answers are ignored.
// Answers after the check resolved return models.ErrReadyCheckClosed.
func (c *Coordinator) Accept(rootScope *envelope.Scope, ticketID string) error {
	scope := rootScope.NewChildScope("readycheck.Accept")
	defer scope.Finish()

	chk, err := c.respond(ticketID, models.ResponseAccepted, false)
	if err != nil || chk == nil {
		return err
	}
	c.confirm(scope, chk)

	return nil
}

// Decline fails the ready check of the ticket's proposal.
func (c *Coordinator) Decline(rootScope *envelope.Scope, ticketID string) error {
	scope := rootScope.NewChildScope("readycheck.Decline")
	defer scope.Finish()

	chk, err := c.respond(ticketID, models.ResponseDeclined, false)
	if err != nil || chk == nil {
		return err
	}
	c.requeue(scope, chk, map[string]bool{ticketID: true})

	return nil
}

// Withdraw fails the ready check of a ticket that left the queue, even when it
// had already accepted.
func (c *Coordinator) Withdraw(rootScope *envelope.Scope, ticketID string) error {
	scope := rootScope.NewChildScope("readycheck.Withdraw")
	defer scope.Finish()

	chk, err := c.respond(ticketID, models.ResponseDeclined, true)
	if err != nil || chk == nil {
		return err
	}
	c.requeue(scope, chk, map[string]bool{ticketID: true})

	return nil
}

// respond records an answer and returns the check when this answer resolved it.
// An earlier acceptance is only replaced when overrideAccept is set.
func (c *Coordinator) respond(ticketID string, response models.ParticipantResponse, overrideAccept bool) (*check, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proposalID, ok := c.byTicket[ticketID]
	if !ok {
		if closedID, found := c.closed.Get(ticketID); found {
			return nil, fmt.Errorf("%w: proposal %s", models.ErrReadyCheckClosed, closedID)
		}
		return nil, fmt.Errorf("%w: no ready check for ticket %s", models.ErrProposalNotFound, ticketID)
	}
	chk := c.checks[proposalID]
	switch previous := chk.responses[ticketID]; {
	case previous == models.ResponsePending:
	case previous == models.ResponseAccepted && overrideAccept:
	default:
		return nil, nil
	}

	chk.responses[ticketID] = response
	switch {
	case response == models.ResponseDeclined:
		chk.state = models.ReadyCheckDeclined
	case chk.allAccepted():
		chk.state = models.ReadyCheckAllAccepted
	default:
		return nil, nil
	}
	c.closeLocked(chk)

	return chk, nil
}

func (c *Coordinator) timeout(scope *envelope.Scope, proposalID string) {
	c.mu.Lock()
	chk, ok := c.checks[proposalID]
	if !ok || chk.resolved {
		c.mu.Unlock()
		return
	}
	chk.state = models.ReadyCheckTimedOut
	c.closeLocked(chk)
	c.mu.Unlock()

	scope.Log.WithField("proposalID", proposalID).Info("ready check timed out")
	c.requeue(scope, chk, nil)
}

// ExpireDue times out every check whose deadline passed by the coordinator's
// clock. Timers do the same on the wall clock.
func (c *Coordinator) ExpireDue(rootScope *envelope.Scope) int {
	scope := rootScope.NewChildScope("readycheck.ExpireDue")
	defer scope.Finish()

	now := c.now()
	due := make([]string, 0)
	c.mu.Lock()
	for proposalID, chk := range c.checks {
		if !chk.resolved && !now.Before(chk.deadline) {
			due = append(due, proposalID)
		}
	}
	c.mu.Unlock()

	for _, proposalID := range due {
		c.timeout(scope, proposalID)
	}
	return len(due)
}

// closeLocked marks the check resolved. Exactly one caller gets here per check.
func (c *Coordinator) closeLocked(chk *check) {
	chk.resolved = true
	if chk.timer != nil {
		chk.timer.Stop()
	}
	delete(c.checks, chk.proposal.ProposalID)
	for ticketID := range chk.responses {
		if c.byTicket[ticketID] == chk.proposal.ProposalID {
			delete(c.byTicket, ticketID)
		}
		c.closed.SetDefault(ticketID, chk.proposal.ProposalID)
	}
}

// confirm moves every ticket to MATCHED and commits the match.
func (c *Coordinator) confirm(scope *envelope.Scope, chk *check) {
	proposal := chk.proposal
	now := c.now()
	ticketIDs := proposal.TicketIDs()

	for i, ticketID := range ticketIDs {
		_, err := c.registry.Transition(scope, ticketID, models.StatusProposed, models.StatusMatched,
			registry.WithReason("all accepted"))
		if err == nil {
			continue
		}

		// a cancel that arrived during the check counts as a decline
		scope.Log.WithField("ticketID", ticketID).Infof("ticket left the proposal before matching: %v", err)
		c.releaseAll(scope, ticketIDs[:i], models.StatusMatched, nil, "ready check declined")
		c.releaseAll(scope, ticketIDs[i:], models.StatusProposed, map[string]bool{ticketID: true}, "ready check declined")
		c.observeOutcome(proposal, models.ReadyCheckDeclined)
		return
	}
	c.observeOutcome(proposal, models.ReadyCheckAllAccepted)

	parties := proposal.Parties()
	latency := Latency(proposal.Region, parties)
	ratingSpread := RatingSpread(proposal.Teams)
	match := models.MatchDetail{
		MatchID:         common.GenerateSortableID(now),
		ProposalID:      proposal.ProposalID,
		ActivityType:    proposal.ActivityType,
		Mode:            proposal.Mode,
		Region:          proposal.Region,
		CrossRegion:     proposal.CrossRegion,
		Teams:           proposal.Teams,
		Status:          models.MatchStatusMatched,
		ReadyCheck:      chk.snapshot(now),
		Quality:         c.quality.Score(ratingSpread, float64(latency.Spread())),
		RatingSpread:    ratingSpread,
		LatencyProfile:  latency,
		LockingDeadline: chk.deadline,
		CreatedAt:       now,
	}
	if c.recorder != nil {
		c.recorder.RecordMatch(models.QualitySample{
			At:            now,
			MatchID:       match.MatchID,
			ActivityType:  match.ActivityType,
			Mode:          match.Mode,
			Region:        match.Region,
			Quality:       match.Quality,
			RatingSpread:  match.RatingSpread,
			LatencySpread: float64(latency.Spread()),
		})
	}
	if c.metrics != nil {
		c.metrics.ObserveMatchQuality(match.ActivityType, match.Mode, match.Quality)
	}

	scope = scope.WithField("matchID", match.MatchID)
	err := c.session.Commit(scope.Ctx, match)
	if err != nil {
		result := constants.CommitResultError
		if errors.Is(err, models.ErrSessionRejected) {
			result = constants.CommitResultRejected
			c.reportDependency(constants.DependencySessionService, nil)
		} else {
			c.reportDependency(constants.DependencySessionService, err)
		}
		scope.Log.Warnf("session commit failed (%s): %v", result, err)
		c.observeCommit(match, result)

		c.releaseAll(scope, ticketIDs, models.StatusMatched, nil, "session "+result)
		match.Status = models.MatchStatusCancelled
		c.results.SetDefault(proposal.ProposalID, match)
		return
	}
	c.reportDependency(constants.DependencySessionService, nil)

	for _, ticketID := range ticketIDs {
		if _, err = c.registry.Transition(scope, ticketID, models.StatusMatched, models.StatusCommitted,
			registry.WithReason("committed in "+match.MatchID)); err != nil {
			scope.Log.WithField("ticketID", ticketID).Errorf("unable to commit ticket: %v", err)
		}
	}
	match.Status = models.MatchStatusCommitted
	c.results.SetDefault(proposal.ProposalID, match)
	c.observeCommit(match, constants.CommitResultOK)
	scope.Log.Infof("match committed with quality %.3f", match.Quality)
}

// requeue returns the proposal's tickets to the queue after a decline or a
// timeout. Decliners are held for the penalty.
func (c *Coordinator) requeue(scope *envelope.Scope, chk *check, decliners map[string]bool) {
	reason := "ready check " + string(chk.state)
	c.releaseAll(scope, chk.proposal.TicketIDs(), models.StatusProposed, decliners, reason)
	c.observeOutcome(chk.proposal, chk.state)
	c.results.SetDefault(chk.proposal.ProposalID, models.MatchDetail{
		ProposalID:      chk.proposal.ProposalID,
		ActivityType:    chk.proposal.ActivityType,
		Mode:            chk.proposal.Mode,
		Region:          chk.proposal.Region,
		CrossRegion:     chk.proposal.CrossRegion,
		Teams:           chk.proposal.Teams,
		Status:          models.MatchStatusCancelled,
		ReadyCheck:      chk.snapshot(c.now()),
		LockingDeadline: chk.deadline,
		CreatedAt:       chk.proposal.CreatedAt,
	})
}

func (c *Coordinator) releaseAll(scope *envelope.Scope, ticketIDs []string, from models.Status, decliners map[string]bool, reason string) {
	now := c.now()
	for _, ticketID := range ticketIDs {
		opts := []registry.TransitionOption{registry.WithPriorityBump(c.priorityBump), registry.WithReason(reason)}
		if decliners[ticketID] {
			if hold := c.penalty(ticketID); hold > 0 {
				opts = append(opts, registry.WithHoldUntil(now.Add(hold)))
			}
		}
		if _, err := c.registry.Release(scope, ticketID, from, opts...); err != nil {
			scope.Log.WithField("ticketID", ticketID).Warnf("unable to requeue ticket: %v", err)
		}
	}
}

// Result returns the outcome of a resolved proposal.
func (c *Coordinator) Result(proposalID string) (models.MatchDetail, bool) {
	value, ok := c.results.Get(proposalID)
	if !ok {
		return models.MatchDetail{}, false
	}
	return value.(models.MatchDetail), true
}

// Pending returns the number of open checks.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checks)
}

// Close stops every timer. Open checks stay unresolved.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chk := range c.checks {
		chk.timer.Stop()
	}
}

func (c *Coordinator) observeOutcome(proposal models.MatchProposal, state models.ReadyCheckState) {
	if c.metrics != nil {
		c.metrics.AddReadyCheckOutcome(proposal.ActivityType, proposal.Mode, string(state))
	}
}

func (c *Coordinator) observeCommit(match models.MatchDetail, result string) {
	if c.metrics != nil {
		c.metrics.AddCommitResult(match.ActivityType, match.Mode, result)
	}
}

func (c *Coordinator) reportDependency(dependency string, err error) {
	if c.degraded == nil {
		return
	}
	if err != nil {
		c.degraded.SetDegraded(dependency, err)
		return
	}
	c.degraded.SetHealthy(dependency)
}
