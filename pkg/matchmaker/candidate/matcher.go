// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package candidate assembles match proposals out of compatible QUEUED
// tickets and claims them in the registry.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"gopkg.in/typ.v4/slices"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/common"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/utils/partition"
)

const maxBalanceIteration = 20_000

type poolKey struct {
	mode   models.ModeKey
	region string
}

func (k poolKey) String() string {
	return k.mode.String() + "/" + k.region
}

type Matcher struct {
	registry         *registry.Registry
	sink             matchmaker.ProposalSink
	ratings          matchmaker.RatingStore
	comparator       matchmaker.RatingComparator
	metrics          metrics.MatchmakingMetrics
	degraded         matchmaker.DegradedReporter
	maxStaleness     time.Duration
	maxRetries       int
	crossRegionAfter int
	interval         time.Duration
	now              func() time.Time

	mu           sync.Mutex
	scanID       int64
	failedPasses map[string]int
}

type Option func(*Matcher)

// WithRatingStore resolves ticket ratings from the store on every scan.
// Without a store the ticket's BaseRating is used.
func WithRatingStore(store matchmaker.RatingStore, maxStaleness time.Duration) Option {
	return func(m *Matcher) {
		m.ratings = store
		m.maxStaleness = maxStaleness
	}
}

func WithComparator(comparator matchmaker.RatingComparator) Option {
	return func(m *Matcher) { m.comparator = comparator }
}

func WithMetrics(mm metrics.MatchmakingMetrics) Option {
	return func(m *Matcher) { m.metrics = mm }
}

func WithDegradedReporter(reporter matchmaker.DegradedReporter) Option {
	return func(m *Matcher) { m.degraded = reporter }
}

// WithMaxRetries bounds how many times a pool is rebuilt after claim
// conflicts within one scan.
func WithMaxRetries(retries int) Option {
	return func(m *Matcher) { m.maxRetries = retries }
}

// WithCrossRegionAfter sets how many scans a ticket must stay unmatched in
// its own region before it joins the cross-region pool.
func WithCrossRegionAfter(passes int) Option {
	return func(m *Matcher) { m.crossRegionAfter = passes }
}

func WithInterval(interval time.Duration) Option {
	return func(m *Matcher) { m.interval = interval }
}

func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

func New(reg *registry.Registry, sink matchmaker.ProposalSink, opts ...Option) *Matcher {
	m := &Matcher{
		registry:         reg,
		sink:             sink,
		comparator:       matchmaker.LinearComparator{},
		maxRetries:       3,
		crossRegionAfter: 3,
		interval:         constants.DefaultScanInterval,
		now:              time.Now,
		failedPasses:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run scans until the context ends.
func (m *Matcher) Run(rootScope *envelope.Scope) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootScope.Ctx.Done():
			return nil
		case <-ticker.C:
			m.Scan(rootScope)
		}
	}
}

// Scan runs one matching pass over the registry snapshot. Scans never overlap.
func (m *Matcher) Scan(rootScope *envelope.Scope) *matchmaker.WorkerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	scope := rootScope.NewChildScope("candidate.Scan")
	defer scope.Finish()

	ctx, cancel := context.WithTimeout(scope.Ctx, constants.RegistryLockTimeLimit)
	defer cancel()

	start := time.Now()
	now := m.now()
	m.scanID++
	info := matchmaker.NewWorkerInfo(constants.ScanFunction, m.scanID, now)

	snapshot := m.registry.Snapshot()
	info.TotalTicketScanned = len(snapshot)
	m.reportQueueSizes(snapshot)

	candidates := m.resolve(scope, snapshot, now, info)

	pools := make(map[poolKey][]candidate)
	for _, c := range candidates {
		key := poolKey{mode: models.ModeKey{ActivityType: c.ticket.ActivityType, Mode: c.ticket.Mode}, region: c.ticket.Region}
		pools[key] = append(pools[key], c)
	}
	info.TotalPartitions = len(pools)

	matched := make(map[string]bool)
	for _, key := range sortedKeys(pools) {
		if ctx.Err() != nil {
			scope.Log.Warn("scan time limit reached, remaining pools wait for the next scan")
			break
		}
		m.matchPool(ctx, scope, key, pools[key], matched, now, info)
	}

	// tickets still waiting count one more failed pass
	passes := make(map[string]int)
	cross := make(map[poolKey][]candidate)
	for _, c := range candidates {
		id := c.ticket.TicketID
		if matched[id] {
			continue
		}
		passes[id] = m.failedPasses[id] + 1
		if c.ticket.AllowCrossRegion && passes[id] >= m.crossRegionAfter {
			key := poolKey{mode: models.ModeKey{ActivityType: c.ticket.ActivityType, Mode: c.ticket.Mode}, region: constants.AnyRegion}
			cross[key] = append(cross[key], c)
		}
	}
	info.CrossRegionPools = len(cross)
	for _, key := range sortedKeys(cross) {
		if ctx.Err() != nil {
			break
		}
		m.matchPool(ctx, scope, key, cross[key], matched, now, info)
	}
	for id := range matched {
		delete(passes, id)
	}
	m.failedPasses = passes

	if m.metrics != nil {
		m.metrics.AddElapsedTimeMs("", "", constants.ScanFunction, time.Since(start))
	}
	scope.Log.WithFields(info.Fields()).Debug("scan done")

	return info
}

// resolve looks up the rating of every ticket. Tickets whose rating is
// unknown sit this scan out.
func (m *Matcher) resolve(scope *envelope.Scope, tickets []models.Ticket, now time.Time, info *matchmaker.WorkerInfo) []candidate {
	result := make([]candidate, 0, len(tickets))

	var lastErr error
	ratingOK := false
	for _, ticket := range tickets {
		rating := ticket.BaseRating
		if m.ratings != nil {
			profile, err := matchmaker.PartyProfile(scope.Ctx, m.ratings, ticket.Members(), ticket.ActivityType, now, m.maxStaleness)
			if err != nil {
				lastErr = err
				info.RatingFailures++
				reason := constants.ReasonRatingUnavailable
				if errors.Is(err, models.ErrRatingStale) {
					reason = constants.ReasonRatingStale
				}
				if m.metrics != nil {
					m.metrics.AddUnmatchedReason(ticket.ActivityType, ticket.Mode, reason)
				}
				scope.Log.WithField("ticketID", ticket.TicketID).Debugf("skipping ticket: %v", err)
				continue
			}
			ratingOK = true
			rating = profile.Rating
		}

		result = append(result, candidate{
			ticket: ticket,
			rating: rating,
			window: m.comparator.Window(rating, ticket.CurrentRatingRange),
			size:   ticket.PlayerCount(),
		})
	}

	if m.degraded != nil {
		switch {
		case lastErr != nil:
			m.degraded.SetDegraded(constants.DependencyRatingStore, lastErr)
		case ratingOK:
			m.degraded.SetHealthy(constants.DependencyRatingStore)
		}
	}

	return result
}

// matchPool builds as many proposals as the pool allows.
func (m *Matcher) matchPool(ctx context.Context, rootScope *envelope.Scope, key poolKey, pool []candidate, matched map[string]bool, now time.Time, info *matchmaker.WorkerInfo) {
	scope := rootScope.NewChildScope("candidate.matchPool").
		WithField("pool", key.String())
	defer scope.Finish()
	scope.SetAttributes(envelope.ModeTag, key.mode.String())
	scope.SetAttributes(envelope.RegionTag, key.region)

	start := time.Now()
	rule, ok := m.registry.Rules().Lookup(key.mode.ActivityType, key.mode.Mode)
	if !ok {
		return
	}

	remaining := slices.Filter(pool, func(c candidate) bool {
		return !matched[c.ticket.TicketID]
	})
	remaining = pie.SortUsing(remaining, func(a, b candidate) bool {
		if a.ticket.Priority != b.ticket.Priority {
			return a.ticket.Priority > b.ticket.Priority
		}
		if !a.ticket.QueuedAt.Equal(b.ticket.QueuedAt) {
			return a.ticket.QueuedAt.Before(b.ticket.QueuedAt)
		}
		return a.ticket.TicketID < b.ticket.TicketID
	})

	retries := 0
	for len(remaining) > 0 && ctx.Err() == nil {
		members, assignment := findGroup(rule, remaining)
		if members == nil {
			break
		}

		proposal := m.buildProposal(ctx, rule, key, members, assignment, now)
		conflict, err := m.claim(scope, proposal.ProposalID, members)
		if err != nil {
			info.Add(func(info *matchmaker.WorkerInfo) { info.ClaimConflicts++ })
			if m.metrics != nil {
				m.metrics.AddUnmatchedReason(rule.ActivityType, rule.Mode, constants.ReasonProposalConflict)
			}
			scope.Log.WithField("ticketID", conflict).Debugf("claim conflict, retrying without ticket: %v", err)

			remaining = slices.Filter(remaining, func(c candidate) bool {
				return c.ticket.TicketID != conflict
			})
			retries++
			if retries > m.maxRetries {
				break
			}
			continue
		}

		if err = m.sink.Propose(scope, proposal); err != nil {
			scope.Log.WithField("proposalID", proposal.ProposalID).Errorf("unable to start ready check: %v", err)
			m.release(scope, proposal.TicketIDs(), "ready check unavailable")
			break
		}

		for _, c := range members {
			matched[c.ticket.TicketID] = true
		}
		info.Add(func(info *matchmaker.WorkerInfo) {
			info.ProposalCreated++
			info.TicketProposed += len(members)
		})
		if m.metrics != nil {
			m.metrics.AddProposal(rule.ActivityType, rule.Mode, proposal.CrossRegion)
		}
		scope.Log.WithField("proposalID", proposal.ProposalID).Infof("proposed match of %d tickets", len(members))

		remaining = slices.Filter(remaining, func(c candidate) bool {
			return !matched[c.ticket.TicketID]
		})
	}

	if m.metrics == nil {
		return
	}
	if len(remaining) > 0 {
		reason := constants.ReasonNoCompatibleGroup
		if players(remaining) < rule.MatchSize() {
			reason = constants.ReasonNotEnoughTickets
		}
		m.metrics.AddUnmatchedReason(rule.ActivityType, rule.Mode, reason)
	}
	m.metrics.AddElapsedTimeMs(rule.ActivityType, rule.Mode, constants.ScanFunction, time.Since(start))
}

// claim moves every member to PROPOSED. On the first failure the members
// already claimed go back to the queue and the conflicting ticket is returned.
func (m *Matcher) claim(scope *envelope.Scope, proposalID string, members []candidate) (string, error) {
	claimed := make([]string, 0, len(members))
	for _, c := range members {
		_, err := m.registry.Transition(scope, c.ticket.TicketID, models.StatusQueued, models.StatusProposed,
			registry.WithProposalID(proposalID),
			registry.WithReason("proposed in "+proposalID))
		if err != nil {
			m.release(scope, claimed, "claim conflict")
			return c.ticket.TicketID, err
		}
		claimed = append(claimed, c.ticket.TicketID)
	}
	return "", nil
}

func (m *Matcher) release(scope *envelope.Scope, ticketIDs []string, reason string) {
	for _, ticketID := range ticketIDs {
		if _, err := m.registry.Release(scope, ticketID, models.StatusProposed, registry.WithReason(reason)); err != nil {
			scope.Log.WithField("ticketID", ticketID).Warnf("unable to release ticket: %v", err)
		}
	}
}

func (m *Matcher) buildProposal(ctx context.Context, rule models.ModeRule, key poolKey, members []candidate, assignment []int, now time.Time) models.MatchProposal {
	proposal := models.MatchProposal{
		ProposalID:   common.GenerateSortableID(now),
		ActivityType: rule.ActivityType,
		Mode:         rule.Mode,
		Region:       key.region,
		Teams:        make([]models.Team, rule.TeamCount),
		CreatedAt:    now,
	}
	if key.region == constants.AnyRegion {
		proposal.CrossRegion = true
		proposal.Region = chooseRegion(members)
	}

	assignment = balance(ctx, rule, members, assignment)
	for i := range proposal.Teams {
		proposal.Teams[i].TeamID = fmt.Sprintf("team-%d", i+1)
	}
	for i, c := range members {
		team := &proposal.Teams[assignment[i]]
		team.Parties = append(team.Parties, models.PartyRef{
			TicketID:  c.ticket.TicketID,
			PartyID:   c.ticket.PartyID,
			PlayerIDs: c.ticket.Members(),
			Rating:    c.rating,
			Region:    c.ticket.Region,
			Latencies: c.ticket.Latencies,
			Metadata:  c.ticket.Metadata,
		})
	}

	return proposal
}

// balance splits the members into teams of even average rating, keeping
// parties whole. The packing assignment is kept when no even split exists.
func balance(ctx context.Context, rule models.ModeRule, members []candidate, fallback []int) []int {
	if rule.TeamCount <= 1 {
		return fallback
	}

	items := make([]partition.Item, len(members))
	for i, c := range members {
		items[i] = partition.Party{Index: i, Size: c.size, Rating: c.rating}
	}
	result := partition.Balance(items, rule.TeamCount, partition.Options{
		Ctx:          ctx,
		MaxCount:     rule.TeamSize,
		MaxIteration: maxBalanceIteration,
	})
	if !result.Found() || result.BestCountDiff != 0 {
		return fallback
	}

	assignment := make([]int, len(members))
	for team, parties := range result.BestPartitions {
		for _, item := range parties {
			assignment[item.ID()] = team
		}
	}
	return assignment
}

// chooseRegion picks the region every party reported a latency for with the
// lowest average latency. The first party's region is used when there is none.
func chooseRegion(members []candidate) string {
	regions := pie.Keys(members[0].ticket.Latencies)
	sort.Strings(regions)

	best, bestAvg := members[0].ticket.Region, -1.0
	for _, region := range regions {
		total, shared := 0, true
		for _, c := range members {
			latency, ok := c.ticket.Latencies[region]
			if !ok {
				shared = false
				break
			}
			total += latency
		}
		if !shared {
			continue
		}
		avg := float64(total) / float64(len(members))
		if bestAvg < 0 || avg < bestAvg {
			best, bestAvg = region, avg
		}
	}
	return best
}

func (m *Matcher) reportQueueSizes(snapshot []models.Ticket) {
	if m.metrics == nil {
		return
	}
	counts := make(map[poolKey]int)
	for _, ticket := range snapshot {
		counts[poolKey{mode: models.ModeKey{ActivityType: ticket.ActivityType, Mode: ticket.Mode}, region: ticket.Region}]++
	}
	for key, count := range counts {
		m.metrics.TicketsInQueue(key.mode.ActivityType, key.mode.Mode, key.region, count)
	}
}

func players(pool []candidate) int {
	total := 0
	for _, c := range pool {
		total += c.size
	}
	return total
}

func sortedKeys(pools map[poolKey][]candidate) []poolKey {
	keys := pie.Keys(pools)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
