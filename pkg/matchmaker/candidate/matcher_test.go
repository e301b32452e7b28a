// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package candidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-openapi/swag"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/testsetup"
)

// hookedStore runs onGet before every lookup.
type hookedStore struct {
	*testsetup.StubRatingStore
	onGet func(playerID string)
}

func (s hookedStore) GetRating(ctx context.Context, playerID string, activityType string) (models.RatingProfile, error) {
	if s.onGet != nil {
		s.onGet(playerID)
	}
	return s.StubRatingStore.GetRating(ctx, playerID, activityType)
}

func teamRule() models.ModeRule {
	return models.ModeRule{
		ActivityType:       "arena",
		Mode:               "ranked-doubles",
		TeamCount:          2,
		TeamSize:           2,
		MaxPartySize:       2,
		InitialRatingRange: 400,
		MaxRatingRange:     400,
		ExpansionStep:      25,
		TicketTTLSeconds:   600,
	}
}

func newRegistry(clock *testsetup.Clock) *registry.Registry {
	rules := testsetup.MustModeRules(testsetup.DuelRule(), testsetup.SquadRule(), teamRule())
	return registry.New(rules, registry.WithClock(clock.Now), registry.WithMetrics(testsetup.NewMetrics()))
}

func newMatcher(reg *registry.Registry, sink *testsetup.RecordingSink, clock *testsetup.Clock, opts ...Option) *Matcher {
	return New(reg, sink, append([]Option{WithClock(clock.Now), WithMetrics(testsetup.NewMetrics())}, opts...)...)
}

func duel(playerID string, rating float64) models.QueueRequest {
	return models.QueueRequest{
		PlayerID:     playerID,
		ActivityType: "arena",
		Mode:         "ranked-duel",
		Region:       "eu",
		BaseRating:   swag.Float64(rating),
	}
}

func admit(t *testing.T, reg *registry.Registry, request models.QueueRequest) models.Ticket {
	t.Helper()
	ticket, err := reg.Admit(testsetup.NewTestScope(), request)
	require.NoError(t, err)
	return ticket
}

func status(t *testing.T, reg *registry.Registry, ticketID string) models.Status {
	t.Helper()
	ticket, err := reg.Get(ticketID)
	require.NoError(t, err)
	return ticket.Status
}

func TestScan_MatchesOnceWindowsOverlap(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	ratings := testsetup.NewStubRatingStore().
		SetRating("low", "arena", 1000).
		SetRating("high", "arena", 1300)
	matcher := newMatcher(reg, sink, clock, WithRatingStore(ratings, 0))
	scope := testsetup.NewTestScope()

	low := admit(t, reg, duel("low", 0))
	high := admit(t, reg, duel("high", 0))

	info := matcher.Scan(scope)
	assert.Equal(t, 0, info.ProposalCreated)
	assert.Empty(t, sink.Proposals())

	// two expansion ticks of +25
	for _, id := range []string{low.TicketID, high.TicketID} {
		_, err := reg.Expand(scope, id, 1, 125, clock.Now())
		require.NoError(t, err)
		_, err = reg.Expand(scope, id, 2, 150, clock.Now())
		require.NoError(t, err)
	}

	info = matcher.Scan(scope)
	require.Equal(t, 1, info.ProposalCreated)

	proposals := sink.Proposals()
	require.Len(t, proposals, 1)
	proposal := proposals[0]
	assert.ElementsMatch(t, []string{low.TicketID, high.TicketID}, proposal.TicketIDs())
	assert.Len(t, proposal.Teams, 2)
	assert.Equal(t, "eu", proposal.Region)
	assert.False(t, proposal.CrossRegion)

	for _, id := range proposal.TicketIDs() {
		ticket, err := reg.Get(id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusProposed, ticket.Status)
		assert.Equal(t, proposal.ProposalID, ticket.ProposalID)
	}
}

func TestScan_KeepsPartiesWhole(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	matcher := newMatcher(reg, sink, clock)

	party := func(leader string, size int) models.QueueRequest {
		members := []string{leader}
		for i := 1; i < size; i++ {
			members = append(members, fmt.Sprintf("%s-%d", leader, i))
		}
		return models.QueueRequest{
			PlayerID:     leader,
			PartyID:      "party-" + leader,
			PartySize:    swag.Int(size),
			MemberIDs:    members,
			ActivityType: "arena",
			Mode:         "ranked-squad",
			Region:       "eu",
			BaseRating:   swag.Float64(1000),
		}
	}

	sizes := map[string]int{"a": 3, "b": 2, "c": 2, "d": 2, "e": 1}
	tickets := make(map[string]models.Ticket)
	for leader, size := range sizes {
		tickets[leader] = admit(t, reg, party(leader, size))
	}

	info := matcher.Scan(testsetup.NewTestScope())
	require.Equal(t, 1, info.ProposalCreated)

	proposal := sink.Proposals()[0]
	seen := make(map[string]bool)
	for _, team := range proposal.Teams {
		assert.Equal(t, 5, team.PlayerCount())
		for _, ref := range team.Parties {
			assert.False(t, seen[ref.TicketID])
			seen[ref.TicketID] = true
		}
	}
	for leader, ticket := range tickets {
		assert.True(t, seen[ticket.TicketID], "party %s missing", leader)
	}
	assert.Len(t, proposal.PlayerIDs(), 10)
}

func TestScan_BalancesTeams(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	matcher := newMatcher(reg, sink, clock)

	for i, rating := range []float64{1000, 1100, 1200, 1300} {
		admit(t, reg, models.QueueRequest{
			PlayerID:     fmt.Sprintf("p%d", i),
			ActivityType: "arena",
			Mode:         "ranked-doubles",
			Region:       "eu",
			BaseRating:   swag.Float64(rating),
		})
	}

	matcher.Scan(testsetup.NewTestScope())
	require.Len(t, sink.Proposals(), 1)

	teams := sink.Proposals()[0].Teams
	require.Len(t, teams, 2)
	assert.Equal(t, teams[0].AverageRating(), teams[1].AverageRating())
}

func TestScan_HighestPriorityFirst(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	matcher := newMatcher(reg, sink, clock)

	first := admit(t, reg, duel("first", 1000))
	clock.Advance(time.Second)
	second := admit(t, reg, duel("second", 1000))
	clock.Advance(time.Second)
	urgent := duel("urgent", 1000)
	urgent.Priority = swag.Int(5)
	bumped := admit(t, reg, urgent)

	matcher.Scan(testsetup.NewTestScope())

	require.Len(t, sink.Proposals(), 1)
	assert.ElementsMatch(t, []string{bumped.TicketID, first.TicketID}, sink.Proposals()[0].TicketIDs())
	assert.Equal(t, models.StatusQueued, status(t, reg, second.TicketID))
}

func TestScan_FailsClosedOnRatingErrors(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	ratings := testsetup.NewStubRatingStore().SetRating("p1", "arena", 1000)
	ratings.Fail("p2", errors.New("timeout"))
	matcher := newMatcher(reg, sink, clock, WithRatingStore(ratings, time.Minute))

	admit(t, reg, duel("p1", 0))
	admit(t, reg, duel("p2", 0))

	info := matcher.Scan(testsetup.NewTestScope())
	assert.Equal(t, 1, info.RatingFailures)
	assert.Empty(t, sink.Proposals())
}

func TestScan_RetriesWithoutConflictingTicket(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	scope := testsetup.NewTestScope()

	first := admit(t, reg, duel("first", 1000))
	clock.Advance(time.Second)
	gone := admit(t, reg, duel("gone", 1000))
	clock.Advance(time.Second)
	third := admit(t, reg, duel("third", 1000))

	var once sync.Once
	store := hookedStore{
		StubRatingStore: testsetup.NewStubRatingStore().
			SetRating("first", "arena", 1000).
			SetRating("gone", "arena", 1000).
			SetRating("third", "arena", 1000),
		onGet: func(playerID string) {
			if playerID == "third" {
				// cancelled after the snapshot was taken
				once.Do(func() { _, _ = reg.Cancel(scope, gone.TicketID) })
			}
		},
	}
	matcher := newMatcher(reg, sink, clock, WithRatingStore(store, 0))

	info := matcher.Scan(scope)

	assert.Equal(t, 1, info.ClaimConflicts)
	require.Len(t, sink.Proposals(), 1)
	assert.ElementsMatch(t, []string{first.TicketID, third.TicketID}, sink.Proposals()[0].TicketIDs())

	stored, err := reg.Get(first.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposed, stored.Status)
	statuses := make([]models.Status, 0, len(stored.History))
	for _, change := range stored.History {
		statuses = append(statuses, change.To)
	}
	assert.Equal(t, []models.Status{models.StatusQueued, models.StatusProposed, models.StatusQueued, models.StatusProposed}, statuses)
}

func TestScan_ReleasesTicketsWhenSinkFails(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{Err: errors.New("coordinator closed")}
	matcher := newMatcher(reg, sink, clock)

	a := admit(t, reg, duel("a", 1000))
	b := admit(t, reg, duel("b", 1000))

	info := matcher.Scan(testsetup.NewTestScope())

	assert.Equal(t, 0, info.ProposalCreated)
	assert.Equal(t, models.StatusQueued, status(t, reg, a.TicketID))
	assert.Equal(t, models.StatusQueued, status(t, reg, b.TicketID))
}

func TestScan_CrossRegionAfterFailedPasses(t *testing.T) {
	clock := testsetup.NewClock()
	reg := newRegistry(clock)
	sink := &testsetup.RecordingSink{}
	matcher := newMatcher(reg, sink, clock, WithCrossRegionAfter(2))
	scope := testsetup.NewTestScope()

	eu := duel("eu-player", 1000)
	eu.AllowCrossRegion = true
	eu.Latencies = map[string]int{"eu": 30, "us": 80}
	us := duel("us-player", 1000)
	us.Region = "us"
	us.AllowCrossRegion = true
	us.Latencies = map[string]int{"eu": 90, "us": 20}
	homebody := duel("ap-player", 1000)
	homebody.Region = "ap"

	euTicket := admit(t, reg, eu)
	usTicket := admit(t, reg, us)
	apTicket := admit(t, reg, homebody)

	matcher.Scan(scope)
	assert.Empty(t, sink.Proposals())

	info := matcher.Scan(scope)
	assert.Equal(t, 1, info.CrossRegionPools)
	require.Len(t, sink.Proposals(), 1)

	proposal := sink.Proposals()[0]
	assert.True(t, proposal.CrossRegion)
	assert.Equal(t, "us", proposal.Region)
	assert.ElementsMatch(t, []string{euTicket.TicketID, usTicket.TicketID}, proposal.TicketIDs())
	assert.Equal(t, models.StatusQueued, status(t, reg, apTicket.TicketID))
}

func TestScan_ConcurrentMatchersNeverDoubleBook(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	reg := newRegistry(g.Clock)
	sink := &testsetup.RecordingSink{}
	scope := testsetup.NewQuietTestScope()

	const players = 40
	for i := 0; i < players; i++ {
		_, err := reg.Admit(scope, duel(fmt.Sprintf("p%02d", i), 1000))
		g.Expect(err).ToNot(HaveOccurred())
	}

	matchers := []*Matcher{newMatcher(reg, sink, g.Clock), newMatcher(reg, sink, g.Clock)}
	var wg sync.WaitGroup
	for _, m := range matchers {
		wg.Add(1)
		go func(m *Matcher) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				m.Scan(scope)
			}
		}(m)
	}
	wg.Wait()
	matchers[0].Scan(scope)

	seen := make(map[string]string)
	for _, proposal := range sink.Proposals() {
		for _, id := range proposal.TicketIDs() {
			g.Expect(seen).ToNot(HaveKey(id))
			seen[id] = proposal.ProposalID
		}
	}
	g.Expect(seen).To(HaveLen(players))
	for id, proposalID := range seen {
		ticket, err := reg.Get(id)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(ticket.ProposalID).To(Equal(proposalID))
	}
}

func TestPack(t *testing.T) {
	type testCase struct {
		Name      string
		Sizes     []int
		TeamCount int
		TeamSize  int
		Want      bool
	}

	tests := []testCase{
		{Name: "solos", Sizes: []int{1, 1}, TeamCount: 2, TeamSize: 1, Want: true},
		{Name: "too many solos", Sizes: []int{1, 1, 1}, TeamCount: 2, TeamSize: 1, Want: false},
		{Name: "full squads", Sizes: []int{3, 2, 2, 2, 1}, TeamCount: 2, TeamSize: 5, Want: true},
		{Name: "threes do not fit fives", Sizes: []int{3, 3, 3}, TeamCount: 2, TeamSize: 5, Want: false},
		{Name: "partial group", Sizes: []int{4, 4}, TeamCount: 2, TeamSize: 5, Want: true},
		{Name: "party larger than team", Sizes: []int{6}, TeamCount: 2, TeamSize: 5, Want: false},
		{Name: "empty", Sizes: nil, TeamCount: 2, TeamSize: 5, Want: true},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assignment, ok := pack(test.Sizes, test.TeamCount, test.TeamSize)
			require.Equal(t, test.Want, ok)
			if !ok {
				return
			}
			load := make([]int, test.TeamCount)
			for i, team := range assignment {
				load[team] += test.Sizes[i]
			}
			for _, l := range load {
				assert.LessOrEqual(t, l, test.TeamSize)
			}
		})
	}
}
