// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-openapi/swag"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/testsetup"
)

type memoryJournal struct {
	mu      sync.Mutex
	records map[string]models.Ticket
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{records: make(map[string]models.Ticket)}
}

func (j *memoryJournal) Save(_ context.Context, ticket models.Ticket) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if existing, ok := j.records[ticket.TicketID]; ok && existing.Revision >= ticket.Revision {
		return nil
	}
	j.records[ticket.TicketID] = ticket
	return nil
}

func (j *memoryJournal) Load(_ context.Context) ([]models.Ticket, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	tickets := make([]models.Ticket, 0, len(j.records))
	for _, ticket := range j.records {
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (j *memoryJournal) get(ticketID string) (models.Ticket, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ticket, ok := j.records[ticketID]
	return ticket, ok
}

func newTestRegistry(clock *testsetup.Clock, opts ...Option) *Registry {
	rules := testsetup.MustModeRules(testsetup.DuelRule(), testsetup.SquadRule(), models.ModeRule{
		ActivityType:         "raid",
		Mode:                 "normal",
		TeamCount:            1,
		TeamSize:             4,
		MaxPartySize:         4,
		MaxRatingRange:       100,
		AllowConcurrentQueue: true,
	}, models.ModeRule{
		ActivityType:         "dungeon",
		Mode:                 "normal",
		TeamCount:            1,
		TeamSize:             3,
		MaxPartySize:         3,
		MaxRatingRange:       100,
		AllowConcurrentQueue: true,
	})
	return New(rules, append([]Option{WithClock(clock.Now), WithMetrics(testsetup.NewMetrics())}, opts...)...)
}

func duelRequest(playerID string) models.QueueRequest {
	return models.QueueRequest{PlayerID: playerID, ActivityType: "arena", Mode: "ranked-duel", Region: "eu"}
}

func squadRequest(leader string, members ...string) models.QueueRequest {
	return models.QueueRequest{
		PlayerID:     leader,
		PartyID:      "party-" + leader,
		PartySize:    swag.Int(len(members) + 1),
		MemberIDs:    append([]string{leader}, members...),
		ActivityType: "arena",
		Mode:         "ranked-squad",
		Region:       "eu",
	}
}

func TestAdmit_Rejections(t *testing.T) {
	type testCase struct {
		Name    string
		Request models.QueueRequest
		Reason  models.RejectionReason
	}

	tests := []testCase{
		{
			Name: "party of 6 on a mode capped at 5",
			Request: models.QueueRequest{
				PlayerID: "p1", PartyID: "party", PartySize: swag.Int(6),
				ActivityType: "arena", Mode: "ranked-squad",
			},
			Reason: models.RejectionPartyTooLarge,
		},
		{
			Name: "min level above max level",
			Request: models.QueueRequest{
				PlayerID: "p1", ActivityType: "arena", Mode: "ranked-duel",
				MinLevel: swag.Int(30), MaxLevel: swag.Int(10),
			},
			Reason: models.RejectionInvalidLevelRange,
		},
		{
			Name:    "unknown mode",
			Request: models.QueueRequest{PlayerID: "p1", ActivityType: "arena", Mode: "casual"},
			Reason:  models.RejectionUnsupportedMode,
		},
		{
			Name:    "missing player",
			Request: models.QueueRequest{ActivityType: "arena", Mode: "ranked-duel"},
			Reason:  models.RejectionInvalidRequest,
		},
		{
			Name: "party size does not match member list",
			Request: models.QueueRequest{
				PlayerID: "p1", PartyID: "party", PartySize: swag.Int(3), MemberIDs: []string{"p1", "p2"},
				ActivityType: "arena", Mode: "ranked-squad",
			},
			Reason: models.RejectionInvalidParty,
		},
		{
			Name: "duplicate members",
			Request: models.QueueRequest{
				PlayerID: "p1", PartyID: "party", PartySize: swag.Int(3), MemberIDs: []string{"p1", "p2", "p2"},
				ActivityType: "arena", Mode: "ranked-squad",
			},
			Reason: models.RejectionInvalidParty,
		},
		{
			Name: "negative rating range",
			Request: models.QueueRequest{
				PlayerID: "p1", ActivityType: "arena", Mode: "ranked-duel", RatingRange: swag.Int(-5),
			},
			Reason: models.RejectionInvalidRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			clock := testsetup.NewClock()
			r := newTestRegistry(clock)

			_, err := r.Admit(testsetup.NewTestScope(), test.Request)
			require.Error(t, err)

			reason, ok := models.RejectionReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, test.Reason, reason)
			assert.Equal(t, 0, r.Len(), "a rejected request creates no ticket")
		})
	}
}

func TestAdmit_CreatesQueuedTicket(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)

	request := duelRequest("p1")
	request.Metadata = map[string]interface{}{"loadout": "sniper"}
	request.Priority = swag.Int(2)

	ticket, err := r.Admit(testsetup.NewTestScope(), request)
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.TicketID)
	assert.Equal(t, models.StatusQueued, ticket.Status)
	assert.Equal(t, 100, ticket.CurrentRatingRange)
	assert.Equal(t, 2, ticket.Priority)
	assert.Equal(t, 2, ticket.InitialPriority)
	assert.Equal(t, clock.Now(), ticket.QueuedAt)
	assert.Equal(t, clock.Now().Add(10*time.Minute), ticket.ExpiresAt)
	assert.Equal(t, "sniper", ticket.Metadata["loadout"])
	require.Len(t, ticket.History, 1)
	assert.Equal(t, models.StatusQueued, ticket.History[0].To)

	request.Metadata["loadout"] = "changed"
	stored, err := r.Get(ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "sniper", stored.Metadata["loadout"], "metadata is passed through unmodified")
}

func TestAdmit_PlacementBonusAndProfileRating(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)

	profile := models.RatingProfile{PlayerID: "p1", Rating: 1234, PlacementMatchesRemaining: 3}
	ticket, err := r.Admit(testsetup.NewTestScope(), duelRequest("p1"), WithRatingProfile(profile))
	require.NoError(t, err)

	assert.Equal(t, 1234.0, ticket.BaseRating)
	assert.Equal(t, 300, ticket.CurrentRatingRange)
}

func TestAdmit_AlreadyQueued(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	_, err := r.Admit(scope, squadRequest("p1", "p2", "p3"))
	require.NoError(t, err)

	_, err = r.Admit(scope, duelRequest("p3"))
	assert.True(t, errors.Is(err, &models.RejectionError{Reason: models.RejectionAlreadyQueued}))

	raid := models.QueueRequest{PlayerID: "p9", ActivityType: "raid", Mode: "normal"}
	_, err = r.Admit(scope, raid)
	require.NoError(t, err)

	dungeon := models.QueueRequest{PlayerID: "p9", ActivityType: "dungeon", Mode: "normal"}
	_, err = r.Admit(scope, dungeon)
	assert.NoError(t, err, "modes that allow concurrent queueing can share players")

	_, err = r.Admit(scope, raid)
	reason, _ := models.RejectionReasonOf(err)
	assert.Equal(t, models.RejectionAlreadyQueued, reason, "same activity is never concurrent")
}

func TestAdmit_PurgesExpiredTicketFirst(t *testing.T) {
	clock := testsetup.NewClock()
	recorder := &testsetup.RecordingAnalytics{}
	r := newTestRegistry(clock, WithRecorder(recorder))
	scope := testsetup.NewTestScope()

	first, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	second, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.TicketID, second.TicketID)

	expired, err := r.Get(first.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, expired.Status)
}

func TestTransition_CompareAndSwap(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	ticket, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)

	proposed, err := r.Transition(scope, ticket.TicketID, models.StatusQueued, models.StatusProposed, WithProposalID("prop-1"))
	require.NoError(t, err)
	assert.Equal(t, "prop-1", proposed.ProposalID)

	_, err = r.Transition(scope, ticket.TicketID, models.StatusQueued, models.StatusProposed)
	assert.ErrorIs(t, err, models.ErrStaleState)

	_, err = r.Transition(scope, ticket.TicketID, models.StatusProposed, models.StatusCommitted)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	requeued, err := r.Transition(scope, ticket.TicketID, models.StatusProposed, models.StatusQueued,
		WithPriorityBump(3), WithHoldUntil(clock.Now().Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 3, requeued.Priority)
	assert.Empty(t, requeued.ProposalID)
	assert.Equal(t, models.PriorityStateElevated, requeued.PriorityState())
	assert.Empty(t, r.Snapshot(), "held tickets are not offered to the matcher")

	clock.Advance(2 * time.Minute)
	assert.Len(t, r.Snapshot(), 1)

	_, err = r.Transition(scope, "missing", models.StatusQueued, models.StatusProposed)
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
}

func TestTransition_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)

	ticket, err := r.Admit(g.TestScope, duelRequest("p1"))
	g.Expect(err).ToNot(HaveOccurred())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, claimErr := r.Transition(g.TestScope, ticket.TicketID, models.StatusQueued, models.StatusProposed); claimErr == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	g.Expect(wins).To(Equal(1))
}

func TestCommit_CancelsSiblingTickets(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	raid, err := r.Admit(scope, models.QueueRequest{PlayerID: "p1", ActivityType: "raid", Mode: "normal"})
	require.NoError(t, err)
	dungeon, err := r.Admit(scope, models.QueueRequest{PlayerID: "p1", ActivityType: "dungeon", Mode: "normal"})
	require.NoError(t, err)

	_, err = r.Transition(scope, raid.TicketID, models.StatusQueued, models.StatusProposed)
	require.NoError(t, err)
	assert.Empty(t, r.Snapshot(), "a player busy in a proposal is not offered twice")

	_, err = r.Transition(scope, raid.TicketID, models.StatusProposed, models.StatusMatched)
	require.NoError(t, err)
	_, err = r.Transition(scope, raid.TicketID, models.StatusMatched, models.StatusCommitted)
	require.NoError(t, err)

	sibling, err := r.Get(dungeon.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, sibling.Status)
	assert.Equal(t, 0, r.Len())
}

func TestCancel(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	queued, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)
	outcome, err := r.Cancel(scope, queued.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.CancelOutcomeCancelled, outcome)

	tombstone, err := r.Get(queued.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, tombstone.Status)

	_, err = r.Cancel(scope, queued.TicketID)
	assert.ErrorIs(t, err, models.ErrTicketNotFound)

	proposed, err := r.Admit(scope, duelRequest("p2"))
	require.NoError(t, err)
	_, err = r.Transition(scope, proposed.TicketID, models.StatusQueued, models.StatusProposed)
	require.NoError(t, err)
	outcome, err = r.Cancel(scope, proposed.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.CancelOutcomeDeferred, outcome)
	deferred, _ := r.Get(proposed.TicketID)
	assert.True(t, deferred.CancelRequested)
	assert.Equal(t, models.StatusProposed, deferred.Status)

	_, err = r.Transition(scope, proposed.TicketID, models.StatusProposed, models.StatusMatched)
	require.NoError(t, err)
	outcome, err = r.Cancel(scope, proposed.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.CancelOutcomeNoop, outcome)

	expiring, err := r.Admit(scope, duelRequest("p3"))
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = r.Cancel(scope, expiring.TicketID)
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
	expired, _ := r.Get(expiring.TicketID)
	assert.Equal(t, models.StatusExpired, expired.Status)

	_, err = r.Cancel(scope, "unknown")
	assert.ErrorIs(t, err, models.ErrTicketNotFound)
}

func TestExpand_IdempotentAndMonotonic(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	ticket, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)

	expanded, err := r.Expand(scope, ticket.TicketID, 1, 125, clock.Now())
	require.NoError(t, err)
	assert.True(t, expanded)

	expanded, err = r.Expand(scope, ticket.TicketID, 1, 150, clock.Now())
	require.NoError(t, err)
	assert.False(t, expanded, "second widening in the same tick is ignored")

	expanded, err = r.Expand(scope, ticket.TicketID, 2, 90, clock.Now())
	require.NoError(t, err)
	assert.False(t, expanded, "a range never shrinks")

	stored, _ := r.Get(ticket.TicketID)
	assert.Equal(t, 125, stored.CurrentRatingRange)
	require.Len(t, stored.Expansions, 1)
	assert.Equal(t, models.RangeExpansion{At: clock.Now(), FromRange: 100, ToRange: 125}, stored.Expansions[0])
	assert.Equal(t, models.StatusRangeExpanding, stored.ReportedStatus())

	_, err = r.Transition(scope, ticket.TicketID, models.StatusQueued, models.StatusProposed)
	require.NoError(t, err)
	_, err = r.Expand(scope, ticket.TicketID, 3, 200, clock.Now())
	assert.ErrorIs(t, err, models.ErrStaleState)
}

func TestExpireDue(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	short := duelRequest("p1")
	short.ExpiresAt = swag.Time(clock.Now().Add(time.Second))
	expiring, err := r.Admit(scope, short)
	require.NoError(t, err)
	_, err = r.Admit(scope, duelRequest("p2"))
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	expired := r.ExpireDue(scope, clock.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, expiring.TicketID, expired[0].TicketID)
	assert.Equal(t, 1, r.Len())
}

func TestRestore_NeverResurrectsCommittedMatches(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := testsetup.NewClock()
	journal := newMemoryJournal()
	r := newTestRegistry(clock, WithJournal(journal))
	scope := g.TestScope

	queued, err := r.Admit(scope, duelRequest("p1"))
	g.Expect(err).ToNot(HaveOccurred())
	proposed, err := r.Admit(scope, duelRequest("p2"))
	g.Expect(err).ToNot(HaveOccurred())
	matched, err := r.Admit(scope, duelRequest("p3"))
	g.Expect(err).ToNot(HaveOccurred())
	committed, err := r.Admit(scope, duelRequest("p4"))
	g.Expect(err).ToNot(HaveOccurred())

	for _, id := range []string{proposed.TicketID, matched.TicketID, committed.TicketID} {
		_, err = r.Transition(scope, id, models.StatusQueued, models.StatusProposed)
		g.Expect(err).ToNot(HaveOccurred())
	}
	for _, id := range []string{matched.TicketID, committed.TicketID} {
		_, err = r.Transition(scope, id, models.StatusProposed, models.StatusMatched)
		g.Expect(err).ToNot(HaveOccurred())
	}
	_, err = r.Transition(scope, committed.TicketID, models.StatusMatched, models.StatusCommitted)
	g.Expect(err).ToNot(HaveOccurred())
	r.Close()

	g.Eventually(func() models.Status {
		record, _ := journal.get(committed.TicketID)
		return record.Status
	}).Should(Equal(models.StatusCommitted))

	restoredRegistry := newTestRegistry(clock, WithJournal(journal))
	defer restoredRegistry.Close()
	count, err := restoredRegistry.Restore(scope, journal)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(count).To(Equal(2))

	snapshot := restoredRegistry.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for _, ticket := range snapshot {
		ids = append(ids, ticket.TicketID)
	}
	g.Expect(ids).To(ConsistOf(queued.TicketID, proposed.TicketID))

	_, err = restoredRegistry.Get(committed.TicketID)
	g.Expect(err).To(MatchError(models.ErrTicketNotFound))

	cancelled, err := restoredRegistry.Get(matched.TicketID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(cancelled.Status).To(Equal(models.StatusCancelled))
}

func TestRelease(t *testing.T) {
	clock := testsetup.NewClock()
	r := newTestRegistry(clock)
	scope := testsetup.NewTestScope()

	kept, err := r.Admit(scope, duelRequest("p1"))
	require.NoError(t, err)
	cancelled, err := r.Admit(scope, duelRequest("p2"))
	require.NoError(t, err)

	for _, id := range []string{kept.TicketID, cancelled.TicketID} {
		_, err = r.Transition(scope, id, models.StatusQueued, models.StatusProposed, WithProposalID("prop-1"))
		require.NoError(t, err)
	}

	outcome, err := r.Cancel(scope, cancelled.TicketID)
	require.NoError(t, err)
	require.Equal(t, models.CancelOutcomeDeferred, outcome)

	_, err = r.Transition(scope, cancelled.TicketID, models.StatusProposed, models.StatusMatched)
	assert.ErrorIs(t, err, models.ErrStaleState, "a pending cancel blocks the match")

	released, err := r.Release(scope, kept.TicketID, models.StatusProposed, WithPriorityBump(1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, released.Status)
	assert.Equal(t, 1, released.Priority)
	assert.Empty(t, released.ProposalID)

	released, err = r.Release(scope, cancelled.TicketID, models.StatusProposed, WithPriorityBump(1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, released.Status)
	assert.Equal(t, 1, r.Len())

	_, err = r.Release(scope, kept.TicketID, models.StatusProposed)
	assert.ErrorIs(t, err, models.ErrStaleState)
	_, err = r.Release(scope, kept.TicketID, models.StatusQueued)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRestore_ExpandsAgainOnNextTick(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := testsetup.NewClock()
	journal := newMemoryJournal()
	r := newTestRegistry(clock, WithJournal(journal))
	scope := g.TestScope

	ticket, err := r.Admit(scope, duelRequest("p1"))
	g.Expect(err).ToNot(HaveOccurred())
	for tick := int64(1); tick <= 10; tick++ {
		_, err = r.Expand(scope, ticket.TicketID, tick, 100+int(tick)*25, clock.Now())
		g.Expect(err).ToNot(HaveOccurred())
	}
	r.Close()

	g.Eventually(func() int64 {
		record, _ := journal.get(ticket.TicketID)
		return record.LastExpansionTick
	}).Should(Equal(int64(10)))

	restoredRegistry := newTestRegistry(clock, WithJournal(journal))
	defer restoredRegistry.Close()
	_, err = restoredRegistry.Restore(scope, journal)
	g.Expect(err).ToNot(HaveOccurred())

	expanded, err := restoredRegistry.Expand(scope, ticket.TicketID, 1, 375, clock.Now())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(expanded).To(BeTrue())

	stored, err := restoredRegistry.Get(ticket.TicketID)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(stored.CurrentRatingRange).To(Equal(375))
	g.Expect(stored.Expansions).To(HaveLen(11))
}

func TestJournal_WritesAfterCloseAreDropped(t *testing.T) {
	clock := testsetup.NewClock()
	journal := newMemoryJournal()
	r := newTestRegistry(clock, WithJournal(journal))
	scope := testsetup.NewTestScope()
	r.Close()

	var ticket models.Ticket
	var err error
	require.NotPanics(t, func() {
		ticket, err = r.Admit(scope, duelRequest("p1"))
	})
	require.NoError(t, err)

	stored, err := r.Get(ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, stored.Status)
	assert.Equal(t, 1, r.DroppedJournalWrites())
	_, saved := journal.get(ticket.TicketID)
	assert.False(t, saved)

	require.NotPanics(t, r.Close, "closing twice")
}

type stalledJournal struct {
	*memoryJournal
	release chan struct{}
}

func (j *stalledJournal) Save(ctx context.Context, ticket models.Ticket) error {
	<-j.release
	return j.memoryJournal.Save(ctx, ticket)
}

type degradedRecorder struct {
	mu       sync.Mutex
	degraded map[string]error
}

func (d *degradedRecorder) SetDegraded(dependency string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.degraded == nil {
		d.degraded = make(map[string]error)
	}
	d.degraded[dependency] = err
}

func (d *degradedRecorder) SetHealthy(dependency string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.degraded, dependency)
}

func (d *degradedRecorder) get(dependency string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded[dependency]
}

func TestJournal_StalledJournalNeverBlocksAdmission(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := testsetup.NewClock()
	journal := &stalledJournal{memoryJournal: newMemoryJournal(), release: make(chan struct{})}
	reporter := &degradedRecorder{}
	r := newTestRegistry(clock, WithJournalQueue(journal, 1), WithDegradedReporter(reporter))

	admitted := make(chan error, 1)
	go func() {
		var err error
		for _, playerID := range []string{"p1", "p2", "p3"} {
			if _, admitErr := r.Admit(g.TestScope, duelRequest(playerID)); admitErr != nil {
				err = admitErr
			}
		}
		admitted <- err
	}()
	g.Eventually(admitted).Should(Receive(BeNil()))

	g.Expect(r.Len()).To(Equal(3))
	g.Expect(r.DroppedJournalWrites()).To(BeNumerically(">=", 1))
	g.Expect(reporter.get(constants.DependencyJournal)).To(MatchError(errJournalBacklog))

	close(journal.release)
	r.Close()
	g.Expect(reporter.get(constants.DependencyJournal)).To(BeNil())
}
