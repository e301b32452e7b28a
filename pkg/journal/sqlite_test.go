// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker/registry"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/testsetup"
)

func openTestJournal(t *testing.T, clock *testsetup.Clock) *SQLite {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func ticket(id string, revision int64, status models.Status) models.Ticket {
	return models.Ticket{
		TicketID:           id,
		PlayerID:           "player-" + id,
		PartySize:          1,
		MemberIDs:          []string{"player-" + id},
		ActivityType:       "arena",
		Mode:               "ranked-duel",
		Region:             "eu",
		Latencies:          map[string]int{"eu": 20, "us": 90},
		QueuedAt:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:             status,
		BaseRating:         1200,
		CurrentRatingRange: 125,
		Expansions:         []models.RangeExpansion{{At: time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC), FromRange: 100, ToRange: 125}},
		Metadata:           map[string]interface{}{"loadout": "sniper"},
		Revision:           revision,
	}
}

func TestSQLite_SaveIgnoresOlderRevisions(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, testsetup.NewClock())

	require.NoError(t, j.Save(ctx, ticket("a", 2, models.StatusProposed)))
	require.NoError(t, j.Save(ctx, ticket("a", 1, models.StatusQueued)))
	require.NoError(t, j.Save(ctx, ticket("a", 2, models.StatusQueued)))
	require.NoError(t, j.Save(ctx, ticket("b", 1, models.StatusQueued)))

	tickets, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2, spew.Sdump(tickets))

	a := tickets[0]
	assert.Equal(t, "a", a.TicketID)
	assert.Equal(t, models.StatusProposed, a.Status)
	assert.Equal(t, int64(2), a.Revision)
	assert.Equal(t, 125, a.CurrentRatingRange)
	assert.Equal(t, map[string]int{"eu": 20, "us": 90}, a.Latencies)
	assert.Equal(t, "sniper", a.Metadata["loadout"])
	require.Len(t, a.Expansions, 1)
	assert.True(t, a.Expansions[0].At.Equal(time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)))
	assert.True(t, a.QueuedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSQLite_PruneKeepsActiveTickets(t *testing.T) {
	ctx := context.Background()
	clock := testsetup.NewClock()
	j := openTestJournal(t, clock)

	require.NoError(t, j.Save(ctx, ticket("committed", 4, models.StatusCommitted)))
	require.NoError(t, j.Save(ctx, ticket("queued", 1, models.StatusQueued)))
	clock.Advance(time.Hour)
	require.NoError(t, j.Save(ctx, ticket("cancelled", 2, models.StatusCancelled)))

	pruned, err := j.Prune(ctx, clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	tickets, err := j.Load(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(tickets))
	for _, record := range tickets {
		ids = append(ids, record.TicketID)
	}
	assert.Equal(t, []string{"cancelled", "queued"}, ids)
}

func TestSQLite_RegistryRestartKeepsQueue(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	clock := testsetup.NewClock()
	j := openTestJournal(t, clock)
	rules := testsetup.MustModeRules(testsetup.DuelRule())
	request := func(playerID string) models.QueueRequest {
		return models.QueueRequest{PlayerID: playerID, ActivityType: "arena", Mode: "ranked-duel", Region: "eu"}
	}

	r := registry.New(rules, registry.WithJournal(j), registry.WithClock(clock.Now))
	queued, err := r.Admit(g.TestScope, request("p1"))
	g.Expect(err).ToNot(HaveOccurred())
	proposed, err := r.Admit(g.TestScope, request("p2"))
	g.Expect(err).ToNot(HaveOccurred())
	_, err = r.Transition(g.TestScope, proposed.TicketID, models.StatusQueued, models.StatusProposed)
	g.Expect(err).ToNot(HaveOccurred())
	r.Close()

	restarted := registry.New(rules, registry.WithJournal(j), registry.WithClock(clock.Now))
	defer restarted.Close()
	count, err := restarted.Restore(g.TestScope, j)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(count).To(Equal(2))

	for _, id := range []string{queued.TicketID, proposed.TicketID} {
		restored, err := restarted.Get(id)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(restored.Status).To(Equal(models.StatusQueued))
	}
}
