// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package candidate

import (
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// candidate is a ticket with the rating and window resolved for this scan.
type candidate struct {
	ticket models.Ticket
	rating float64
	window matchmaker.Interval
	size   int
}

// groupFinder assembles one match greedily. A candidate joins when its window
// still intersects every window already selected and the party sizes can
// still be packed into the mode's teams.
type groupFinder struct {
	teamCount int
	teamSize  int

	window  matchmaker.Interval
	players int
	members []candidate
	sizes   []int
}

func newGroupFinder(rule models.ModeRule) *groupFinder {
	return &groupFinder{
		teamCount: rule.TeamCount,
		teamSize:  rule.TeamSize,
		window:    matchmaker.Unbounded,
		sizes:     models.SharedPool.PartySize.Get()[:0],
	}
}

func (f *groupFinder) release() {
	models.SharedPool.PartySize.Put(f.sizes[:0])
	f.sizes = nil
}

func (f *groupFinder) TryAdd(c candidate) bool {
	if f.players+c.size > f.teamCount*f.teamSize {
		return false
	}

	window := f.window.Intersect(c.window)
	if window.IsEmpty() {
		return false
	}

	f.sizes = append(f.sizes, c.size)
	if _, ok := pack(f.sizes, f.teamCount, f.teamSize); !ok {
		f.sizes = f.sizes[:len(f.sizes)-1]
		return false
	}

	f.window = window
	f.players += c.size
	f.members = append(f.members, c)
	return true
}

func (f *groupFinder) IsFulfilled() bool {
	return f.players == f.teamCount*f.teamSize
}

// Assignment returns the team index of every member.
func (f *groupFinder) Assignment() []int {
	assignment, _ := pack(f.sizes, f.teamCount, f.teamSize)
	return assignment
}

// findGroup tries every candidate as the seed, in pool order, and fills the
// group from the rest of the pool in the same order. It returns nil when no
// full match can be assembled.
func findGroup(rule models.ModeRule, pool []candidate) ([]candidate, []int) {
	for seed := range pool {
		finder := newGroupFinder(rule)
		finder.TryAdd(pool[seed])
		for i := 0; i < len(pool) && !finder.IsFulfilled(); i++ {
			if i != seed {
				finder.TryAdd(pool[i])
			}
		}
		if finder.IsFulfilled() {
			members, assignment := finder.members, finder.Assignment()
			finder.release()
			return members, assignment
		}
		finder.release()
	}
	return nil, nil
}
