// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package candidate

import "sort"

// pack places every party size into one of teamCount teams holding at most
// teamSize players each. It returns the team index of every size, or false
// when the parties cannot be placed without splitting one.
func pack(sizes []int, teamCount, teamSize int) ([]int, bool) {
	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sizes[order[i]] > sizes[order[j]]
	})

	load := make([]int, teamCount)
	assignment := make([]int, len(sizes))

	var place func(i int) bool
	place = func(i int) bool {
		if i == len(order) {
			return true
		}
		size := sizes[order[i]]
		for team := 0; team < teamCount; team++ {
			if load[team]+size > teamSize {
				continue
			}
			// empty teams are interchangeable
			if team > 0 && load[team] == 0 && load[team-1] == 0 {
				break
			}
			load[team] += size
			assignment[order[i]] = team
			if place(i + 1) {
				return true
			}
			load[team] -= size
		}
		return false
	}

	if !place(0) {
		return nil, false
	}
	return assignment, true
}
