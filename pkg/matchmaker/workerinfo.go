// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaker

import (
	"sync"
	"time"
)

// WorkerInfo stores the stats of one background pass (a matcher scan or an expansion tick).
type WorkerInfo struct {
	Timestamp          time.Time `json:"timestamp"`
	Worker             string    `json:"worker"`
	TickID             int64     `json:"tickID"`
	TotalTicketScanned int       `json:"totalTicketScanned"`
	TotalPartitions    int       `json:"totalPartitions"`
	ProposalCreated    int       `json:"proposalCreated"`
	TicketProposed     int       `json:"ticketProposed"`
	ClaimConflicts     int       `json:"claimConflicts"`
	RatingFailures     int       `json:"ratingFailures"`
	TicketExpanded     int       `json:"ticketExpanded"`
	TicketExpired      int       `json:"ticketExpired"`
	CrossRegionPools   int       `json:"crossRegionPools"`

	Mutex sync.Mutex `json:"-"`
}

func NewWorkerInfo(worker string, tickID int64, now time.Time) *WorkerInfo {
	return &WorkerInfo{Worker: worker, TickID: tickID, Timestamp: now}
}

// Add applies fn to the info under its lock.
func (w *WorkerInfo) Add(fn func(info *WorkerInfo)) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	fn(w)
}

// Fields returns the stats as logrus fields.
func (w *WorkerInfo) Fields() map[string]interface{} {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()

	return map[string]interface{}{
		"worker":     w.Worker,
		"tickID":     w.TickID,
		"scanned":    w.TotalTicketScanned,
		"partitions": w.TotalPartitions,
		"proposals":  w.ProposalCreated,
		"proposed":   w.TicketProposed,
		"conflicts":  w.ClaimConflicts,
		"ratingFail": w.RatingFailures,
		"expanded":   w.TicketExpanded,
		"expired":    w.TicketExpired,
		"crossPools": w.CrossRegionPools,
	}
}
