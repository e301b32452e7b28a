// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"
)

// Status is the state of a ticket in the queue.
type Status string

const (
	StatusQueued         Status = "QUEUED"
	StatusRangeExpanding Status = "RANGE_EXPANDING" // reported only, never stored
	StatusProposed       Status = "PROPOSED"
	StatusMatched        Status = "MATCHED"
	StatusCommitted      Status = "COMMITTED"
	StatusExpired        Status = "EXPIRED"
	StatusCancelled      Status = "CANCELLED"
)

var allowedTransitions = map[Status][]Status{
	StatusQueued:   {StatusProposed, StatusExpired, StatusCancelled},
	StatusProposed: {StatusMatched, StatusQueued, StatusCancelled},
	StatusMatched:  {StatusCommitted, StatusQueued},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a ticket in this status has left the queue for good.
func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusExpired || s == StatusCancelled
}

// IsActive reports whether the ticket still occupies its players.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusProposed || s == StatusMatched
}

func (s Status) String() string {
	return string(s)
}

// PriorityState tells a client whether its ticket was boosted.
type PriorityState string

const (
	PriorityStateNormal   PriorityState = "NORMAL"
	PriorityStateElevated PriorityState = "ELEVATED"
)

// RangeExpansion is one widening of a ticket's rating range.
type RangeExpansion struct {
	At        time.Time `json:"at"`
	FromRange int       `json:"fromRange"`
	ToRange   int       `json:"toRange"`
}

// StatusChange is one entry of a ticket's status history.
type StatusChange struct {
	From   Status    `json:"from,omitempty"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Ticket is one player's or one party's request to be matched.
// The registry owns the authoritative copy; everything else sees copies.
type Ticket struct {
	TicketID  string   `json:"ticketId"`
	PlayerID  string   `json:"playerId"`
	PartyID   string   `json:"partyId,omitempty"`
	PartySize int      `json:"partySize"`
	MemberIDs []string `json:"memberIds"`

	ActivityType string         `json:"activityType"`
	Mode         string         `json:"mode"`
	Region       string         `json:"region,omitempty"`
	Latencies    map[string]int `json:"latencies,omitempty"`

	QueuedAt  time.Time `json:"queuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	Priority        int    `json:"priority"`
	InitialPriority int    `json:"initialPriority"`
	Status          Status `json:"status"`

	BaseRating         float64          `json:"baseRating"`
	CurrentRatingRange int              `json:"currentRatingRange"`
	Expansions         []RangeExpansion `json:"expansions"`
	AllowCrossRegion   bool             `json:"allowCrossRegion"`
	MinLevel           *int             `json:"minLevel,omitempty"`
	MaxLevel           *int             `json:"maxLevel,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
	TraceID  string                 `json:"traceId,omitempty"`
	History  []StatusChange         `json:"history"`

	// internal use
	HoldUntil         time.Time `json:"holdUntil,omitempty"`
	CancelRequested   bool      `json:"cancelRequested,omitempty"`
	ProposalID        string    `json:"proposalId,omitempty"`
	LastExpansionTick int64     `json:"lastExpansionTick,omitempty"`
	Revision          int64     `json:"revision"`
}

// Members returns every player id covered by the ticket.
func (t Ticket) Members() []string {
	if len(t.MemberIDs) > 0 {
		return t.MemberIDs
	}
	return []string{t.PlayerID}
}

// IsParty reports whether the ticket represents a party.
func (t Ticket) IsParty() bool {
	return t.PartyID != ""
}

// PlayerCount returns the number of seats the ticket needs.
func (t Ticket) PlayerCount() int {
	if t.PartySize > 0 {
		return t.PartySize
	}
	return 1
}

// WaitedAt returns how long the ticket has been queued at the given time.
func (t Ticket) WaitedAt(now time.Time) time.Duration {
	if now.Before(t.QueuedAt) {
		return 0
	}
	return now.Sub(t.QueuedAt)
}

// IsExpiredAt reports whether the ticket's lifetime ended before now.
func (t Ticket) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// IsHeldAt reports whether a decline penalty keeps the ticket out of matching.
func (t Ticket) IsHeldAt(now time.Time) bool {
	return !t.HoldUntil.IsZero() && now.Before(t.HoldUntil)
}

// ReportedStatus is the status shown to clients, RANGE_EXPANDING included.
func (t Ticket) ReportedStatus() Status {
	if t.Status == StatusQueued && len(t.Expansions) > 0 {
		return StatusRangeExpanding
	}
	return t.Status
}

// PriorityState reports whether the ticket was boosted after a failed ready check.
func (t Ticket) PriorityState() PriorityState {
	if t.Priority > t.InitialPriority {
		return PriorityStateElevated
	}
	return PriorityStateNormal
}

// Copy returns a deep copy of the ticket.
func (t Ticket) Copy() Ticket {
	copied, err := copystructure.Copy(t)
	if err != nil {
		logrus.Warn("failed copy ticket:", err)
		return t
	}
	ticket, _ := copied.(Ticket)
	return ticket
}

// QueueRequest is the payload of an enqueue call.
// Optional fields are pointers; nil means "use the mode default".
type QueueRequest struct {
	PlayerID  string   `json:"playerId"`
	PartyID   string   `json:"partyId,omitempty"`
	PartySize *int     `json:"partySize,omitempty"`
	MemberIDs []string `json:"memberIds,omitempty"`

	ActivityType string         `json:"activityType"`
	Mode         string         `json:"mode"`
	Region       string         `json:"region,omitempty"`
	Latencies    map[string]int `json:"latencies,omitempty"`

	RatingRange      *int       `json:"ratingRange,omitempty"`
	BaseRating       *float64   `json:"baseRating,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	MinLevel         *int       `json:"minLevel,omitempty"`
	MaxLevel         *int       `json:"maxLevel,omitempty"`
	AllowCrossRegion bool       `json:"allowCrossRegion"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EffectivePartySize returns the declared party size, 1 for solo requests.
func (r QueueRequest) EffectivePartySize() int {
	if r.PartySize != nil {
		return *r.PartySize
	}
	if len(r.MemberIDs) > 0 {
		return len(r.MemberIDs)
	}
	return 1
}

// Members returns every player id the request covers, leader first.
func (r QueueRequest) Members() []string {
	if len(r.MemberIDs) == 0 {
		return []string{r.PlayerID}
	}
	members := make([]string, 0, len(r.MemberIDs)+1)
	members = append(members, r.PlayerID)
	for _, id := range r.MemberIDs {
		if id != r.PlayerID {
			members = append(members, id)
		}
	}
	return members
}
