// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"time"

	"github.com/elliotchance/pie/v2"
)

// MatchStatus is the matchmaking-side state of a match.
type MatchStatus string

const (
	MatchStatusPendingConfirmation MatchStatus = "PENDING_CONFIRMATION"
	MatchStatusMatched             MatchStatus = "MATCHED"
	MatchStatusCommitted           MatchStatus = "COMMITTED"
	MatchStatusCancelled           MatchStatus = "CANCELLED"
)

// ReadyCheckState is the outcome of a proposal's confirmation step.
type ReadyCheckState string

const (
	ReadyCheckPending     ReadyCheckState = "PENDING_CONFIRMATION"
	ReadyCheckAllAccepted ReadyCheckState = "ALL_ACCEPTED"
	ReadyCheckTimedOut    ReadyCheckState = "TIMED_OUT"
	ReadyCheckDeclined    ReadyCheckState = "DECLINED"
)

// ParticipantResponse is one ticket's answer to a ready check.
type ParticipantResponse string

const (
	ResponsePending  ParticipantResponse = "PENDING"
	ResponseAccepted ParticipantResponse = "ACCEPTED"
	ResponseDeclined ParticipantResponse = "DECLINED"
)

// PartyRef is a ticket placed inside a team. Parties are never split.
type PartyRef struct {
	TicketID  string                 `json:"ticketId"`
	PartyID   string                 `json:"partyId,omitempty"`
	PlayerIDs []string               `json:"playerIds"`
	Rating    float64                `json:"rating"`
	Region    string                 `json:"region,omitempty"`
	Latencies map[string]int         `json:"latencies,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Team is a list of parties playing on the same side.
type Team struct {
	TeamID  string     `json:"teamId"`
	Parties []PartyRef `json:"parties"`
}

// PlayerCount returns the number of players on the team.
func (t Team) PlayerCount() int {
	count := 0
	for _, p := range t.Parties {
		count += len(p.PlayerIDs)
	}
	return count
}

// AverageRating is the player-weighted mean rating of the team.
func (t Team) AverageRating() float64 {
	total, count := 0.0, 0
	for _, p := range t.Parties {
		total += p.Rating * float64(len(p.PlayerIDs))
		count += len(p.PlayerIDs)
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// PlayerIDs returns every player of the team.
func (t Team) PlayerIDs() []string {
	ids := make([]string, 0, len(t.Parties))
	for _, p := range t.Parties {
		ids = append(ids, p.PlayerIDs...)
	}
	return ids
}

// MatchProposal is a tentative grouping awaiting the ready check.
type MatchProposal struct {
	ProposalID   string    `json:"proposalId"`
	ActivityType string    `json:"activityType"`
	Mode         string    `json:"mode"`
	Region       string    `json:"region"`
	CrossRegion  bool      `json:"crossRegion"`
	Teams        []Team    `json:"teams"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TicketIDs returns the tickets reserved by the proposal.
func (p MatchProposal) TicketIDs() []string {
	ids := make([]string, 0)
	for _, team := range p.Teams {
		for _, party := range team.Parties {
			ids = append(ids, party.TicketID)
		}
	}
	return ids
}

// Parties returns every party in the proposal, team order preserved.
func (p MatchProposal) Parties() []PartyRef {
	parties := make([]PartyRef, 0)
	for _, team := range p.Teams {
		parties = append(parties, team.Parties...)
	}
	return parties
}

// PlayerIDs returns every player in the proposal.
func (p MatchProposal) PlayerIDs() []string {
	ids := make([]string, 0)
	pie.Each(p.Teams, func(t Team) { ids = append(ids, t.PlayerIDs()...) })
	return ids
}

// ReadyCheck is the confirmation state attached to a match.
type ReadyCheck struct {
	State      ReadyCheckState                `json:"state"`
	Deadline   time.Time                      `json:"deadline"`
	Responses  map[string]ParticipantResponse `json:"responses"`
	ResolvedAt time.Time                      `json:"resolvedAt,omitempty"`
}

// LatencyProfile summarises the participants' latency to the match region.
type LatencyProfile struct {
	Region string  `json:"region"`
	MinMs  int     `json:"minMs"`
	MaxMs  int     `json:"maxMs"`
	AvgMs  float64 `json:"avgMs"`
}

// Spread is the gap between the best and worst latency.
func (l LatencyProfile) Spread() int {
	return l.MaxMs - l.MinMs
}

// MatchDetail is a confirmed match handed to the session service.
type MatchDetail struct {
	MatchID         string         `json:"matchId"`
	ProposalID      string         `json:"proposalId"`
	ActivityType    string         `json:"activityType"`
	Mode            string         `json:"mode"`
	Region          string         `json:"region"`
	CrossRegion     bool           `json:"crossRegion"`
	Teams           []Team         `json:"teams"`
	Status          MatchStatus    `json:"status"`
	ReadyCheck      ReadyCheck     `json:"readyCheck"`
	Quality         float64        `json:"quality"`
	RatingSpread    float64        `json:"ratingSpread"`
	LatencyProfile  LatencyProfile `json:"latencyProfile"`
	LockingDeadline time.Time      `json:"lockingDeadline"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// TicketIDs returns the tickets that make up the match.
func (m MatchDetail) TicketIDs() []string {
	return MatchProposal{Teams: m.Teams}.TicketIDs()
}

// CancelOutcome reports what a cancel request did.
type CancelOutcome string

const (
	CancelOutcomeCancelled CancelOutcome = "CANCELLED"
	CancelOutcomeDeferred  CancelOutcome = "DEFERRED"
	CancelOutcomeNoop      CancelOutcome = "NOOP"
)
