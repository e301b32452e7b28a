// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package matchmaker provides the collaborator contracts shared by the
// components of the skill matchmaking core.
package matchmaker

import (
	"context"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// RatingStore gives read access to player ratings. Implementations must be
// safe to call concurrently and at high frequency.
type RatingStore interface {
	GetRating(ctx context.Context, playerID string, activityType string) (models.RatingProfile, error)
}

// ParticipantNotifier asks a ticket's players to accept or decline a proposal.
// Answers come back through the ready check coordinator's Accept and Decline.
type ParticipantNotifier interface {
	Notify(ctx context.Context, ticketID string, proposal models.MatchProposal) error
}

// SessionService receives confirmed matches. Returning models.ErrSessionRejected
// (or any other error) sends the tickets back to the queue.
type SessionService interface {
	Commit(ctx context.Context, match models.MatchDetail) error
}

// ProposalSink receives the proposals built by the candidate matcher. The
// tickets of the proposal are already PROPOSED when Propose is called.
type ProposalSink interface {
	Propose(scope *envelope.Scope, proposal models.MatchProposal) error
}

// RatingComparator turns a rating and a half-width into the window of
// ratings the ticket accepts. Two tickets are compatible when their windows
// intersect.
type RatingComparator interface {
	Window(rating float64, halfWidth int) Interval
}

// AnalyticsRecorder consumes transition and match samples. It must not block.
type AnalyticsRecorder interface {
	RecordTransition(sample models.WaitSample)
	RecordMatch(sample models.QualitySample)
}

// DegradedReporter is told when a dependency starts or stops failing.
type DegradedReporter interface {
	SetDegraded(dependency string, err error)
	SetHealthy(dependency string)
}
