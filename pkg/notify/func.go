// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package notify

import (
	"context"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Func adapts a function to a ParticipantNotifier.
type Func func(ctx context.Context, ticketID string, proposal models.MatchProposal) error

func (f Func) Notify(ctx context.Context, ticketID string, proposal models.MatchProposal) error {
	return f(ctx, ticketID, proposal)
}

// SessionFunc adapts a function to a SessionService.
type SessionFunc func(ctx context.Context, match models.MatchDetail) error

func (f SessionFunc) Commit(ctx context.Context, match models.MatchDetail) error {
	return f(ctx, match)
}

// AutoAccept answers every ready check with accept, for local runs without
// clients.
func AutoAccept(scope *envelope.Scope, responder Responder) Func {
	return func(_ context.Context, ticketID string, _ models.MatchProposal) error {
		go func() {
			if err := responder.Accept(scope, ticketID); err != nil {
				scope.Log.WithField("ticketID", ticketID).Debugf("auto accept: %v", err)
			}
		}()
		return nil
	}
}

// LogSession logs confirmed matches, for local runs without a session service.
func LogSession(scope *envelope.Scope) SessionFunc {
	return func(_ context.Context, match models.MatchDetail) error {
		scope.Log.WithField("matchID", match.MatchID).
			Infof("match committed: %s/%s in %s, quality %.2f", match.ActivityType, match.Mode, match.Region, match.Quality)
		return nil
	}
}
