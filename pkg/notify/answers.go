// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package notify

import (
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Answer is what a client publishes on the answer channel.
type Answer struct {
	TicketID string `json:"ticketId"`
	Accept   bool   `json:"accept"`
}

// Responder takes the participants' answers.
type Responder interface {
	Accept(scope *envelope.Scope, ticketID string) error
	Decline(scope *envelope.Scope, ticketID string) error
}

// AnswerListener feeds answers published on a redis channel to a Responder.
type AnswerListener struct {
	client    redis.UniversalClient
	channel   string
	responder Responder
}

func NewAnswerListener(client redis.UniversalClient, channel string, responder Responder) *AnswerListener {
	if channel == "" {
		channel = DefaultAnswerChannel
	}
	return &AnswerListener{client: client, channel: channel, responder: responder}
}

// Run subscribes and handles answers until the scope's context ends.
func (l *AnswerListener) Run(rootScope *envelope.Scope) error {
	pubsub := l.client.Subscribe(rootScope.Ctx, l.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(rootScope.Ctx); err != nil {
		return eris.Wrapf(err, "failed to subscribe to %s", l.channel)
	}
	rootScope.Log.Infof("listening for ready check answers on %s", l.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-rootScope.Ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			l.handle(rootScope, message.Payload)
		}
	}
}

func (l *AnswerListener) handle(rootScope *envelope.Scope, payload string) {
	scope := rootScope.NewChildScope("notify.handleAnswer")
	defer scope.Finish()

	var answer Answer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil || answer.TicketID == "" {
		scope.Log.Warnf("dropping malformed answer %q", payload)
		return
	}

	var err error
	if answer.Accept {
		err = l.responder.Accept(scope, answer.TicketID)
	} else {
		err = l.responder.Decline(scope, answer.TicketID)
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrReadyCheckClosed), errors.Is(err, models.ErrProposalNotFound):
		scope.Log.WithField("ticketID", answer.TicketID).Debugf("late answer: %v", err)
	default:
		scope.Log.WithField("ticketID", answer.TicketID).Errorf("failed to apply answer: %v", err)
	}
}
