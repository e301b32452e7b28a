// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"fmt"
	"time"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

type transition struct {
	priorityBump int
	holdUntil    time.Time
	proposalID   string
	reason       string
}

// TransitionOption is a side effect applied atomically with the swap.
type TransitionOption func(*transition)

func WithPriorityBump(bump int) TransitionOption {
	return func(t *transition) { t.priorityBump = bump }
}

// WithHoldUntil keeps a requeued ticket out of matching until the given time.
func WithHoldUntil(until time.Time) TransitionOption {
	return func(t *transition) { t.holdUntil = until }
}

func WithProposalID(proposalID string) TransitionOption {
	return func(t *transition) { t.proposalID = proposalID }
}

func WithReason(reason string) TransitionOption {
	return func(t *transition) { t.reason = reason }
}

// Transition moves the ticket from one status to another if, and only if, it
// is currently in from. It fails with models.ErrStaleState otherwise. Terminal
// targets retire the ticket.
func (r *Registry) Transition(rootScope *envelope.Scope, ticketID string, from, to models.Status, opts ...TransitionOption) (models.Ticket, error) {
	scope := rootScope.NewChildScope("registry.Transition")
	defer scope.Finish()

	if !models.CanTransition(from, to) {
		return models.Ticket{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	var options transition
	for _, opt := range opts {
		opt(&options)
	}
	if options.reason == "" {
		options.reason = string(from) + "->" + string(to)
	}

	now := r.now()

	r.mu.Lock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		r.mu.Unlock()
		return models.Ticket{}, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}
	if ticket.Status != from {
		current := ticket.Status
		r.mu.Unlock()
		return models.Ticket{}, fmt.Errorf("%w: ticket %s is %s, expected %s", models.ErrStaleState, ticketID, current, from)
	}
	if to == models.StatusMatched && ticket.CancelRequested {
		r.mu.Unlock()
		return models.Ticket{}, fmt.Errorf("%w: ticket %s has a pending cancel", models.ErrStaleState, ticketID)
	}

	ticket.Priority += options.priorityBump
	if !options.holdUntil.IsZero() {
		ticket.HoldUntil = options.holdUntil
	}
	switch to {
	case models.StatusProposed:
		ticket.ProposalID = options.proposalID
	case models.StatusQueued:
		ticket.ProposalID = ""
		ticket.CancelRequested = false
	}

	samples := []models.WaitSample{r.setStatusLocked(ticket, to, options.reason, now)}
	changed := []models.Ticket{ticket.Copy()}
	result := ticket.Copy()

	if to.IsTerminal() {
		r.retireLocked(ticket)
	}
	if to == models.StatusCommitted {
		siblingSamples, siblings := r.cancelSiblingsLocked(ticket, now)
		samples = append(samples, siblingSamples...)
		changed = append(changed, siblings...)
	}
	r.mu.Unlock()

	r.publish(scope, samples, changed)

	scope.SetAttributes(envelope.TicketIDTag, ticketID)
	scope.Log.WithField("ticketID", ticketID).Debugf("ticket %s -> %s", from, to)

	return result, nil
}

// Release returns a PROPOSED or MATCHED ticket to the queue. A PROPOSED
// ticket whose cancel was deferred ends CANCELLED instead. The returned
// ticket carries the status it ended in.
func (r *Registry) Release(rootScope *envelope.Scope, ticketID string, from models.Status, opts ...TransitionOption) (models.Ticket, error) {
	scope := rootScope.NewChildScope("registry.Release")
	defer scope.Finish()

	if from != models.StatusProposed && from != models.StatusMatched {
		return models.Ticket{}, fmt.Errorf("%w: release from %s", models.ErrInvalidTransition, from)
	}

	var options transition
	for _, opt := range opts {
		opt(&options)
	}
	if options.reason == "" {
		options.reason = "released"
	}

	now := r.now()

	r.mu.Lock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		r.mu.Unlock()
		return models.Ticket{}, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}
	if ticket.Status != from {
		current := ticket.Status
		r.mu.Unlock()
		return models.Ticket{}, fmt.Errorf("%w: ticket %s is %s, expected %s", models.ErrStaleState, ticketID, current, from)
	}

	var sample models.WaitSample
	if from == models.StatusProposed && ticket.CancelRequested {
		sample = r.setStatusLocked(ticket, models.StatusCancelled, "cancelled", now)
		r.retireLocked(ticket)
	} else {
		ticket.Priority += options.priorityBump
		if !options.holdUntil.IsZero() {
			ticket.HoldUntil = options.holdUntil
		}
		ticket.ProposalID = ""
		ticket.CancelRequested = false
		sample = r.setStatusLocked(ticket, models.StatusQueued, options.reason, now)
	}
	result := ticket.Copy()
	r.mu.Unlock()

	r.publish(scope, []models.WaitSample{sample}, []models.Ticket{result})
	scope.Log.WithField("ticketID", ticketID).Debugf("ticket released %s -> %s", from, result.Status)

	return result, nil
}

// cancelSiblingsLocked cancels the other QUEUED tickets of players whose
// ticket was just committed.
func (r *Registry) cancelSiblingsLocked(committed *models.Ticket, now time.Time) ([]models.WaitSample, []models.Ticket) {
	samples := make([]models.WaitSample, 0)
	changed := make([]models.Ticket, 0)
	for _, sibling := range r.activeTicketsOfLocked(committed.Members()) {
		if sibling.TicketID == committed.TicketID || sibling.Status != models.StatusQueued {
			continue
		}
		if !membersOverlap(sibling.Members(), committed.Members()) {
			continue
		}
		samples = append(samples, r.setStatusLocked(sibling, models.StatusCancelled, "matched in "+committed.TicketID, now))
		changed = append(changed, sibling.Copy())
		r.retireLocked(sibling)
	}
	return samples, changed
}

// Cancel cancels a QUEUED ticket. A PROPOSED ticket only records the request,
// which the ready check honours as a decline. MATCHED tickets are left alone.
func (r *Registry) Cancel(rootScope *envelope.Scope, ticketID string) (models.CancelOutcome, error) {
	scope := rootScope.NewChildScope("registry.Cancel")
	defer scope.Finish()

	now := r.now()

	r.mu.Lock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}

	var (
		outcome models.CancelOutcome
		err     error
		samples []models.WaitSample
		changed []models.Ticket
	)
	switch {
	case ticket.Status == models.StatusQueued && ticket.IsExpiredAt(now):
		samples = append(samples, r.setStatusLocked(ticket, models.StatusExpired, "expired", now))
		changed = append(changed, ticket.Copy())
		r.retireLocked(ticket)
		err = fmt.Errorf("%w: %s expired", models.ErrTicketNotFound, ticketID)
	case ticket.Status == models.StatusQueued:
		samples = append(samples, r.setStatusLocked(ticket, models.StatusCancelled, "cancelled", now))
		changed = append(changed, ticket.Copy())
		r.retireLocked(ticket)
		outcome = models.CancelOutcomeCancelled
	case ticket.Status == models.StatusProposed:
		if !ticket.CancelRequested {
			ticket.CancelRequested = true
			ticket.Revision++
			changed = append(changed, ticket.Copy())
		}
		outcome = models.CancelOutcomeDeferred
	default:
		outcome = models.CancelOutcomeNoop
	}
	r.mu.Unlock()

	r.publish(scope, samples, changed)
	scope.Log.WithField("ticketID", ticketID).Debugf("cancel outcome %s", outcome)

	return outcome, err
}

// Expand widens the ticket's rating range. It is a no-op when the ticket was
// already expanded in this tick or toRange would not widen it.
func (r *Registry) Expand(rootScope *envelope.Scope, ticketID string, tick int64, toRange int, at time.Time) (bool, error) {
	scope := rootScope.NewChildScope("registry.Expand")
	defer scope.Finish()

	r.mu.Lock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}
	if ticket.Status != models.StatusQueued {
		current := ticket.Status
		r.mu.Unlock()
		return false, fmt.Errorf("%w: ticket %s is %s, expected %s", models.ErrStaleState, ticketID, current, models.StatusQueued)
	}
	if ticket.LastExpansionTick >= tick || toRange <= ticket.CurrentRatingRange {
		r.mu.Unlock()
		return false, nil
	}

	ticket.Expansions = append(ticket.Expansions, models.RangeExpansion{
		At:        at,
		FromRange: ticket.CurrentRatingRange,
		ToRange:   toRange,
	})
	ticket.CurrentRatingRange = toRange
	ticket.LastExpansionTick = tick
	ticket.Revision++
	changed := []models.Ticket{ticket.Copy()}
	r.mu.Unlock()

	r.publish(scope, nil, changed)

	return true, nil
}

// ExpireDue expires every QUEUED ticket whose lifetime ended before now.
func (r *Registry) ExpireDue(rootScope *envelope.Scope, now time.Time) []models.Ticket {
	scope := rootScope.NewChildScope("registry.ExpireDue")
	defer scope.Finish()

	samples := make([]models.WaitSample, 0)
	expired := make([]models.Ticket, 0)

	r.mu.Lock()
	for _, ticket := range r.tickets {
		if ticket.Status != models.StatusQueued || !ticket.IsExpiredAt(now) {
			continue
		}
		samples = append(samples, r.setStatusLocked(ticket, models.StatusExpired, "expired", now))
		expired = append(expired, ticket.Copy())
		r.retireLocked(ticket)
	}
	r.mu.Unlock()

	r.publish(scope, samples, expired)
	if len(expired) > 0 {
		scope.Log.Debugf("expired %d tickets", len(expired))
	}

	return expired
}

// Retire removes a terminal ticket from the live set. Terminal transitions
// already retire, so this only matters for tickets restored in a terminal state.
func (r *Registry) Retire(ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		if _, found := r.tombstones.Get(ticketID); found {
			return nil
		}
		return fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
	}
	if !ticket.Status.IsTerminal() {
		return fmt.Errorf("%w: ticket %s is %s", models.ErrInvalidTransition, ticketID, ticket.Status)
	}
	r.retireLocked(ticket)

	return nil
}
