// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"time"

	validator "github.com/AccelByte/justice-input-validation-go"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/common"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/utils"
)

type admission struct {
	profile *models.RatingProfile
}

type AdmitOption func(*admission)

// WithRatingProfile seeds the ticket from the party's rating profile: the
// base rating when the request has none, and the placement range bonus.
func WithRatingProfile(profile models.RatingProfile) AdmitOption {
	return func(a *admission) { a.profile = &profile }
}

type requiredFields struct {
	PlayerID     string `valid:"stringlength(1|128)"`
	ActivityType string `valid:"stringlength(1|64)"`
	Mode         string `valid:"stringlength(1|64)"`
}

// Admit validates the request and creates a QUEUED ticket. Client-correctable
// problems are returned as *models.RejectionError and create nothing.
func (r *Registry) Admit(rootScope *envelope.Scope, request models.QueueRequest, opts ...AdmitOption) (ticket models.Ticket, err error) {
	scope := rootScope.NewChildScope("registry.Admit")
	defer scope.Finish()

	defer func() {
		r.observeAdmission(request.ActivityType, request.Mode, err)
		if err != nil {
			scope.Log.WithField("playerID", request.PlayerID).Debugf("admission rejected: %v", err)
		}
	}()

	var options admission
	for _, opt := range opts {
		opt(&options)
	}

	rule, err := r.validateRequest(request)
	if err != nil {
		return models.Ticket{}, err
	}

	now := r.now()
	members := request.Members()

	r.mu.Lock()
	samples, changed := r.purgeExpiredLocked(members, now)
	for _, active := range r.activeTicketsOfLocked(members) {
		if !r.compatibleLocked(active, rule) {
			r.mu.Unlock()
			r.publish(scope, samples, changed)
			return models.Ticket{}, models.Reject(models.RejectionAlreadyQueued, "ticket %s is active for %s/%s", active.TicketID, active.ActivityType, active.Mode)
		}
	}

	created := r.newTicket(scope, request, rule, options, members, now)
	created.History = []models.StatusChange{{To: models.StatusQueued, At: now, Reason: "admitted"}}
	created.Revision = 1
	stored := created.Copy()
	r.indexLocked(&stored)
	ticket = stored.Copy()
	r.mu.Unlock()

	samples = append(samples, models.WaitSample{
		At:           now,
		TicketID:     ticket.TicketID,
		ActivityType: ticket.ActivityType,
		Mode:         ticket.Mode,
		Region:       ticket.Region,
		ToStatus:     models.StatusQueued,
	})
	r.publish(scope, samples, append(changed, ticket))

	scope.SetAttributes(envelope.TicketIDTag, ticket.TicketID)
	scope.Log.WithField("ticketID", ticket.TicketID).Debug("ticket admitted")

	return ticket, nil
}

func (r *Registry) validateRequest(request models.QueueRequest) (models.ModeRule, error) {
	if _, err := validator.ValidateStruct(requiredFields{
		PlayerID:     request.PlayerID,
		ActivityType: request.ActivityType,
		Mode:         request.Mode,
	}); err != nil {
		return models.ModeRule{}, models.Reject(models.RejectionInvalidRequest, "%v", err)
	}

	rule, ok := r.rules.Lookup(request.ActivityType, request.Mode)
	if !ok {
		return models.ModeRule{}, models.Reject(models.RejectionUnsupportedMode, "%s/%s is not configured", request.ActivityType, request.Mode)
	}

	if request.MinLevel != nil && request.MaxLevel != nil && *request.MinLevel > *request.MaxLevel {
		return models.ModeRule{}, models.Reject(models.RejectionInvalidLevelRange, "minLevel %d is above maxLevel %d", *request.MinLevel, *request.MaxLevel)
	}

	if request.RatingRange != nil && *request.RatingRange < 0 {
		return models.ModeRule{}, models.Reject(models.RejectionInvalidRequest, "ratingRange cannot be negative")
	}

	partySize := request.EffectivePartySize()
	if partySize > rule.MaxPartySize {
		return models.ModeRule{}, models.Reject(models.RejectionPartyTooLarge, "party of %d exceeds the %s/%s limit of %d", partySize, rule.ActivityType, rule.Mode, rule.MaxPartySize)
	}
	if partySize < 1 {
		return models.ModeRule{}, models.Reject(models.RejectionInvalidParty, "partySize must be at least 1")
	}

	if utils.HasDuplicate(request.MemberIDs) {
		return models.ModeRule{}, models.Reject(models.RejectionInvalidParty, "member list has duplicates")
	}
	if partySize > 1 {
		if request.PartyID == "" {
			return models.ModeRule{}, models.Reject(models.RejectionInvalidParty, "partyId is required for parties")
		}
		if members := request.Members(); len(members) != partySize {
			return models.ModeRule{}, models.Reject(models.RejectionInvalidParty, "partySize %d does not match %d members", partySize, len(members))
		}
	}

	return rule, nil
}

// compatibleLocked reports whether an existing active ticket may coexist with
// a new ticket for rule. Only different activities whose modes both allow
// concurrent queueing can.
func (r *Registry) compatibleLocked(active *models.Ticket, rule models.ModeRule) bool {
	if active.ActivityType == rule.ActivityType {
		return false
	}
	activeRule, ok := r.rules.Lookup(active.ActivityType, active.Mode)
	if !ok {
		return false
	}
	return activeRule.AllowConcurrentQueue && rule.AllowConcurrentQueue
}

func (r *Registry) newTicket(scope *envelope.Scope, request models.QueueRequest, rule models.ModeRule, options admission, members []string, now time.Time) *models.Ticket {
	ratingRange := rule.InitialRatingRange
	if request.RatingRange != nil {
		ratingRange = *request.RatingRange
	}

	baseRating := 0.0
	if request.BaseRating != nil {
		baseRating = *request.BaseRating
	} else if options.profile != nil {
		baseRating = options.profile.Rating
	}
	if options.profile != nil && options.profile.InPlacement() {
		ratingRange += rule.PlacementRangeBonus
	}

	priority := 0
	if request.Priority != nil {
		priority = *request.Priority
	}

	expiresAt := now.Add(r.defaultTTL)
	if rule.TicketTTLSeconds > 0 {
		expiresAt = now.Add(rule.TicketTTL())
	}
	if request.ExpiresAt != nil {
		expiresAt = *request.ExpiresAt
	}

	partySize := request.EffectivePartySize()
	ticket := &models.Ticket{
		TicketID:           common.GenerateTicketID(),
		PlayerID:           request.PlayerID,
		PartyID:            request.PartyID,
		PartySize:          partySize,
		MemberIDs:          members,
		ActivityType:       request.ActivityType,
		Mode:               request.Mode,
		Region:             request.Region,
		Latencies:          request.Latencies,
		QueuedAt:           now,
		ExpiresAt:          expiresAt,
		Priority:           priority,
		InitialPriority:    priority,
		Status:             models.StatusQueued,
		BaseRating:         baseRating,
		CurrentRatingRange: ratingRange,
		Expansions:         []models.RangeExpansion{},
		AllowCrossRegion:   request.AllowCrossRegion,
		MinLevel:           request.MinLevel,
		MaxLevel:           request.MaxLevel,
		Metadata:           request.Metadata,
		TraceID:            scope.TraceID,
	}

	return ticket
}

// purgeExpiredLocked expires the members' QUEUED tickets whose lifetime ended.
func (r *Registry) purgeExpiredLocked(members []string, now time.Time) ([]models.WaitSample, []models.Ticket) {
	samples := make([]models.WaitSample, 0)
	changed := make([]models.Ticket, 0)
	for _, active := range r.activeTicketsOfLocked(members) {
		if active.Status == models.StatusQueued && active.IsExpiredAt(now) {
			samples = append(samples, r.setStatusLocked(active, models.StatusExpired, "expired", now))
			changed = append(changed, active.Copy())
			r.retireLocked(active)
		}
	}
	return samples, changed
}
