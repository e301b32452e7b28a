// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"sync"
	"time"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Epoch is the start time of every fake clock.
var Epoch = time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// StubRatingStore serves ratings from memory.
type StubRatingStore struct {
	mu       sync.Mutex
	profiles map[string]models.RatingProfile
	failures map[string]error
	calls    int
}

func NewStubRatingStore() *StubRatingStore {
	return &StubRatingStore{
		profiles: make(map[string]models.RatingProfile),
		failures: make(map[string]error),
	}
}

// Set stores a profile keyed by player and activity.
func (s *StubRatingStore) Set(profile models.RatingProfile) *StubRatingStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.PlayerID+"/"+profile.ActivityType] = profile
	delete(s.failures, profile.PlayerID)
	return s
}

// SetRating stores a bare rating.
func (s *StubRatingStore) SetRating(playerID, activityType string, rating float64) *StubRatingStore {
	return s.Set(models.RatingProfile{PlayerID: playerID, ActivityType: activityType, Rating: rating, PeakRating: rating})
}

// Fail makes every lookup of the player return err.
func (s *StubRatingStore) Fail(playerID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[playerID] = err
}

func (s *StubRatingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubRatingStore) GetRating(_ context.Context, playerID string, activityType string) (models.RatingProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.failures[playerID]; ok {
		return models.RatingProfile{}, err
	}
	profile, ok := s.profiles[playerID+"/"+activityType]
	if !ok {
		return models.RatingProfile{PlayerID: playerID, ActivityType: activityType}, nil
	}
	return profile, nil
}

// Notification is one call to a notifier.
type Notification struct {
	TicketID string
	Proposal models.MatchProposal
}

// RecordingNotifier keeps every notification. OnNotify, when set, runs
// synchronously inside Notify.
type RecordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	Err           error
	OnNotify      func(ticketID string, proposal models.MatchProposal)
}

func (n *RecordingNotifier) Notify(_ context.Context, ticketID string, proposal models.MatchProposal) error {
	n.mu.Lock()
	n.notifications = append(n.notifications, Notification{TicketID: ticketID, Proposal: proposal})
	hook, err := n.OnNotify, n.Err
	n.mu.Unlock()

	if hook != nil {
		hook(ticketID, proposal)
	}
	return err
}

func (n *RecordingNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notifications...)
}

// RecordingSession keeps every committed match and answers with Err.
type RecordingSession struct {
	mu      sync.Mutex
	commits []models.MatchDetail
	Err     error
}

func (s *RecordingSession) Commit(_ context.Context, match models.MatchDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, match)
	return s.Err
}

func (s *RecordingSession) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

func (s *RecordingSession) Commits() []models.MatchDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchDetail(nil), s.commits...)
}

// RecordingSink keeps every proposal the matcher emits.
type RecordingSink struct {
	mu        sync.Mutex
	proposals []models.MatchProposal
	Err       error
}

func (s *RecordingSink) Propose(_ *envelope.Scope, proposal models.MatchProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = append(s.proposals, proposal)
	return s.Err
}

func (s *RecordingSink) Proposals() []models.MatchProposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchProposal(nil), s.proposals...)
}

// RecordingAnalytics keeps every sample.
type RecordingAnalytics struct {
	mu          sync.Mutex
	transitions []models.WaitSample
	matches     []models.QualitySample
}

func (a *RecordingAnalytics) RecordTransition(sample models.WaitSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, sample)
}

func (a *RecordingAnalytics) RecordMatch(sample models.QualitySample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches = append(a.matches, sample)
}

func (a *RecordingAnalytics) Transitions() []models.WaitSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.WaitSample(nil), a.transitions...)
}

func (a *RecordingAnalytics) Matches() []models.QualitySample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.QualitySample(nil), a.matches...)
}

// MustModeRules builds mode rules or panics.
func MustModeRules(rules ...models.ModeRule) *models.ModeRules {
	modeRules, err := models.NewModeRules(rules...)
	if err != nil {
		panic(err)
	}
	return modeRules
}

// DuelRule is a 1v1 ranked mode used across tests.
func DuelRule() models.ModeRule {
	return models.ModeRule{
		ActivityType:          "arena",
		Mode:                  "ranked-duel",
		TeamCount:             2,
		TeamSize:              1,
		MaxPartySize:          1,
		InitialRatingRange:    100,
		MaxRatingRange:        400,
		ExpansionStep:         25,
		ExpansionDelaySeconds: 0,
		PlacementRangeBonus:   200,
		TicketTTLSeconds:      600,
	}
}

// SquadRule is a 5v5 mode with parties up to 5.
func SquadRule() models.ModeRule {
	return models.ModeRule{
		ActivityType:          "arena",
		Mode:                  "ranked-squad",
		TeamCount:             2,
		TeamSize:              5,
		MaxPartySize:          5,
		InitialRatingRange:    100,
		MaxRatingRange:        500,
		ExpansionStep:         50,
		ExpansionDelaySeconds: 10,
		TicketTTLSeconds:      900,
	}
}
