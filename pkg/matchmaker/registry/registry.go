// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package registry owns the authoritative state of every ticket. Every status
// change goes through a compare-and-swap Transition addressed by ticket id.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/utils"
)

type Registry struct {
	mu       sync.RWMutex
	tickets  map[string]*models.Ticket
	byPlayer map[string]map[string]struct{} // active tickets per player

	rules      *models.ModeRules
	tombstones *cache.Cache
	writer     *journalWriter
	recorder   matchmaker.AnalyticsRecorder
	metrics    metrics.MatchmakingMetrics
	degraded   matchmaker.DegradedReporter
	now        func() time.Time
	defaultTTL time.Duration
}

type Option func(*Registry)

func WithJournal(journal Journal) Option {
	return WithJournalQueue(journal, journalQueueSize)
}

// WithJournalQueue sets the journal and how many writes may wait for it before
// new ones are dropped.
func WithJournalQueue(journal Journal, size int) Option {
	return func(r *Registry) {
		if journal != nil {
			r.writer = newJournalWriter(journal, max(size, 1))
		}
	}
}

func WithRecorder(recorder matchmaker.AnalyticsRecorder) Option {
	return func(r *Registry) { r.recorder = recorder }
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithDegradedReporter is told when journal writes start or stop failing.
func WithDegradedReporter(reporter matchmaker.DegradedReporter) Option {
	return func(r *Registry) { r.degraded = reporter }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithTombstoneTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.tombstones = cache.New(ttl, ttl) }
}

func WithDefaultTicketTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.defaultTTL = ttl }
}

func New(rules *models.ModeRules, opts ...Option) *Registry {
	r := &Registry{
		tickets:    make(map[string]*models.Ticket),
		byPlayer:   make(map[string]map[string]struct{}),
		rules:      rules,
		tombstones: cache.New(constants.DefaultTombstoneTTL, constants.DefaultTombstoneTTL),
		now:        time.Now,
		defaultTTL: constants.DefaultTicketTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.writer != nil {
		r.writer.degraded = r.degraded
	}

	return r
}

// Rules returns the mode rules the registry admits against.
func (r *Registry) Rules() *models.ModeRules {
	return r.rules
}

// Now returns the registry clock.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Close flushes pending journal writes. Changes made after Close stay in
// memory only.
func (r *Registry) Close() {
	if r.writer != nil {
		r.writer.close()
	}
}

// DroppedJournalWrites returns how many journal writes were discarded because
// the journal was closed or fell behind.
func (r *Registry) DroppedJournalWrites() int {
	if r.writer == nil {
		return 0
	}
	return r.writer.droppedWrites()
}

// Get returns the live ticket or, for a retired one, its tombstone.
func (r *Registry) Get(ticketID string) (models.Ticket, error) {
	r.mu.RLock()
	ticket, ok := r.tickets[ticketID]
	if ok {
		copied := ticket.Copy()
		r.mu.RUnlock()
		return copied, nil
	}
	r.mu.RUnlock()

	if tombstone, found := r.tombstones.Get(ticketID); found {
		return tombstone.(models.Ticket).Copy(), nil
	}

	return models.Ticket{}, fmt.Errorf("%w: %s", models.ErrTicketNotFound, ticketID)
}

// Snapshot returns copies of the tickets the matcher may consider: QUEUED,
// not expired, not held by a decline penalty, and with no member busy in
// another proposal or match. The result is ordered by ticket id.
func (r *Registry) Snapshot() []models.Ticket {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]models.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if ticket.Status != models.StatusQueued || ticket.IsExpiredAt(now) || ticket.IsHeldAt(now) {
			continue
		}
		if r.hasBusyMemberLocked(ticket) {
			continue
		}
		snapshot = append(snapshot, ticket.Copy())
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].TicketID < snapshot[j].TicketID })

	return snapshot
}

// Queued returns copies of every QUEUED ticket, held ones included.
func (r *Registry) Queued() []models.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queued := make([]models.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if ticket.Status == models.StatusQueued {
			queued = append(queued, ticket.Copy())
		}
	}

	return queued
}

// Len returns the number of live tickets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tickets)
}

func (r *Registry) hasBusyMemberLocked(ticket *models.Ticket) bool {
	for _, playerID := range ticket.Members() {
		for ticketID := range r.byPlayer[playerID] {
			if ticketID == ticket.TicketID {
				continue
			}
			other, ok := r.tickets[ticketID]
			if ok && (other.Status == models.StatusProposed || other.Status == models.StatusMatched) {
				return true
			}
		}
	}
	return false
}

func (r *Registry) activeTicketsOfLocked(playerIDs []string) []*models.Ticket {
	seen := make(map[string]struct{})
	active := make([]*models.Ticket, 0)
	for _, playerID := range playerIDs {
		for ticketID := range r.byPlayer[playerID] {
			if _, ok := seen[ticketID]; ok {
				continue
			}
			seen[ticketID] = struct{}{}
			if ticket, ok := r.tickets[ticketID]; ok {
				active = append(active, ticket)
			}
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].TicketID < active[j].TicketID })
	return active
}

func (r *Registry) indexLocked(ticket *models.Ticket) {
	r.tickets[ticket.TicketID] = ticket
	for _, playerID := range ticket.Members() {
		if r.byPlayer[playerID] == nil {
			r.byPlayer[playerID] = make(map[string]struct{})
		}
		r.byPlayer[playerID][ticket.TicketID] = struct{}{}
	}
}

// retireLocked moves a terminal ticket from the live set to the tombstones.
func (r *Registry) retireLocked(ticket *models.Ticket) {
	delete(r.tickets, ticket.TicketID)
	for _, playerID := range ticket.Members() {
		delete(r.byPlayer[playerID], ticket.TicketID)
		if len(r.byPlayer[playerID]) == 0 {
			delete(r.byPlayer, playerID)
		}
	}
	r.tombstones.SetDefault(ticket.TicketID, ticket.Copy())
}

// setStatusLocked changes the status and appends the history entry.
func (r *Registry) setStatusLocked(ticket *models.Ticket, to models.Status, reason string, at time.Time) models.WaitSample {
	from := ticket.Status
	ticket.Status = to
	ticket.History = append(ticket.History, models.StatusChange{From: from, To: to, At: at, Reason: reason})
	ticket.Revision++

	return models.WaitSample{
		At:            at,
		TicketID:      ticket.TicketID,
		ActivityType:  ticket.ActivityType,
		Mode:          ticket.Mode,
		Region:        ticket.Region,
		WaitedSeconds: ticket.WaitedAt(at).Seconds(),
		FromStatus:    from,
		ToStatus:      to,
	}
}

// publish runs outside the lock: analytics samples then journal writes.
func (r *Registry) publish(scope *envelope.Scope, samples []models.WaitSample, changed []models.Ticket) {
	if r.recorder != nil {
		for _, sample := range samples {
			r.recorder.RecordTransition(sample)
		}
	}
	if r.writer != nil {
		for _, ticket := range changed {
			r.writer.enqueue(scope, ticket)
		}
	}
}

func (r *Registry) observeAdmission(activityType, mode string, err error) {
	if r.metrics == nil {
		return
	}
	if reason, ok := models.RejectionReasonOf(err); ok {
		r.metrics.AddRejection(activityType, mode, string(reason))
		return
	}
	if err == nil {
		r.metrics.AddTicketAdmitted(activityType, mode)
	}
}

func membersOverlap(a, b []string) bool {
	set := utils.SetOf(a)
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
