// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/matchmaker"
	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

// Journal persists ticket records so the registry can be rebuilt after a
// crash. Save must be idempotent per ticket id and ignore revisions older than
// the stored one.
type Journal interface {
	Save(ctx context.Context, ticket models.Ticket) error
	Load(ctx context.Context) ([]models.Ticket, error)
}

const journalQueueSize = 1024

// errJournalBacklog is reported when the writer cannot keep up.
var errJournalBacklog = eris.New("journal queue is full")

// journalWriter serialises journal writes on one goroutine so the registry
// lock is never held across I/O. Writes after close, or while the queue is
// full, are dropped: a later revision of the ticket supersedes them.
type journalWriter struct {
	journal  Journal
	degraded matchmaker.DegradedReporter
	queue    chan journalEntry
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int
}

type journalEntry struct {
	scope  *envelope.Scope
	ticket models.Ticket
}

func newJournalWriter(journal Journal, size int) *journalWriter {
	w := &journalWriter{
		journal: journal,
		queue:   make(chan journalEntry, size),
	}
	w.wg.Add(1)
	go w.run()

	return w
}

func (w *journalWriter) run() {
	defer w.wg.Done()
	for entry := range w.queue {
		err := w.journal.Save(context.WithoutCancel(entry.scope.Ctx), entry.ticket)
		if err != nil {
			entry.scope.Log.WithField("ticketID", entry.ticket.TicketID).
				Errorf("failed to journal ticket: %v", err)
		}
		if w.degraded == nil {
			continue
		}
		if err != nil {
			w.degraded.SetDegraded(constants.DependencyJournal, err)
		} else {
			w.degraded.SetHealthy(constants.DependencyJournal)
		}
	}
}

func (w *journalWriter) enqueue(scope *envelope.Scope, ticket models.Ticket) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.dropped++
		scope.Log.WithField("ticketID", ticket.TicketID).
			Warnf("journal closed, dropping revision %d", ticket.Revision)
		return false
	}

	// the caller's span and context may end before the write happens
	select {
	case w.queue <- journalEntry{scope: scope.WithField("journalRevision", ticket.Revision), ticket: ticket}:
		return true
	default:
		w.dropped++
		scope.Log.WithField("ticketID", ticket.TicketID).
			Errorf("journal queue full, dropping revision %d", ticket.Revision)
		if w.degraded != nil {
			w.degraded.SetDegraded(constants.DependencyJournal, errJournalBacklog)
		}
		return false
	}
}

// droppedWrites returns how many writes were discarded.
func (w *journalWriter) droppedWrites() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *journalWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

// Restore rebuilds the registry from the journal. QUEUED tickets come back as
// they were, PROPOSED ones return to the queue, and MATCHED ones are cancelled
// since their ready check cannot be resumed. Terminal records are skipped, so
// a committed match is never resurrected. Expansion ticks are counted per
// process, so every restored ticket may widen again on the next tick.
func (r *Registry) Restore(rootScope *envelope.Scope, journal Journal) (int, error) {
	scope := rootScope.NewChildScope("registry.Restore")
	defer scope.Finish()

	tickets, err := journal.Load(scope.Ctx)
	if err != nil {
		scope.RecordError(err)
		return 0, eris.Wrap(err, "failed to load ticket journal")
	}

	now := r.now()
	restored := 0
	samples := make([]models.WaitSample, 0)
	changed := make([]models.Ticket, 0)

	r.mu.Lock()
	for i := range tickets {
		ticket := tickets[i]
		if ticket.Status.IsTerminal() {
			continue
		}
		if _, exist := r.tickets[ticket.TicketID]; exist {
			continue
		}

		ticket.LastExpansionTick = 0

		switch ticket.Status {
		case models.StatusProposed:
			if ticket.CancelRequested {
				r.indexLocked(&ticket)
				samples = append(samples, r.setStatusLocked(&ticket, models.StatusCancelled, "cancel requested before restart", now))
				changed = append(changed, ticket.Copy())
				r.retireLocked(&ticket)
				continue
			}
			ticket.ProposalID = ""
			ticket.CancelRequested = false
			r.indexLocked(&ticket)
			samples = append(samples, r.setStatusLocked(&ticket, models.StatusQueued, "restored", now))
			changed = append(changed, ticket.Copy())
		case models.StatusMatched:
			r.indexLocked(&ticket)
			samples = append(samples, r.setStatusLocked(&ticket, models.StatusCancelled, "restored after crash during commit", now))
			changed = append(changed, ticket.Copy())
			r.retireLocked(&ticket)
			continue
		default:
			r.indexLocked(&ticket)
		}
		restored++
	}
	r.mu.Unlock()

	r.publish(scope, samples, changed)
	scope.Log.Infof("restored %d tickets from the journal", restored)

	return restored, nil
}
