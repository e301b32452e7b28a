// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package journal persists ticket records in a SQLite file so the registry can
// be rebuilt after a restart.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AccelByte/extend-skill-matchmaker/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	ticket_id  TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	body       BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS tickets_status_updated ON tickets (status, updated_at);
`

// a record only replaces the stored one when it is newer
const upsert = `
INSERT INTO tickets (ticket_id, revision, status, updated_at, body)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (ticket_id) DO UPDATE SET
	revision   = excluded.revision,
	status     = excluded.status,
	updated_at = excluded.updated_at,
	body       = excluded.body
WHERE excluded.revision > tickets.revision
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// SQLite is a registry.Journal backed by one table keyed by ticket id. Bodies
// are CBOR encoded tickets.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*SQLite)

func WithClock(now func() time.Time) Option {
	return func(s *SQLite) { s.now = now }
}

// Open opens or creates the journal file at path.
func Open(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open journal %s", path)
	}
	// one writer at a time is all sqlite allows
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err = db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "failed to apply %q", pragma)
		}
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to create journal schema")
	}

	s := &SQLite{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Save stores the ticket unless a record with the same or a newer revision is
// already there.
func (s *SQLite) Save(ctx context.Context, ticket models.Ticket) error {
	body, err := encode(ticket)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, upsert, ticket.TicketID, ticket.Revision, string(ticket.Status), s.now().UnixMilli(), body)
	if err != nil {
		return eris.Wrapf(err, "failed to save ticket %s", ticket.TicketID)
	}

	return nil
}

// Load returns every stored ticket, terminal ones included.
func (s *SQLite) Load(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM tickets ORDER BY ticket_id`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query journal")
	}
	defer rows.Close()

	tickets := make([]models.Ticket, 0)
	for rows.Next() {
		var body []byte
		if err = rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "failed to scan journal row")
		}
		ticket, err := decode(body)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err = rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read journal")
	}

	return tickets, nil
}

// Prune deletes terminal records last written before cutoff and returns how
// many went away.
func (s *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tickets WHERE status IN (?, ?, ?) AND updated_at < ?`,
		string(models.StatusCommitted), string(models.StatusExpired), string(models.StatusCancelled),
		cutoff.UnixMilli())
	if err != nil {
		return 0, eris.Wrap(err, "failed to prune journal")
	}

	return result.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
