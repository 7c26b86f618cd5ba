// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
	"github.com/bureau-foundation/downloadables/lib/sqlitepool"
)

// Compile-time interface check.
var _ downloadables.Tracker = (*Store)(nil)

// DefaultBufferSize is the number of events that can wait for the
// writer before Track starts dropping them.
const DefaultBufferSize = 1024

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT    NOT NULL,
		kind       TEXT    NOT NULL,
		at         INTEGER NOT NULL,
		bytes      INTEGER NOT NULL,
		attempt    INTEGER NOT NULL,
		error_type TEXT    NOT NULL DEFAULT '',
		error      TEXT    NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS events_by_id ON events (id, seq);
	CREATE INDEX IF NOT EXISTS events_by_time ON events (at);
`

// Config holds the parameters for Open. Path is required.
type Config struct {
	Path       string
	BufferSize int
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Summary aggregates the history of one id.
type Summary struct {
	ID             string
	Downloads      int
	Failures       int
	Verified       int
	CRCMismatches  int
	BytesReceived  int64
	LastActivityAt time.Time
}

// Store is the event history. It is safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger

	// mu guards closed against Track racing Close.
	mu      sync.RWMutex
	closed  bool
	events  chan downloadables.Event
	flushes chan chan error
	done    chan struct{}
	dropped atomic.Int64
}

// Open creates or opens the database and starts the writer.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Schema: schema,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	s := &Store{
		pool:    pool,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		events:  make(chan downloadables.Event, cfg.BufferSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Track queues event for writing. It never blocks.
func (s *Store) Track(event downloadables.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		if s.dropped.Add(1) == 1 {
			s.logger.Warn("history buffer full, dropping events")
		}
	}
}

// Dropped returns how many events Track discarded.
func (s *Store) Dropped() int64 { return s.dropped.Load() }

// Flush waits until every event queued before the call is written.
func (s *Store) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.flushes <- reply:
	case <-s.done:
		return fmt.Errorf("tracker: closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes queued events, stops the writer, and closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
	return s.pool.Close()
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			batch := s.drain([]downloadables.Event{event})
			if err := s.WriteBatch(context.Background(), batch); err != nil {
				s.logger.Warn("writing history failed", "events", len(batch), "error", err)
			}
		case reply := <-s.flushes:
			reply <- s.WriteBatch(context.Background(), s.drain(nil))
		}
	}
}

// drain appends every event already buffered.
func (s *Store) drain(batch []downloadables.Event) []downloadables.Event {
	for len(s.events) > 0 {
		event, ok := <-s.events
		if !ok {
			break
		}
		batch = append(batch, event)
	}
	return batch
}

// WriteBatch inserts events in one transaction.
func (s *Store) WriteBatch(ctx context.Context, events []downloadables.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("tracker: write: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("tracker: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, event := range events {
		err = sqlitex.Execute(conn, `
			INSERT INTO events (id, kind, at, bytes, attempt, error_type, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				event.ID,
				string(event.Kind),
				event.At.UnixNano(),
				event.Bytes,
				event.Attempt,
				event.ErrorType,
				event.Error,
			},
		})
		if err != nil {
			return fmt.Errorf("tracker: insert %s %s: %w", event.Kind, event.ID, err)
		}
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty id matches
// every id.
func (s *Store) Recent(ctx context.Context, id string, limit int) ([]downloadables.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []downloadables.Event
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT id, kind, at, bytes, attempt, error_type, error
			FROM events
			WHERE ?1 = '' OR id = ?1
			ORDER BY seq DESC
			LIMIT ?2`, &sqlitex.ExecOptions{
			Args: []any{id, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				events = append(events, downloadables.Event{
					ID:        stmt.ColumnText(0),
					Kind:      downloadables.EventKind(stmt.ColumnText(1)),
					At:        time.Unix(0, stmt.ColumnInt64(2)).UTC(),
					Bytes:     stmt.ColumnInt64(3),
					Attempt:   stmt.ColumnInt(4),
					ErrorType: stmt.ColumnText(5),
					Error:     stmt.ColumnText(6),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("tracker: recent: %w", err)
	}
	return events, nil
}

// Summaries aggregates the history per id, ordered by id.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT id,
				SUM(kind = 'download_start'),
				SUM(kind = 'download_end' AND error_type != ''),
				SUM(kind = 'verified'),
				SUM(kind = 'crc_mismatch'),
				SUM(CASE WHEN kind = 'download_end' AND error_type = '' THEN bytes ELSE 0 END),
				MAX(at)
			FROM events
			GROUP BY id
			ORDER BY id`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				summaries = append(summaries, Summary{
					ID:             stmt.ColumnText(0),
					Downloads:      stmt.ColumnInt(1),
					Failures:       stmt.ColumnInt(2),
					Verified:       stmt.ColumnInt(3),
					CRCMismatches:  stmt.ColumnInt(4),
					BytesReceived:  stmt.ColumnInt64(5),
					LastActivityAt: time.Unix(0, stmt.ColumnInt64(6)).UTC(),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("tracker: summaries: %w", err)
	}
	return summaries, nil
}

// PruneOlderThan deletes events older than age and returns how many
// were removed.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-age).UnixNano()
	var removed int
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM events WHERE at < ?", &sqlitex.ExecOptions{
			Args: []any{cutoff},
		}); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("tracker: prune: %w", err)
	}
	return removed, nil
}
