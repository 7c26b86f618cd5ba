// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/downloadables/lib/sqlitepool"
)

const testSchema = `
	CREATE TABLE IF NOT EXISTS events (
		id    TEXT NOT NULL,
		bytes INTEGER NOT NULL
	);
`

func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()
	cfg.Path = filepath.Join(t.TempDir(), "history.db")
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{})

	err := pool.Do(context.Background(), func(conn *sqlite.Conn) error {
		var journalMode string
		err := sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if journalMode != "wal" {
			t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSchemaAndOnConnect(t *testing.T) {
	var called bool
	pool := openTestPool(t, sqlitepool.Config{
		PoolSize: 1,
		Schema:   testSchema,
		OnConnect: func(conn *sqlite.Conn) error {
			called = true
			return nil
		},
	})

	err := pool.Do(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO events (id, bytes) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{"level_1", 100},
		})
	})
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	if !called {
		t.Error("OnConnect was not called")
	}

	var total int64
	err = pool.Do(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT SUM(bytes) FROM events", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 100 {
		t.Errorf("SUM(bytes) = %d, want 100", total)
	}
}

func TestOnConnectErrorSurfacesFromTake(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return errors.New("refused")
		},
	})
	if _, err := pool.Take(context.Background()); err == nil {
		t.Fatal("Take succeeded despite OnConnect failing")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}
