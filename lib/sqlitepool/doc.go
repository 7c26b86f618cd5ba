// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite databases used for local history.
//
// It wraps zombiezen.com/go/sqlite with the pragmas every database in
// this module shares: WAL journaling so the CLI can read history while
// a sync loop writes it, NORMAL synchronous since history is advisory
// and never the source of truth for what is on disk, and a busy
// timeout for the occasional overlapping writer.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back, or hand a function to [Pool.Do] which does both. Connections
// are not safe for concurrent use.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDir, "history.db"),
//	    Schema: schema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.Do(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM events WHERE at < ?", &sqlitex.ExecOptions{
//	        Args: []any{cutoff},
//	    })
//	})
package sqlitepool
