// Package database manages the SQLite connection for the local device registry.
//
// This package provides:
//   - Connection lifecycle (open, close, health check)
//   - WAL mode and busy-timeout configuration for concurrent access
//   - Embedded SQL migrations applied at startup
//
// The database file is shared between twinbridge instances deployed on the
// same host; cross-instance coordination (the poll lock) lives in a table of
// this database, see internal/lock.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/twinbridge.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
