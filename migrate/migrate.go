package migrate

import (
	"context"
	"fmt"

	"github.com/nerrad567/sqlitekit"
)

// Migration is a single schema migration. Its position in the list passed to
// Apply is its version; the first element is version 1.
type Migration struct {
	// Description is recorded alongside the version number. Empty records
	// NULL.
	Description string

	// SQL is the full script text, run verbatim. It may contain any number
	// of statements.
	SQL string
}

const createVersionTableSQL = `
	CREATE TABLE IF NOT EXISTS VersionInfo
	(
		Version INTEGER NOT NULL,
		AppliedOn DATETIME,
		Description TEXT
	)`

const lastVersionSQL = `SELECT MAX(Version) FROM VersionInfo`

const insertVersionSQL = `
	INSERT INTO VersionInfo (Version, AppliedOn, Description)
	VALUES (?, datetime('now'), ?)`

// Apply brings the database up to date with the migration list.
//
// It ensures the VersionInfo table exists (idempotent, outside any
// transaction), reads the current version, and runs every script beyond it
// in list order inside a single transaction, recording one version row per
// script. A database already at or past the list length is a no-op.
//
// The batch is atomic: if any script or version insert fails, the
// transaction is rolled back before the error propagates, the version table
// is unchanged, and the handle remains usable.
func Apply(ctx context.Context, db *sqlitekit.DB, migrations []Migration) error {
	if err := ensureVersionTable(ctx, db); err != nil {
		return err
	}

	current, err := lastAppliedVersion(ctx, db)
	if err != nil {
		return err
	}
	if len(migrations) <= current {
		return nil // Already up to date
	}

	if err := db.Begin(ctx, sqlitekit.Deferred); err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}

	if err := applyPending(ctx, db, migrations, current); err != nil {
		_ = db.Rollback(ctx) //nolint:errcheck // Best effort on the failure path
		return err
	}

	if err := db.Commit(ctx); err != nil {
		_ = db.Rollback(ctx) //nolint:errcheck // Best effort on the failure path
		return fmt.Errorf("committing migrations: %w", err)
	}
	return nil
}

// Current reports the highest applied version, creating the bookkeeping
// table when it does not exist yet. A fresh database reports 0.
func Current(ctx context.Context, db *sqlitekit.DB) (int, error) {
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	return lastAppliedVersion(ctx, db)
}

// applyPending runs every script past current and records it. The version
// insert is prepared once for the whole batch.
func applyPending(ctx context.Context, db *sqlitekit.DB, migrations []Migration, current int) error {
	record, err := db.Prepare(ctx, insertVersionSQL)
	if err != nil {
		return fmt.Errorf("preparing version insert: %w", err)
	}
	defer record.Close() //nolint:errcheck // Statement teardown

	for i := current; i < len(migrations); i++ {
		m := migrations[i]
		if err := db.ExecScript(ctx, m.SQL); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}

		var desc *string
		if m.Description != "" {
			desc = &m.Description
		}
		if err := record.Exec(ctx, i+1, desc); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}
	return nil
}

// ensureVersionTable creates the VersionInfo table if absent. Safe to re-run
// any number of times; deliberately outside the migration transaction.
func ensureVersionTable(ctx context.Context, db *sqlitekit.DB) error {
	if err := db.ExecScript(ctx, createVersionTableSQL); err != nil {
		return fmt.Errorf("creating version table: %w", err)
	}
	return nil
}

// lastAppliedVersion reads MAX(Version). The aggregate over an empty table
// is NULL, which extracts as 0. The statement is closed before returning so
// the connection is free for the transaction that follows.
func lastAppliedVersion(ctx context.Context, db *sqlitekit.DB) (int, error) {
	stmt, err := db.Execute(ctx, lastVersionSQL)
	if err != nil {
		return 0, fmt.Errorf("reading current version: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement teardown

	var version int
	if _, err := stmt.Fetch(&version); err != nil {
		return 0, fmt.Errorf("reading current version: %w", err)
	}
	return version, nil
}
