// Package migrate applies an ordered list of SQL migration scripts to a
// sqlitekit database, each exactly once, tracked in a VersionInfo table.
//
// A migration's position in the list is its version: the first element is
// version 1. The applier reads the highest recorded version, skips
// everything at or below it, and runs the remainder inside one transaction.
// Either every pending script applies and is recorded, or none are: a
// failure anywhere in the batch rolls the whole batch back and leaves the
// version table unchanged.
//
// Because versions are positional, migration lists are append-only. Never
// reorder, remove or edit an entry that has been applied anywhere; add new
// scripts at the end.
//
// # Version Table
//
// Bookkeeping lives in a table created on first use:
//
//	CREATE TABLE IF NOT EXISTS VersionInfo (
//	    Version INTEGER NOT NULL,
//	    AppliedOn DATETIME,
//	    Description TEXT
//	)
//
// The schema carries no uniqueness constraint; duplicate rows are prevented
// by the applier's control flow alone. The current version is MAX(Version),
// or 0 when the table is empty.
//
// # Usage
//
//	migrations := []migrate.Migration{
//	    {Description: "initial schema", SQL: schemaV1},
//	    {Description: "add index", SQL: schemaV2},
//	}
//	if err := migrate.Apply(ctx, db, migrations); err != nil {
//	    return err
//	}
package migrate
