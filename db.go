package sqlitekit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// TxKind selects the lock-acquisition strategy at transaction start.
type TxKind int

const (
	// Deferred defers lock acquisition until the first access.
	Deferred TxKind = iota

	// Immediate acquires a write lock at BEGIN.
	Immediate

	// Exclusive acquires the strongest lock at BEGIN.
	Exclusive
)

// beginSQL returns the exact transaction-start statement for the kind.
// Exactly one of these three texts is issued per Begin call.
func (k TxKind) beginSQL() string {
	switch k {
	case Immediate:
		return "BEGIN IMMEDIATE TRANSACTION"
	case Exclusive:
		return "BEGIN EXCLUSIVE TRANSACTION"
	default:
		return "BEGIN DEFERRED TRANSACTION"
	}
}

// Config contains database connection options.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	Path string

	// Create makes Open create the file (and its directory) when it does not
	// exist. Without it, opening a missing database is an open failure.
	Create bool

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	// Prevents "database is locked" errors under contention.
	BusyTimeout int

	// ForeignKeys enables foreign key constraint enforcement.
	ForeignKeys bool
}

// DB owns exactly one live SQLite connection.
//
// The database/sql pool underneath is pinned to a single connection, so the
// explicit transaction statements issued by Begin, Commit and Rollback scope
// every subsequent operation on this handle. See the package documentation
// for the cursor-pinning consequence.
type DB struct {
	db   *sql.DB
	path string
}

// Open establishes a database connection with the specified configuration.
//
// It builds a file: DSN carrying the busy timeout, foreign key and journal
// mode settings, pins the pool to one connection, and verifies connectivity
// with a ping. On any failure after the handle exists, the partially opened
// resource is released before the error propagates.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	mode := "rw"
	if cfg.Create {
		mode = "rwc"
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, dirPermissions); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	connStr := fmt.Sprintf("file:%s?mode=%s&_busy_timeout=%d",
		cfg.Path,
		mode,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.ForeignKeys {
		connStr += "&_foreign_keys=on"
	}
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection, exclusively owned. Explicit BEGIN/COMMIT issued on this
	// handle must see the same underlying connection as every statement.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{
		db:   sqlDB,
		path: cfg.Path,
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// Restrict file permissions (owner read/write only).
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Best effort

	return db, nil
}

// Close releases the underlying connection. Safe to call on an already
// closed handle.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	sqlDB := db.db
	db.db = nil
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	err := db.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns connection statistics, useful for debugging cursor pinning.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// Begin starts a transaction with the given lock-acquisition kind.
func (db *DB) Begin(ctx context.Context, kind TxKind) error {
	return db.ExecScript(ctx, kind.beginSQL())
}

// Commit commits the active transaction. Committing without an active
// transaction is a statement-level failure, propagated with the engine's
// diagnostic.
func (db *DB) Commit(ctx context.Context) error {
	return db.ExecScript(ctx, "COMMIT TRANSACTION")
}

// Rollback rolls back the active transaction.
func (db *DB) Rollback(ctx context.Context) error {
	return db.ExecScript(ctx, "ROLLBACK TRANSACTION")
}

// ExecScript runs raw SQL text verbatim without parameter binding. Unlike
// the prepared-statement path, which compiles only the first statement the
// way the engine's prepare primitive does, this path executes every
// statement in the text. Transaction control and migration scripts go
// through here.
func (db *DB) ExecScript(ctx context.Context, sqlText string) error {
	if _, err := db.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("executing %q: %w", sqlText, err)
	}
	return nil
}

// Prepare compiles sql into a reusable statement bound to this connection.
// The compiled plan is retained across executions. Compile failures carry
// the offending SQL text and the engine's diagnostic.
func (db *DB) Prepare(ctx context.Context, sqlText string) (*Stmt, error) {
	stmt, err := db.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("preparing %q: %w", sqlText, err)
	}
	return &Stmt{stmt: stmt, sqlText: sqlText}, nil
}

// Execute is the one-shot compile, bind and run path. The returned statement
// may be fetched from, and must be closed by the caller:
//
//	stmt, err := db.Execute(ctx, "SELECT v FROM t WHERE id = ?", id)
//	if err != nil {
//	    return err
//	}
//	defer stmt.Close()
func (db *DB) Execute(ctx context.Context, sqlText string, args ...any) (*Stmt, error) {
	stmt, err := db.Prepare(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	if err := stmt.Exec(ctx, args...); err != nil {
		stmt.Close() //nolint:errcheck // Release before the failure propagates
		return nil, err
	}
	return stmt, nil
}
