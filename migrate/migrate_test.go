package migrate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/sqlitekit"
)

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *sqlitekit.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlitekit.Open(context.Background(), sqlitekit.Config{
		Path:        dbPath,
		Create:      true,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db
}

// testMigrations returns n schema migrations, each creating one table named
// m1..mn.
func testMigrations(n int) []Migration {
	migrations := make([]Migration, 0, n)
	for i := 1; i <= n; i++ {
		name := "m" + string(rune('0'+i))
		migrations = append(migrations, Migration{
			Description: "create " + name,
			SQL:         "CREATE TABLE " + name + " (id INTEGER)",
		})
	}
	return migrations
}

// tableExists reports whether a table is present in the schema.
func tableExists(t *testing.T, db *sqlitekit.DB, name string) bool {
	t.Helper()

	stmt, err := db.Execute(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", name)
	if err != nil {
		t.Fatalf("schema query error = %v", err)
	}
	defer stmt.Close() //nolint:errcheck // Test cleanup

	var n int
	if _, err := stmt.Fetch(&n); err != nil {
		t.Fatalf("schema fetch error = %v", err)
	}
	return n > 0
}

// versionRows reads all recorded versions in order.
func versionRows(t *testing.T, db *sqlitekit.DB) []int {
	t.Helper()

	stmt, err := db.Execute(context.Background(),
		"SELECT Version FROM VersionInfo ORDER BY Version")
	if err != nil {
		t.Fatalf("version query error = %v", err)
	}
	defer stmt.Close() //nolint:errcheck // Test cleanup

	var versions []int
	var v int
	for {
		ok, err := stmt.Fetch(&v)
		if err != nil {
			t.Fatalf("version fetch error = %v", err)
		}
		if !ok {
			break
		}
		versions = append(versions, v)
	}
	return versions
}

// TestApplyFresh verifies a full run against an empty database.
func TestApplyFresh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Apply(ctx, db, testMigrations(3)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	current, err := Current(ctx, db)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != 3 {
		t.Errorf("Current() = %d, want 3", current)
	}

	got := versionRows(t, db)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("recorded versions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recorded versions = %v, want %v", got, want)
		}
	}

	for _, name := range []string{"m1", "m2", "m3"} {
		if !tableExists(t, db, name) {
			t.Errorf("table %s was not created", name)
		}
	}
}

// TestApplyIdempotent verifies re-running an applied list performs no
// additional executions and no additional inserts.
func TestApplyIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := testMigrations(3)
	if err := Apply(ctx, db, migrations); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// A second run would fail on CREATE TABLE if any script re-executed.
	if err := Apply(ctx, db, migrations); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	if got := versionRows(t, db); len(got) != 3 {
		t.Errorf("got %d version rows after re-run, want 3", len(got))
	}
}

// TestApplyPending verifies only scripts beyond the current version run.
func TestApplyPending(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	five := testMigrations(5)

	// Bring the database to version 2 first.
	if err := Apply(ctx, db, five[:2]); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if err := Apply(ctx, db, five); err != nil {
		t.Fatalf("Apply() of full list error = %v", err)
	}

	current, err := Current(ctx, db)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != 5 {
		t.Errorf("Current() = %d, want 5", current)
	}
	if got := versionRows(t, db); len(got) != 5 {
		t.Errorf("got %d version rows, want 5", len(got))
	}
	for _, name := range []string{"m3", "m4", "m5"} {
		if !tableExists(t, db, name) {
			t.Errorf("pending migration table %s was not created", name)
		}
	}
}

// TestApplyAtomicFailure verifies a mid-batch failure leaves the version
// table and the schema exactly as they were.
func TestApplyAtomicFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	good := testMigrations(5)
	if err := Apply(ctx, db, good[:2]); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	bad := make([]Migration, len(good))
	copy(bad, good)
	bad[3].SQL = "CREATE BROKEN SYNTAX" // 4th overall, 2nd of the pending batch

	err := Apply(ctx, db, bad)
	if err == nil {
		t.Fatal("Apply() with a failing script should fail")
	}
	if !strings.Contains(err.Error(), "migration 4") {
		t.Errorf("error %q does not name the failing migration", err)
	}

	current, cErr := Current(ctx, db)
	if cErr != nil {
		t.Fatalf("Current() error = %v", cErr)
	}
	if current != 2 {
		t.Errorf("Current() = %d after failed batch, want 2", current)
	}
	if tableExists(t, db, "m3") {
		t.Error("script before the failure left visible changes; batch is not atomic")
	}

	// The handle stays usable: fixing the list and re-applying succeeds.
	if err := Apply(ctx, db, good); err != nil {
		t.Fatalf("Apply() after failure error = %v", err)
	}
	if current, _ := Current(ctx, db); current != 5 {
		t.Errorf("Current() = %d after recovery, want 5", current)
	}
}

// TestApplyShorterListIsNoOp verifies a list no longer than the current
// version leaves everything untouched.
func TestApplyShorterListIsNoOp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Apply(ctx, db, testMigrations(3)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// A list shorter than the current version is "no greater than": no-op.
	if err := Apply(ctx, db, testMigrations(2)); err != nil {
		t.Fatalf("Apply() of shorter list error = %v", err)
	}
	if current, _ := Current(ctx, db); current != 3 {
		t.Errorf("Current() = %d, want 3", current)
	}
}

// TestApplyEmptyList verifies applying nothing succeeds and reports 0.
func TestApplyEmptyList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Apply(ctx, db, nil); err != nil {
		t.Fatalf("Apply() of empty list error = %v", err)
	}

	current, err := Current(ctx, db)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != 0 {
		t.Errorf("Current() = %d, want 0", current)
	}
}

// TestApplyMultiStatementScript verifies a script's statements all run.
func TestApplyMultiStatementScript(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{{
		Description: "initial schema",
		SQL: `
			CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
			CREATE INDEX idx_users_name ON users (name);
			INSERT INTO users (name) VALUES ('seed');
		`,
	}}
	if err := Apply(ctx, db, migrations); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stmt, err := db.Execute(ctx, "SELECT COUNT(*) FROM users")
	if err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	defer stmt.Close() //nolint:errcheck // Test cleanup

	var n int
	if _, err := stmt.Fetch(&n); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != 1 {
		t.Errorf("got %d seeded rows, want 1", n)
	}
}

// TestVersionRecordContents verifies timestamps and optional descriptions.
func TestVersionRecordContents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{Description: "first", SQL: "CREATE TABLE a (id INTEGER)"},
		{SQL: "CREATE TABLE b (id INTEGER)"}, // no description
	}
	if err := Apply(ctx, db, migrations); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stmt, err := db.Execute(ctx,
		"SELECT Version, AppliedOn, Description FROM VersionInfo ORDER BY Version")
	if err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	defer stmt.Close() //nolint:errcheck // Test cleanup

	var version int
	var appliedOn time.Time
	var description *string

	ok, err := stmt.Fetch(&version, &appliedOn, &description)
	if err != nil || !ok {
		t.Fatalf("Fetch() = (%v, %v), want a row", ok, err)
	}
	if version != 1 {
		t.Errorf("Version = %d, want 1", version)
	}
	if appliedOn.IsZero() {
		t.Error("AppliedOn was not recorded")
	}
	if description == nil || *description != "first" {
		t.Errorf("Description = %v, want \"first\"", description)
	}

	ok, err = stmt.Fetch(&version, &appliedOn, &description)
	if err != nil || !ok {
		t.Fatalf("Fetch() = (%v, %v), want a row", ok, err)
	}
	if description != nil {
		t.Errorf("Description = %q, want NULL", *description)
	}
}

// TestCurrentFresh verifies a fresh database reports version 0.
func TestCurrentFresh(t *testing.T) {
	db := openTestDB(t)

	current, err := Current(context.Background(), db)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != 0 {
		t.Errorf("Current() = %d, want 0", current)
	}
}
