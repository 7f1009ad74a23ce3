// Package sqlitekit provides a typed access layer over an embedded SQLite
// database.
//
// This package manages:
//   - Database connection lifecycle with WAL mode and busy timeout
//   - Explicit transaction control (deferred, immediate, exclusive)
//   - Prepared statements with positional typed binding and extraction
//   - A closed set of value codecs keyed by the Go type of each argument
//
// The schema migration applier lives in the migrate subpackage.
//
// # Connection Model
//
// A DB owns exactly one underlying SQLite connection: the database/sql pool
// is pinned to a single connection so that the BEGIN/COMMIT/ROLLBACK
// statements issued by Begin, Commit and Rollback scope every subsequent
// operation on the handle. The flip side of that exclusivity is that an open
// result cursor pins the connection: close or drain a statement before
// issuing unrelated operations on the same DB, or those operations will wait
// for the connection indefinitely.
//
// A DB and its statements are not safe for concurrent use from multiple
// goroutines without external serialisation. Cross-process concurrency is
// governed entirely by SQLite's own file locking.
//
// # Typed Binding and Extraction
//
// Statement arguments are bound by position starting at 1, result columns
// extracted by position starting at 0. The supported types are booleans
// (stored as 0/1), integers of any width, floats, strings (exact byte
// ranges, embedded zero bytes included), []byte blobs, fixed-size [N]byte
// buffers (transmitted as text of N-1 bytes), time.Time, and pointers to any
// of these as the optional wrapper: a nil pointer binds NULL, and a NULL
// column extracted through a **T leaves the pointer nil. Named types whose
// underlying kind is supported dispatch through the underlying codec, so
// integer-backed enumerations round-trip without registration. Binding or
// extracting an unsupported type fails before the engine is ever invoked.
//
// # Usage
//
//	db, err := sqlitekit.Open(ctx, sqlitekit.Config{Path: path, Create: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	stmt, err := db.Execute(ctx, "SELECT name, age FROM people WHERE age > ?", 30)
//	if err != nil {
//	    return err
//	}
//	defer stmt.Close()
//
//	var name string
//	var age int
//	for {
//	    ok, err := stmt.Fetch(&name, &age)
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    // use name, age
//	}
package sqlitekit
