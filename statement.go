package sqlitekit

import (
	"context"
	"database/sql"
	"fmt"
)

// Stmt owns one compiled statement and, between an execution that produced a
// row and the Fetch that consumes it, the open row cursor.
//
// A Stmt holds the connection while its cursor is open; close or drain it
// before issuing unrelated operations on the same DB. Statements must not
// outlive the DB that prepared them and must not be copied after first use.
type Stmt struct {
	stmt     *sql.Stmt
	sqlText  string
	rows     *sql.Rows
	rowReady bool
}

// Exec resets the statement, binds every argument in order starting at
// parameter 1 with the Transient policy, and advances to the first row or to
// completion. Any unread row from a previous execution is discarded.
//
// Failure ordering: reset failures surface before any binding is attempted,
// bind conversion failures before the engine runs, step failures after
// binding succeeded. Each carries the statement's diagnostic text.
func (s *Stmt) Exec(ctx context.Context, args ...any) error {
	return s.ExecPolicy(ctx, Transient, args...)
}

// ExecPolicy is Exec with an explicit bind policy for callers that can prove
// the lifetime of bound byte ranges.
func (s *Stmt) ExecPolicy(ctx context.Context, policy BindPolicy, args ...any) error {
	if err := s.reset(); err != nil {
		return fmt.Errorf("resetting statement: %w", err)
	}
	bound, err := bindArgs(policy, args)
	if err != nil {
		return err
	}
	rows, err := s.stmt.QueryContext(ctx, bound...)
	if err != nil {
		return fmt.Errorf("executing %q: %w", s.sqlText, err)
	}
	s.rows = rows
	return s.step()
}

// Fetch advances to the next row if none is pending and extracts result
// columns 0..len(dest)-1 into dest in order. It returns false with a nil
// error once the result set is exhausted; callers use that as the
// end-of-results signal, not an error:
//
//	for {
//	    ok, err := stmt.Fetch(&id, &name)
//	    if err != nil || !ok {
//	        return err
//	    }
//	    ...
//	}
//
// Extracting fewer values than the row has columns is allowed; asking for
// more is an error.
func (s *Stmt) Fetch(dest ...any) (bool, error) {
	if s.rows == nil {
		return false, nil
	}
	if !s.rowReady {
		if err := s.step(); err != nil {
			return false, err
		}
		if !s.rowReady {
			return false, nil
		}
	}
	if err := s.scan(dest); err != nil {
		return false, err
	}
	s.rowReady = false
	return true, nil
}

// Close releases the cursor and the compiled statement. Safe to call more
// than once.
func (s *Stmt) Close() error {
	resetErr := s.reset()
	if s.stmt == nil {
		return resetErr
	}
	stmt := s.stmt
	s.stmt = nil
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("finalising statement: %w", err)
	}
	return resetErr
}

// step advances the cursor exactly once. Reaching completion closes the
// cursor, which releases the connection for other statements.
func (s *Stmt) step() error {
	if s.rows.Next() {
		s.rowReady = true
		return nil
	}
	err := s.rows.Err()
	closeErr := s.rows.Close()
	s.rows = nil
	s.rowReady = false
	if err != nil {
		return fmt.Errorf("stepping %q: %w", s.sqlText, err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing cursor of %q: %w", s.sqlText, closeErr)
	}
	return nil
}

// scan extracts the current row into dest. Surplus columns are read into
// throwaway slots so the row is consumed whole.
func (s *Stmt) scan(dest []any) error {
	cols, err := s.rows.Columns()
	if err != nil {
		return fmt.Errorf("reading columns of %q: %w", s.sqlText, err)
	}
	if len(dest) > len(cols) {
		return fmt.Errorf("fetching %d values from a %d-column row", len(dest), len(cols))
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scanning %q: %w", s.sqlText, err)
	}
	for i, d := range dest {
		if err := extractValue(d, raw[i]); err != nil {
			return fmt.Errorf("extracting column %d: %w", i, err)
		}
	}
	return nil
}

// reset discards any open cursor so the statement can be rebound.
func (s *Stmt) reset() error {
	s.rowReady = false
	if s.rows == nil {
		return nil
	}
	rows := s.rows
	s.rows = nil
	if err := rows.Close(); err != nil {
		return fmt.Errorf("closing cursor of %q: %w", s.sqlText, err)
	}
	return nil
}
