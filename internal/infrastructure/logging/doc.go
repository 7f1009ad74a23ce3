// Package logging provides structured logging for the sqlitekit CLI.
//
// It wraps Go's standard log/slog package: JSON output for machine
// consumption, text for humans, level-based filtering configured through
// the logging section of the CLI config. The sqlitekit library itself never
// logs; only the CLI does.
package logging
