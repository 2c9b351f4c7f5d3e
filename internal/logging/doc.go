// Package logging wraps log/slog construction for the daemon and CLI.
//
// It provides the option surface used by cmd entrypoints, a console handler
// for interactive use, a JSON handler for log files, attribute helpers, and
// context annotation so channel/job/stage identifiers follow a pipeline run
// through every log line.
package logging
