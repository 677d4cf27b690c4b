// Package logging provides slog setup with a size-rotating log file for gamescout.
// With --debug, JSON logs go to ~/.gamescout/logs/gamescout.log at debug level.
// Without it, library code logs through the slog default handler on stderr.
package logging
