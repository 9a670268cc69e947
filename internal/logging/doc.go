// Package logging turns the general section of the settings into the
// process-wide slog logger: level (default ERROR), optional append-only log
// file (default stderr) and json or text output.
package logging
