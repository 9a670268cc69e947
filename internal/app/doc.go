// Package app assembles pimonitor from its configuration: settings are
// loaded, the logger configured, monitors and actions constructed and wired,
// and the dispatch loop started alongside the optional config watcher and
// status server.
package app
