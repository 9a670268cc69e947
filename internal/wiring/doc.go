// Package wiring validates the listeners section against the built monitor
// and action registries and records each binding on its monitor.
package wiring
