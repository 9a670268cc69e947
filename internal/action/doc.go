// Package action provides the built-in action types: log, webhook and
// command. Register adds them to a component.Factory.
package action
