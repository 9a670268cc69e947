// Package dispatch implements the polling loop.
//
// Loop.Run sleeps for the poll interval, then runs every monitor in registry
// order and passes each event to actions, then sleeps again. Two routing
// modes exist:
//
//   - listeners (default): an event goes only to the actions bound to its
//     monitor through the listeners section, in binding order. An action
//     bound by two listeners receives the event twice.
//   - broadcast: an event goes to every action in the action registry, in
//     registry order, whatever the bindings say.
//
// Any error from Monitor.Run or Action.Act ends the loop at once and is
// returned as *ComponentError. There is no retry and no isolation between
// components. Cancelling the context ends the loop with a nil error, either
// during the wait or between components.
//
// When Options carries Metrics or a status.Store, every run, action call
// and cycle is recorded there.
package dispatch
