// Package component defines the Monitor and Action contracts, the Event type
// passed between them, and the registered-factory machinery that turns the
// monitors and actions config sections into name-keyed registries.
//
// Concrete types register a constructor under a type name
// (Factory.RegisterMonitor, Factory.RegisterAction). BuildMonitors and
// BuildActions invoke the matching constructor once per config entry and
// return a Registry that keeps declaration order. Construction failures come
// back as *ConstructionError naming the entry.
//
// Monitors embed ListenerSet to get AddListener/Listeners for free.
package component
