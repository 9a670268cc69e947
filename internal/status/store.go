package status

import (
	"sort"
	"sync"
	"time"
)

// MonitorStatus is the outcome of a monitor's most recent run.
type MonitorStatus struct {
	Name        string        `json:"name"`
	LastRun     time.Time     `json:"last_run"`
	Duration    time.Duration `json:"duration_ns"`
	Events      int           `json:"events"`
	TotalEvents int           `json:"total_events"`
	Runs        int           `json:"runs"`
	LastError   string        `json:"last_error,omitempty"`
}

// Store is a thread-safe in-memory record of dispatch progress, keyed by
// monitor name. The dispatch loop writes; the HTTP handler reads.
type Store struct {
	mu        sync.RWMutex
	monitors  map[string]*MonitorStatus
	order     map[string]int
	cycles    uint64
	lastCycle time.Time
	started   time.Time
	now       func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	s := &Store{
		monitors: make(map[string]*MonitorStatus),
		order:    make(map[string]int),
		now:      time.Now,
	}
	s.started = s.now()
	return s
}

// RecordRun stores the outcome of one monitor run.
func (s *Store) RecordRun(name string, events int, took time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.monitors[name]
	if !ok {
		st = &MonitorStatus{Name: name}
		s.monitors[name] = st
		s.order[name] = len(s.order)
	}
	st.LastRun = s.now()
	st.Duration = took
	st.Events = events
	st.TotalEvents += events
	st.Runs++
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
}

// RecordCycle marks the end of a dispatch cycle.
func (s *Store) RecordCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.lastCycle = s.now()
}

// Get returns a copy of the status for the named monitor.
func (s *Store) Get(name string) (MonitorStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.monitors[name]
	if !ok {
		return MonitorStatus{}, false
	}
	return *st, true
}

// List returns copies of all monitor statuses in the order they first ran.
func (s *Store) List() []MonitorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MonitorStatus, 0, len(s.monitors))
	for _, st := range s.monitors {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].Name] < s.order[out[j].Name] })
	return out
}

// Cycles returns the number of completed cycles and when the last one ended.
func (s *Store) Cycles() (uint64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles, s.lastCycle
}

// Started returns when the store was created.
func (s *Store) Started() time.Time {
	return s.started
}
