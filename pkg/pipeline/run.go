package pipeline

import (
	"context"
	"sync"
	"time"
)

// State is a run's position in its lifecycle.
type State string

// Run states. A run past StateRunning never goes back.
const (
	StatePending        State = "PENDING"
	StateAcquiringLock  State = "ACQUIRING_LOCK"
	StateSkipped        State = "SKIPPED"
	StateRunning        State = "RUNNING"
	StateSucceeded      State = "SUCCEEDED"
	StatePartialSuccess State = "PARTIAL_SUCCESS"
	StateFailed         State = "FAILED"
	StateCancelled      State = "CANCELLED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StateSucceeded, StatePartialSuccess, StateFailed, StateCancelled:
		return true
	}
	return false
}

// SourceStats counts one source's fetch attempts within a run.
type SourceStats struct {
	Name      string `json:"name"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Records   int    `json:"records"`
	Degraded  bool   `json:"degraded"`
}

// Stats is the per-run statistics object.
type Stats struct {
	Sources           map[string]*SourceStats `json:"sources"`
	RecordsValidated  int                     `json:"records_validated"`
	RecordsRejected   int                     `json:"records_rejected"`
	GroupsProcessed   int                     `json:"groups_processed"`
	ConflictsCreated  int                     `json:"conflicts_created"`
	ConflictsUpdated  int                     `json:"conflicts_updated"`
	LaunchesUpserted  int                     `json:"launches_upserted"`
	LaunchesFailed    int                     `json:"launches_failed"`
	DuplicatesRemoved int                     `json:"duplicates_removed"`
}

func newStats() Stats {
	return Stats{Sources: map[string]*SourceStats{}}
}

// source returns the stats bucket for a source, creating it on first use.
func (s *Stats) source(name string) *SourceStats {
	ss, found := s.Sources[name]
	if !found {
		ss = &SourceStats{Name: name}
		s.Sources[name] = ss
	}
	return ss
}

// clone deep-copies stats for status snapshots.
func (s Stats) clone() Stats {
	copied := s
	copied.Sources = make(map[string]*SourceStats, len(s.Sources))
	for name, ss := range s.Sources {
		dup := *ss
		copied.Sources[name] = &dup
	}
	return copied
}

// RunStatus is a point-in-time snapshot of one run.
type RunStatus struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	Stats      Stats      `json:"stats"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// runRegistry tracks runs by id for status polling. Runs are process-local;
// cross-worker exclusion comes from the lease, not from this registry.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*run)}
}

func (rr *runRegistry) add(r *run) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.runs[r.id] = r
}

func (rr *runRegistry) get(id string) (*run, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, found := rr.runs[id]
	return r, found
}

// run is the coordinator's mutable record of one run.
type run struct {
	id     string
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	reason     string
	stats      Stats
	startedAt  time.Time
	finishedAt *time.Time
	cancelled  bool
}

func (r *run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *run) finish(s State, reason string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.reason = reason
	r.finishedAt = &at
}

func (r *run) markCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

func (r *run) wasCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *run) setStats(s Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = s
}

func (r *run) status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := RunStatus{
		ID:        r.id,
		State:     r.state,
		Reason:    r.reason,
		Stats:     r.stats.clone(),
		StartedAt: r.startedAt,
	}
	if r.finishedAt != nil {
		at := *r.finishedAt
		status.FinishedAt = &at
	}
	return status
}
