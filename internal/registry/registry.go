// Package registry is the single source of truth for report job state.
//
// Each job record has exactly one writer, the analysis runner that owns the
// job; every other component observes immutable snapshots. Watchers receive
// coalesced snapshots over a buffered channel and are closed by the registry
// once the terminal snapshot has been delivered.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobTerminal       = errors.New("job already reached a terminal state")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// State is a job's lifecycle state. Transitions follow
// Created -> Validating -> Processing -> {Complete|Failed}; Failed is
// reachable from any non-terminal state.
type State string

const (
	StateCreated    State = "created"
	StateValidating State = "validating"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// rank orders the forward path; Failed is handled separately.
func (s State) rank() int {
	switch s {
	case StateCreated:
		return 0
	case StateValidating:
		return 1
	case StateProcessing:
		return 2
	case StateComplete:
		return 3
	}
	return -1
}

// FailureKind classifies terminal failures.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureAnalysis   FailureKind = "analysis"
	FailureTimeout    FailureKind = "timeout"
	FailureInternal   FailureKind = "internal"
)

// Failure is the structured error recorded on a failed job.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Snapshot is an immutable copy of a job record.
type Snapshot struct {
	ID            uuid.UUID
	State         State
	Progress      int
	StatusMessage string
	InputName     string
	ArtifactRef   string
	ArtifactType  string
	Failure       *Failure
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Mutation describes a single update applied by the owning runner. Nil
// fields are left untouched.
type Mutation struct {
	State         *State
	Progress      *int
	StatusMessage *string
	ArtifactRef   *string
	ArtifactType  *string
	Failure       *Failure
}

type record struct {
	mu       sync.RWMutex
	snap     Snapshot
	input    []byte
	watchers map[*watcher]struct{}
}

// Registry is an in-memory job table safe for concurrent readers. Updates
// for a given id must come from a single goroutine, the job's runner.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*record
}

func New() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*record)}
}

// Create allocates a new job in the Created state holding the raw upload.
// Identifiers are random UUIDs and never reused.
func (r *Registry) Create(inputName string, input []byte) Snapshot {
	now := time.Now().UTC()
	rec := &record{
		snap: Snapshot{
			ID:            uuid.New(),
			State:         StateCreated,
			StatusMessage: "job created",
			InputName:     inputName,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		input:    input,
		watchers: make(map[*watcher]struct{}),
	}

	r.mu.Lock()
	r.jobs[rec.snap.ID] = rec
	r.mu.Unlock()

	return rec.snap
}

// Get returns a snapshot of the job or ErrJobNotFound.
func (r *Registry) Get(id uuid.UUID) (Snapshot, error) {
	rec, err := r.record(id)
	if err != nil {
		return Snapshot{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.snap, nil
}

// Input returns the raw upload bytes for the runner. The bytes are released
// once the job reaches a terminal state.
func (r *Registry) Input(id uuid.UUID) ([]byte, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.input, nil
}

// Update applies a mutation on behalf of the job's runner and notifies
// watchers with the resulting snapshot. Progress never moves backwards and
// is capped at 100; terminal records are immutable. When the mutation makes
// the job terminal the input bytes are dropped and all watchers are closed
// after delivery of the final snapshot.
func (r *Registry) Update(id uuid.UUID, m Mutation) (Snapshot, error) {
	rec, err := r.record(id)
	if err != nil {
		return Snapshot{}, err
	}

	rec.mu.Lock()
	if rec.snap.State.Terminal() {
		rec.mu.Unlock()
		return Snapshot{}, ErrJobTerminal
	}

	if m.State != nil {
		if err := checkTransition(rec.snap.State, *m.State); err != nil {
			rec.mu.Unlock()
			return Snapshot{}, err
		}
		rec.snap.State = *m.State
	}
	if m.Progress != nil {
		p := *m.Progress
		if p > 100 {
			p = 100
		}
		if p > rec.snap.Progress {
			rec.snap.Progress = p
		}
	}
	if m.StatusMessage != nil {
		rec.snap.StatusMessage = *m.StatusMessage
	}
	if m.ArtifactRef != nil && rec.snap.State == StateComplete {
		rec.snap.ArtifactRef = *m.ArtifactRef
	}
	if m.ArtifactType != nil && rec.snap.State == StateComplete {
		rec.snap.ArtifactType = *m.ArtifactType
	}
	if m.Failure != nil && rec.snap.State == StateFailed {
		rec.snap.Failure = m.Failure
	}
	if rec.snap.State == StateComplete {
		rec.snap.Progress = 100
	}
	rec.snap.UpdatedAt = time.Now().UTC()

	terminal := rec.snap.State.Terminal()
	if terminal {
		rec.input = nil
	}

	snap := rec.snap
	watchers := make([]*watcher, 0, len(rec.watchers))
	for w := range rec.watchers {
		watchers = append(watchers, w)
	}
	if terminal {
		rec.watchers = make(map[*watcher]struct{})
	}
	rec.mu.Unlock()

	for _, w := range watchers {
		w.publish(snap)
		if terminal {
			w.close()
		}
	}

	return snap, nil
}

// Delete evicts a job record. Watchers, if any remain, are closed without
// a final snapshot; callers evict only terminal jobs past retention.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	rec, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}

	rec.mu.Lock()
	watchers := make([]*watcher, 0, len(rec.watchers))
	for w := range rec.watchers {
		watchers = append(watchers, w)
	}
	rec.watchers = make(map[*watcher]struct{})
	rec.mu.Unlock()

	for _, w := range watchers {
		w.close()
	}
	return nil
}

// Snapshots returns a copy of every record, newest first not guaranteed.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.jobs))
	for _, rec := range r.jobs {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		out = append(out, rec.snap)
		rec.mu.RUnlock()
	}
	return out
}

func (r *Registry) record(id uuid.UUID) (*record, error) {
	r.mu.RLock()
	rec, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return rec, nil
}

func checkTransition(from, to State) error {
	if to == StateFailed {
		return nil
	}
	if to.rank() != from.rank()+1 {
		return ErrInvalidTransition
	}
	return nil
}
