package registry

import (
	"sync"

	"github.com/google/uuid"
)

// watcher delivers snapshots to a single subscriber. The channel has a
// capacity of one and publishing is latest-wins: a slow consumer misses
// intermediate frames but always observes the most recent one, and the
// terminal frame is never dropped because the registry closes the channel
// only after delivering it.
type watcher struct {
	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
}

func newWatcher() *watcher {
	return &watcher{ch: make(chan Snapshot, 1)}
}

func (w *watcher) publish(s Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- s:
	default:
		// coalesce: drop the stale frame, keep the latest
		select {
		case <-w.ch:
		default:
		}
		w.ch <- s
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// Watch subscribes to a job's snapshots. The returned channel is primed
// with the current snapshot and closed by the registry after the terminal
// snapshot has been sent. Watching an already-terminal job yields exactly
// the terminal snapshot and an immediately closed channel; earlier frames
// are never replayed.
//
// The returned cancel func releases the subscription; it is safe to call
// multiple times and never affects job execution.
func (r *Registry) Watch(id uuid.UUID) (<-chan Snapshot, func(), error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, nil, err
	}

	w := newWatcher()

	// Prime while holding the record lock: registration and the first frame
	// are atomic with respect to Update, so a concurrent terminal update
	// always publishes after the prime and the terminal frame can never be
	// displaced by a stale one.
	rec.mu.Lock()
	snap := rec.snap
	terminal := snap.State.Terminal()
	if !terminal {
		rec.watchers[w] = struct{}{}
	}
	w.publish(snap)
	rec.mu.Unlock()

	if terminal {
		w.close()
		return w.ch, func() {}, nil
	}

	cancel := func() {
		rec.mu.Lock()
		delete(rec.watchers, w)
		rec.mu.Unlock()
		w.close()
	}
	return w.ch, cancel, nil
}
