package registry

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// StartEviction runs a background sweeper that drops terminal records once
// they have been idle for longer than retention. The ticker is jittered so
// that several instances started together do not sweep in lockstep.
// Artifacts are untouched: they live in the artifact store under their own
// retention policy, and terminal jobs remain resolvable via the archive.
func (r *Registry) StartEviction(ctx context.Context, retention, interval time.Duration) {
	go func() {
		ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10, Mean: 0})
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.evictOnce(retention); n > 0 {
					zap.S().Named("registry").Infof("evicted %d terminal jobs", n)
				}
			}
		}
	}()
}

func (r *Registry) evictOnce(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	evicted := 0
	for _, snap := range r.Snapshots() {
		if snap.State.Terminal() && snap.UpdatedAt.Before(cutoff) {
			if err := r.Delete(snap.ID); err == nil {
				evicted++
			}
		}
	}
	return evicted
}
