package registry

import "time"

// EvictOnce exposes the sweep step to the external test package.
func (r *Registry) EvictOnce(retention time.Duration) int {
	return r.evictOnce(retention)
}
