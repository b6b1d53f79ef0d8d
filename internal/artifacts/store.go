// Package artifacts stores finished report bytes. Objects are written
// exactly once by the runner owning the job and are immutable afterwards;
// they outlive the job registry record under their own retention policy.
package artifacts

import (
	"context"
	"errors"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// Store is the artifact backend. Put returns the reference recorded on the
// job; Get resolves it back to the stored bytes.
type Store interface {
	Put(ctx context.Context, ref string, content []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
}
