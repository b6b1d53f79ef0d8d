// Package analysis defines the seam between the job subsystem and the
// analysis engine that turns an uploaded table into a report.
package analysis

import (
	"context"
	"fmt"
)

// Milestone is a discrete progress checkpoint reported by an engine while
// it works, carrying a percentage and a short description.
type Milestone struct {
	Percent int
	Message string
}

// Input is the raw upload handed to an engine.
type Input struct {
	Filename string
	Data     []byte
}

// Artifact is the finished report produced by an engine.
type Artifact struct {
	Content     []byte
	ContentType string
}

// ReportFunc receives milestone events during a run. Implementations must
// tolerate it being invoked from the engine's goroutine at any rate.
type ReportFunc func(Milestone)

// Engine runs an analysis to completion, reporting milestones along the
// way. A returned error of type *BadInputError marks the input itself as
// unprocessable; any other error is an internal analysis failure. Engines
// must honor ctx cancellation between units of work.
type Engine interface {
	Run(ctx context.Context, input Input, report ReportFunc) (*Artifact, error)
}

// BadInputError marks input that cannot be analyzed: malformed content or
// a structural ceiling violation. It distinguishes user error from engine
// failure in the terminal job state.
type BadInputError struct {
	error
}

func NewBadInputError(format string, args ...any) *BadInputError {
	return &BadInputError{fmt.Errorf(format, args...)}
}
