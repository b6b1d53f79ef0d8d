// Package runner supervises the execution of report jobs. Exactly one
// runner goroutine owns a job from dispatch to terminal state; it is the
// only writer of that job's registry record.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spaghetti-software-inc/ninjapivot/internal/analysis"
	"github.com/spaghetti-software-inc/ninjapivot/internal/artifacts"
	"github.com/spaghetti-software-inc/ninjapivot/internal/events"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store/model"
	"github.com/spaghetti-software-inc/ninjapivot/pkg/metrics"
)

type engineResult struct {
	artifact *analysis.Artifact
	err      error
}

type Runner struct {
	registry  *registry.Registry
	engine    analysis.Engine
	artifacts artifacts.Store
	archive   store.Store
	producer  *events.EventProducer
	timeout   time.Duration
}

func New(
	reg *registry.Registry,
	engine analysis.Engine,
	artifactStore artifacts.Store,
	archive store.Store,
	producer *events.EventProducer,
	timeout time.Duration,
) *Runner {
	return &Runner{
		registry:  reg,
		engine:    engine,
		artifacts: artifactStore,
		archive:   archive,
		producer:  producer,
		timeout:   timeout,
	}
}

// Dispatch starts the job's runner goroutine and returns immediately; the
// caller's response is never coupled to analysis duration. Jobs run to
// completion or timeout whether or not anyone observes them.
func (r *Runner) Dispatch(id uuid.UUID) {
	go r.run(id)
}

func (r *Runner) run(id uuid.UUID) {
	logger := zap.S().Named("runner").With("job_id", id.String())

	metrics.IncreaseActiveJobs()
	defer metrics.DecreaseActiveJobs()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	input, err := r.registry.Input(id)
	if err != nil {
		logger.Errorf("job disappeared before execution: %v", err)
		return
	}

	snap, err := r.registry.Get(id)
	if err != nil {
		logger.Errorf("job disappeared before execution: %v", err)
		return
	}

	r.update(id, registry.Mutation{
		State:         stateRef(registry.StateProcessing),
		Progress:      intRef(0),
		StatusMessage: strRef("analysis started"),
	})

	// The engine runs in its own goroutine so the deadline can force the
	// Failed transition even if the engine never comes back. A late result
	// from an abandoned engine is discarded by the registry's terminal
	// guard.
	resCh := make(chan engineResult, 1)
	go func() {
		artifact, err := r.runEngine(ctx, analysis.Input{Filename: snap.InputName, Data: input}, id)
		resCh <- engineResult{artifact: artifact, err: err}
	}()

	var artifact *analysis.Artifact
	select {
	case <-ctx.Done():
		r.fail(id, logger, registry.Failure{
			Kind:    registry.FailureTimeout,
			Message: "processing exceeded the maximum allowed duration",
		})
		return
	case res := <-resCh:
		if res.err != nil {
			r.fail(id, logger, classify(ctx, res.err))
			return
		}
		artifact = res.artifact
	}

	ref := id.String()
	if err := r.artifacts.Put(ctx, ref, artifact.Content); err != nil {
		logger.Errorf("failed to persist artifact: %v", err)
		r.fail(id, logger, registry.Failure{
			Kind:    registry.FailureInternal,
			Message: "failed to persist the generated report",
		})
		return
	}
	metrics.ObserveArtifactSize(len(artifact.Content))

	final := r.update(id, registry.Mutation{
		State:         stateRef(registry.StateComplete),
		Progress:      intRef(100),
		StatusMessage: strRef("report ready"),
		ArtifactRef:   &ref,
		ArtifactType:  &artifact.ContentType,
	})

	metrics.IncreaseJobsCompleted()
	r.finish(final, logger)
	logger.Infof("job complete, artifact %s (%d bytes)", ref, len(artifact.Content))
}

// runEngine executes the engine with milestone forwarding and panic
// containment. A panicking engine must never leave the job stuck in
// Processing.
func (r *Runner) runEngine(ctx context.Context, input analysis.Input, id uuid.UUID) (artifact *analysis.Artifact, err error) {
	defer func() {
		if p := recover(); p != nil {
			artifact = nil
			err = fmt.Errorf("analysis engine panicked: %v", p)
		}
	}()

	report := func(m analysis.Milestone) {
		r.update(id, registry.Mutation{
			Progress:      &m.Percent,
			StatusMessage: &m.Message,
		})
	}

	return r.engine.Run(ctx, input, report)
}

func (r *Runner) fail(id uuid.UUID, logger *zap.SugaredLogger, failure registry.Failure) {
	final := r.update(id, registry.Mutation{
		State:         stateRef(registry.StateFailed),
		StatusMessage: &failure.Message,
		Failure:       &failure,
	})

	metrics.IncreaseJobsFailed(string(failure.Kind))
	r.finish(final, logger)
	logger.Warnf("job failed (%s): %s", failure.Kind, failure.Message)
}

// finish archives the terminal snapshot and emits the lifecycle event.
// Both are best effort observers of the already-final job state.
func (r *Runner) finish(snap registry.Snapshot, logger *zap.SugaredLogger) {
	if snap.ID == uuid.Nil {
		return
	}

	metrics.ObserveJobDuration(snap.UpdatedAt.Sub(snap.CreatedAt).Seconds())

	if r.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := r.archive.Job().Archive(ctx, archivedJob(snap)); err != nil {
			logger.Errorf("failed to archive terminal job: %v", err)
		}
	}

	if r.producer != nil {
		ev := events.JobEvent{
			JobID:         snap.ID.String(),
			State:         string(snap.State),
			Progress:      snap.Progress,
			StatusMessage: snap.StatusMessage,
		}
		if snap.Failure != nil {
			ev.FailureKind = string(snap.Failure.Kind)
		}
		body, _ := json.Marshal(ev)
		if err := r.producer.Write(context.Background(), events.JobMessageKind, bytes.NewReader(body)); err != nil {
			logger.Errorf("failed to emit lifecycle event: %v", err)
		}
	}
}

// update applies a registry mutation and swallows expected errors: a
// terminal or evicted job simply means there is nothing left to report.
func (r *Runner) update(id uuid.UUID, m registry.Mutation) registry.Snapshot {
	snap, err := r.registry.Update(id, m)
	if err != nil {
		if !errors.Is(err, registry.ErrJobTerminal) && !errors.Is(err, registry.ErrJobNotFound) {
			zap.S().Named("runner").Errorf("registry update for %s failed: %v", id, err)
		}
		return registry.Snapshot{}
	}
	return snap
}

func classify(ctx context.Context, err error) registry.Failure {
	var badInput *analysis.BadInputError

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return registry.Failure{
			Kind:    registry.FailureTimeout,
			Message: "processing exceeded the maximum allowed duration",
		}
	case errors.As(err, &badInput):
		return registry.Failure{
			Kind:    registry.FailureValidation,
			Message: err.Error(),
		}
	default:
		return registry.Failure{
			Kind:    registry.FailureAnalysis,
			Message: err.Error(),
		}
	}
}

func archivedJob(snap registry.Snapshot) model.ArchivedJob {
	job := model.ArchivedJob{
		ID:            snap.ID,
		State:         string(snap.State),
		Progress:      snap.Progress,
		StatusMessage: snap.StatusMessage,
		InputName:     snap.InputName,
		ArtifactRef:   snap.ArtifactRef,
		ArtifactType:  snap.ArtifactType,
		CreatedAt:     snap.CreatedAt,
		FinishedAt:    snap.UpdatedAt,
	}
	if snap.Failure != nil {
		kind := string(snap.Failure.Kind)
		msg := snap.Failure.Message
		job.FailureKind = &kind
		job.FailureMessage = &msg
	}
	return job
}

func stateRef(s registry.State) *registry.State { return &s }
func intRef(i int) *int                         { return &i }
func strRef(s string) *string                   { return &s }
