package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/spaghetti-software-inc/ninjapivot/internal/artifacts"
	"github.com/spaghetti-software-inc/ninjapivot/internal/events"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
	"github.com/spaghetti-software-inc/ninjapivot/internal/runner"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store"
	"github.com/spaghetti-software-inc/ninjapivot/internal/store/model"
	"github.com/spaghetti-software-inc/ninjapivot/pkg/metrics"
)

var allowedExtensions = []string{".csv", ".xlsx", ".xlsm"}

// ReportService is the application core behind the HTTP handlers: it owns
// job creation and exposes the single read path shared by the polling and
// streaming notifiers.
type ReportService struct {
	registry       *registry.Registry
	runner         *runner.Runner
	artifacts      artifacts.Store
	archive        store.Store
	producer       *events.EventProducer
	maxUploadBytes int64
}

func NewReportService(
	reg *registry.Registry,
	jobRunner *runner.Runner,
	artifactStore artifacts.Store,
	archive store.Store,
	producer *events.EventProducer,
	maxUploadBytes int64,
) *ReportService {
	return &ReportService{
		registry:       reg,
		runner:         jobRunner,
		artifacts:      artifactStore,
		archive:        archive,
		producer:       producer,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateReportJob validates the upload, allocates the job and dispatches
// its runner. It returns synchronously with the fresh snapshot; analysis
// happens in the background. On validation failure no job is created.
func (s *ReportService) CreateReportJob(ctx context.Context, filename string, data []byte) (registry.Snapshot, error) {
	logger := zap.S().Named("report_service")

	if len(data) == 0 {
		return registry.Snapshot{}, NewErrInvalidUpload("file is empty")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return registry.Snapshot{}, NewErrInvalidUpload(
			fmt.Sprintf("file exceeds the %d byte limit", s.maxUploadBytes))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !funk.ContainsString(allowedExtensions, ext) {
		return registry.Snapshot{}, NewErrInvalidUpload(
			fmt.Sprintf("unsupported file type %q, expected one of %s", ext, strings.Join(allowedExtensions, ", ")))
	}

	snap := s.registry.Create(filepath.Base(filename), data)

	validating := registry.StateValidating
	msg := "input accepted, queued for analysis"
	snap, err := s.registry.Update(snap.ID, registry.Mutation{State: &validating, StatusMessage: &msg})
	if err != nil {
		// freshly created record, the only writer is this call
		logger.Errorf("failed to move job %s to validating: %v", snap.ID, err)
		return registry.Snapshot{}, err
	}

	metrics.IncreaseJobsCreated()
	s.emitCreated(snap)
	s.runner.Dispatch(snap.ID)

	logger.Infof("job %s created for %q (%d bytes)", snap.ID, filename, len(data))
	return snap, nil
}

// GetJobStatus returns the current snapshot. Evicted terminal jobs are
// resolved from the archive so a status URL stays valid for as long as the
// archive retains the row.
func (s *ReportService) GetJobStatus(ctx context.Context, id uuid.UUID) (registry.Snapshot, error) {
	snap, err := s.registry.Get(id)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, registry.ErrJobNotFound) {
		return registry.Snapshot{}, err
	}

	return s.archivedSnapshot(ctx, id)
}

// WatchJob subscribes to a job's snapshots. For a live job the registry
// feeds the channel until the terminal frame; for an evicted terminal job
// the channel yields exactly the archived terminal snapshot and closes.
func (s *ReportService) WatchJob(ctx context.Context, id uuid.UUID) (<-chan registry.Snapshot, func(), error) {
	ch, cancel, err := s.registry.Watch(id)
	if err == nil {
		return ch, cancel, nil
	}
	if !errors.Is(err, registry.ErrJobNotFound) {
		return nil, nil, err
	}

	snap, aerr := s.archivedSnapshot(ctx, id)
	if aerr != nil {
		return nil, nil, aerr
	}

	terminal := make(chan registry.Snapshot, 1)
	terminal <- snap
	close(terminal)
	return terminal, func() {}, nil
}

// GetArtifact serves the finished report. Anything other than a Complete
// job yields ErrJobNotReady; unknown ids yield ErrJobNotFound.
func (s *ReportService) GetArtifact(ctx context.Context, id uuid.UUID) ([]byte, registry.Snapshot, error) {
	snap, err := s.GetJobStatus(ctx, id)
	if err != nil {
		return nil, registry.Snapshot{}, err
	}

	if snap.State != registry.StateComplete || snap.ArtifactRef == "" {
		return nil, registry.Snapshot{}, NewErrJobNotReady(id)
	}

	content, err := s.artifacts.Get(ctx, snap.ArtifactRef)
	if err != nil {
		if errors.Is(err, artifacts.ErrArtifactNotFound) {
			return nil, registry.Snapshot{}, NewErrJobNotFound(id)
		}
		return nil, registry.Snapshot{}, err
	}

	return content, snap, nil
}

// ListJobs returns recent jobs, live ones first, then archived rows not
// present in the registry anymore, newest first.
func (s *ReportService) ListJobs(ctx context.Context, limit int) ([]registry.Snapshot, error) {
	live := s.registry.Snapshots()

	seen := make(map[uuid.UUID]struct{}, len(live))
	for _, snap := range live {
		seen[snap.ID] = struct{}{}
	}

	out := live
	if s.archive != nil {
		archived, err := s.archive.Job().List(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, row := range archived {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			out = append(out, snapshotFromArchive(row))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReportService) archivedSnapshot(ctx context.Context, id uuid.UUID) (registry.Snapshot, error) {
	if s.archive == nil {
		return registry.Snapshot{}, NewErrJobNotFound(id)
	}

	row, err := s.archive.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return registry.Snapshot{}, NewErrJobNotFound(id)
		}
		return registry.Snapshot{}, err
	}
	return snapshotFromArchive(*row), nil
}

func (s *ReportService) emitCreated(snap registry.Snapshot) {
	if s.producer == nil {
		return
	}
	body, _ := json.Marshal(events.JobEvent{
		JobID:         snap.ID.String(),
		State:         string(snap.State),
		Progress:      snap.Progress,
		StatusMessage: snap.StatusMessage,
	})
	if err := s.producer.Write(context.Background(), events.JobMessageKind, bytes.NewReader(body)); err != nil {
		zap.S().Named("report_service").Errorf("failed to emit lifecycle event: %v", err)
	}
}

func snapshotFromArchive(row model.ArchivedJob) registry.Snapshot {
	snap := registry.Snapshot{
		ID:            row.ID,
		State:         registry.State(row.State),
		Progress:      row.Progress,
		StatusMessage: row.StatusMessage,
		InputName:     row.InputName,
		ArtifactRef:   row.ArtifactRef,
		ArtifactType:  row.ArtifactType,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.FinishedAt,
	}
	if row.FailureKind != nil {
		snap.Failure = &registry.Failure{Kind: registry.FailureKind(*row.FailureKind)}
		if row.FailureMessage != nil {
			snap.Failure.Message = *row.FailureMessage
		}
	}
	return snap
}
