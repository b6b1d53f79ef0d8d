package mappers

import (
	api "github.com/spaghetti-software-inc/ninjapivot/internal/api/v1alpha1"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
)

// SnapshotToApi maps a registry snapshot to the wire shape shared by the
// polling endpoint and both streaming transports.
func SnapshotToApi(snap registry.Snapshot) api.JobStatus {
	status := api.JobStatus{
		Id:            snap.ID.String(),
		State:         api.JobState(snap.State),
		Progress:      snap.Progress,
		StatusMessage: snap.StatusMessage,
		IsTerminal:    snap.State.Terminal(),
		IsComplete:    snap.State == registry.StateComplete,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}
	if snap.Failure != nil {
		status.Error = &api.JobError{
			Kind:    string(snap.Failure.Kind),
			Message: snap.Failure.Message,
		}
	}
	return status
}

// SnapshotToSubmitResult maps the fresh snapshot to the upload response:
// just the id to poll or stream with, and the state it started in.
func SnapshotToSubmitResult(snap registry.Snapshot) api.SubmitResult {
	return api.SubmitResult{
		Id:    snap.ID.String(),
		State: api.JobState(snap.State),
	}
}

// SnapshotsToApi maps a list of snapshots preserving order.
func SnapshotsToApi(snaps []registry.Snapshot) api.JobList {
	list := api.JobList{Jobs: make([]api.JobStatus, 0, len(snaps))}
	for _, snap := range snaps {
		list.Jobs = append(list.Jobs, SnapshotToApi(snap))
	}
	return list
}
