// Package v1alpha1 holds the wire types served by the report API.
package v1alpha1

import (
	"time"
)

// JobState is the externally visible lifecycle state of a report job.
type JobState string

const (
	JobStateCreated    JobState = "created"
	JobStateValidating JobState = "validating"
	JobStateProcessing JobState = "processing"
	JobStateComplete   JobState = "complete"
	JobStateFailed     JobState = "failed"
)

// JobError carries the structured failure detail of a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatus is the snapshot shape shared by the polling endpoint and both
// streaming transports. Terminal snapshots are stable: polling a finished
// job any number of times yields the identical body.
type JobStatus struct {
	Id            string    `json:"id"`
	State         JobState  `json:"state"`
	Progress      int       `json:"progress"`
	StatusMessage string    `json:"statusMessage"`
	IsTerminal    bool      `json:"isTerminal"`
	IsComplete    bool      `json:"isComplete"`
	Error         *JobError `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SubmitResult is returned synchronously by the upload endpoint.
type SubmitResult struct {
	Id    string   `json:"id"`
	State JobState `json:"state"`
}

// JobList is the body of the recent-jobs listing.
type JobList struct {
	Jobs []JobStatus `json:"jobs"`
}

// Error is the JSON error body for every non-2xx response.
type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"request_id,omitempty"`
}
