package events

// JobEvent describes a lifecycle change of a report job: creation or the
// transition into a terminal state.
type JobEvent struct {
	JobID         string `json:"job_id"`
	State         string `json:"state"`
	Progress      int    `json:"progress"`
	StatusMessage string `json:"status_message"`
	FailureKind   string `json:"failure_kind,omitempty"`
}
