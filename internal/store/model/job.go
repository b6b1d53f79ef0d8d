package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArchivedJob is the durable row written once a job reaches a terminal
// state. It keeps status and artifact lookups working after the in-memory
// registry record has been evicted.
type ArchivedJob struct {
	ID             uuid.UUID `gorm:"primaryKey"`
	State          string    `gorm:"not null;index"`
	Progress       int       `gorm:"not null"`
	StatusMessage  string
	InputName      string
	FailureKind    *string
	FailureMessage *string
	ArtifactRef    string
	ArtifactType   string
	CreatedAt      time.Time
	FinishedAt     time.Time `gorm:"index"`
}

type ArchivedJobList []ArchivedJob

func (j ArchivedJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
