package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spaghetti-software-inc/ninjapivot/internal/store/model"
)

type Job interface {
	Archive(ctx context.Context, job model.ArchivedJob) (*model.ArchivedJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ArchivedJob, error)
	List(ctx context.Context, limit int) (model.ArchivedJobList, error)
}

type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

// Archive persists a terminal job row. Archiving the same id twice is a
// no-op on conflict: terminal snapshots are immutable so the first write
// wins and repeated writes carry identical data.
func (s *JobStore) Archive(ctx context.Context, job model.ArchivedJob) (*model.ArchivedJob, error) {
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &job, nil
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.ArchivedJob, error) {
	job := model.ArchivedJob{ID: id}
	if err := s.db.WithContext(ctx).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, limit int) (model.ArchivedJobList, error) {
	var jobs model.ArchivedJobList
	tx := s.db.WithContext(ctx).Order("finished_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
