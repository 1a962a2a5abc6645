package repository

import (
	"context"
	"time"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
)

type SyncJobRepository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	FindByID(ctx context.Context, jobID string) (*model.SyncJob, error)
	// ListDue returns pending jobs whose next_run_at has passed and running jobs
	// claimed before staleBefore.
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]model.SyncJob, error)
	// Claim marks a due job as running and bumps its attempt count. It reports
	// false when another worker got there first or the job is not due.
	Claim(ctx context.Context, jobID string, now, staleBefore time.Time) (bool, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkRetry(ctx context.Context, jobID string, nextRunAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, jobID string, lastErr string) error
}

type syncJobRepoImpl struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) SyncJobRepository {
	return &syncJobRepoImpl{db: db}
}

func (r *syncJobRepoImpl) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *syncJobRepoImpl) FindByID(ctx context.Context, jobID string) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).
		Where("id = ?", jobID).
		First(&job).Error

	if err != nil {
		return nil, translate(err)
	}

	return &job, nil
}

func (r *syncJobRepoImpl) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]model.SyncJob, error) {
	var jobs []model.SyncJob
	err := r.db.WithContext(ctx).
		Where(dueCondition, model.SyncJobPending, now.UTC(), model.SyncJobRunning, staleBefore.UTC()).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, err
	}

	return jobs, nil
}

const dueCondition = "((status = ? AND next_run_at <= ?) OR (status = ? AND claimed_at < ?))"

func (r *syncJobRepoImpl) Claim(ctx context.Context, jobID string, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.SyncJob{}).
		Where("id = ?", jobID).
		Where(dueCondition, model.SyncJobPending, now.UTC(), model.SyncJobRunning, staleBefore.UTC()).
		Updates(map[string]interface{}{
			"status":     model.SyncJobRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": now.UTC(),
			"updated_at": now.UTC(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *syncJobRepoImpl) MarkDone(ctx context.Context, jobID string) error {
	return r.finish(ctx, jobID, map[string]interface{}{
		"status":     model.SyncJobDone,
		"last_error": "",
	})
}

func (r *syncJobRepoImpl) MarkRetry(ctx context.Context, jobID string, nextRunAt time.Time, lastErr string) error {
	return r.finish(ctx, jobID, map[string]interface{}{
		"status":      model.SyncJobPending,
		"next_run_at": nextRunAt.UTC(),
		"last_error":  lastErr,
	})
}

func (r *syncJobRepoImpl) MarkFailed(ctx context.Context, jobID string, lastErr string) error {
	return r.finish(ctx, jobID, map[string]interface{}{
		"status":     model.SyncJobFailed,
		"last_error": lastErr,
	})
}

func (r *syncJobRepoImpl) finish(ctx context.Context, jobID string, updates map[string]interface{}) error {
	updates["claimed_at"] = nil
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&model.SyncJob{}).
		Where("id = ?", jobID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
