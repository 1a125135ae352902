package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// jobRepo implements JobRepository using GORM.
type jobRepo struct {
	db     *gorm.DB
	driver string // "sqlite", "postgres", or "mysql"
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *jobRepo {
	driver := ""
	if db.Dialector != nil {
		driver = db.Dialector.Name()
	}
	return &jobRepo{db: db, driver: driver}
}

// AddRequest atomically persists a request together with its jobs and parts.
func (r *jobRepo) AddRequest(ctx context.Context, request *models.Request, jobs []*models.Job, parts []*models.Part) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		if len(jobs) > 0 {
			if err := tx.Create(&jobs).Error; err != nil {
				return fmt.Errorf("creating jobs: %w", err)
			}
		}
		if len(parts) > 0 {
			if err := tx.Create(&parts).Error; err != nil {
				return fmt.Errorf("creating parts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return nil
}

// ClaimNext selects one dispatchable job and atomically marks it taken.
//
// PostgreSQL/MySQL: a transaction takes SELECT ... FOR UPDATE SKIP LOCKED on
// the candidate row, then updates it.
// SQLite (no row-level locking): a SELECT picks the candidate, then a
// conditional UPDATE that re-checks the dispatchable predicate claims it;
// if that UPDATE affects no row, ErrClaimLost is returned.
func (r *jobRepo) ClaimNext(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error) {
	if r.driver == "sqlite" {
		return r.claimNextSQLite(ctx, now, leaseTimeout)
	}
	return r.claimNextWithRowLocking(ctx, now, leaseTimeout)
}

func dispatchableWhere(db *gorm.DB, now time.Time, leaseTimeout time.Duration) *gorm.DB {
	stale := now.Add(-leaseTimeout)
	return db.Where("active = ?", true).
		Where("done = ?", false).
		Where("taken = ? OR heartbeat < ?", false, stale)
}

// claimNextWithRowLocking uses SELECT ... FOR UPDATE SKIP LOCKED (PostgreSQL/MySQL):
// the candidate row is locked for the duration of the transaction, so the
// following UPDATE cannot race another claimer.
func (r *jobRepo) claimNextWithRowLocking(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := dispatchableWhere(tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}), now, leaseTimeout).
			Order("needed ASC, id ASC").
			Limit(1)

		if err := query.First(&job).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Job{}).Where("id = ?", job.ID).UpdateColumns(map[string]any{
			"taken":     true,
			"heartbeat": now,
		})
		if result.Error != nil {
			return fmt.Errorf("claiming job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.ErrClaimLost
		}
		job.Taken = true
		job.Heartbeat = &now
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if errors.Is(err, models.ErrClaimLost) {
			return nil, models.ErrClaimLost
		}
		return nil, fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return &job, nil
}

// claimNextSQLite has no row-level locking available, so it selects a
// candidate id, then claims it with a single atomic conditional UPDATE
// re-checking the dispatchable predicate. Two concurrent claimers racing on
// the same candidate: SQLite's writer serialization lets exactly one UPDATE
// affect a row; the loser sees RowsAffected==0 and surfaces ClaimLost, per
// §4.3 ("the caller does not retry within this call").
func (r *jobRepo) claimNextSQLite(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error) {
	var candidate models.Job
	query := dispatchableWhere(r.db.WithContext(ctx).Model(&models.Job{}), now, leaseTimeout).
		Order("needed ASC, id ASC").
		Limit(1)
	if err := query.First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: selecting candidate job: %w", models.ErrRepository, err)
	}

	stale := now.Add(-leaseTimeout)
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", candidate.ID).
		Where("active = ? AND done = ?", true, false).
		Where("taken = ? OR heartbeat < ?", false, stale).
		UpdateColumns(map[string]any{
			"taken":     true,
			"heartbeat": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: claiming job: %w", models.ErrRepository, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, models.ErrClaimLost
	}

	candidate.Taken = true
	candidate.Heartbeat = &now
	return &candidate, nil
}

// Heartbeat refreshes a claimed job's heartbeat timestamp.
func (r *jobRepo) Heartbeat(ctx context.Context, jobID uint, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND taken = ? AND done = ?", jobID, true, false).
		UpdateColumn("heartbeat", now)
	if result.Error != nil {
		return fmt.Errorf("%w: heartbeat: %w", models.ErrRepository, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d", models.ErrJobNotFound, jobID)
	}
	return nil
}

// MarkDone transitions a job to its terminal completed state.
func (r *jobRepo) MarkDone(ctx context.Context, jobID uint) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", jobID).
		UpdateColumn("done", true)
	if result.Error != nil {
		return fmt.Errorf("%w: mark done: %w", models.ErrRepository, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d", models.ErrJobNotFound, jobID)
	}
	return nil
}

// MarkFailed transitions a job to its terminal failed state.
func (r *jobRepo) MarkFailed(ctx context.Context, jobID uint, reason string) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", jobID).
		UpdateColumns(map[string]any{
			"done":       true,
			"last_error": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("%w: mark failed: %w", models.ErrRepository, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d", models.ErrJobNotFound, jobID)
	}
	return nil
}

// Pause sets active=false on jobs of a request that are neither done nor taken.
func (r *jobRepo) Pause(ctx context.Context, correlationID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("correlation_id = ? AND done = ? AND taken = ?", correlationID, false, false).
		UpdateColumn("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("%w: pause: %w", models.ErrRepository, result.Error)
	}
	return result.RowsAffected, nil
}

// RecordWorkerHeartbeat upserts a worker liveness row.
func (r *jobRepo) RecordWorkerHeartbeat(ctx context.Context, machineName string, now time.Time) error {
	heartbeat := models.WorkerHeartbeat{MachineName: machineName, LastSeen: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
	}).Create(&heartbeat).Error
	if err != nil {
		return fmt.Errorf("%w: recording worker heartbeat: %w", models.ErrRepository, err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (r *jobRepo) GetJob(ctx context.Context, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: job %d", models.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return &job, nil
}

// GetRequest retrieves a request by correlation id.
func (r *jobRepo) GetRequest(ctx context.Context, correlationID string) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrRequestNotFound, correlationID)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return &request, nil
}

// CountJobsByRequest returns the number of jobs persisted for a request.
func (r *jobRepo) CountJobsByRequest(ctx context.Context, correlationID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Where("correlation_id = ?", correlationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return count, nil
}

// CountPartsByRequest returns the number of parts persisted for a request.
func (r *jobRepo) CountPartsByRequest(ctx context.Context, correlationID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Part{}).Where("correlation_id = ?", correlationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrRepository, err)
	}
	return count, nil
}

// Ensure jobRepo implements JobRepository at compile time.
var _ JobRepository = (*jobRepo)(nil)
