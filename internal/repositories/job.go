package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MLSAKIIT/Showcase/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

type JobRepository interface {
	Create(job *models.Job) error
	FindByID(id uuid.UUID) (*models.Job, error)
	Claim(id uuid.UUID) (*models.Job, error)
	Advance(id uuid.UUID, status models.JobStatus, stage string, progress int) (*models.Job, error)
	Fail(id uuid.UUID, stage, message string, details map[string]any) (*models.Job, error)
	Complete(id uuid.UUID, portfolio *models.Portfolio) (*models.Job, error)
	FindPendingJobs(limit int) ([]models.Job, error)
	FailStale(updatedBefore time.Time, message string, details map[string]any) (int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.Job) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
		job.CurrentStage = models.StageQueued
	}
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) FindByID(id uuid.UUID) (*models.Job, error) {
	return findJob(r.db, id)
}

func findJob(db *gorm.DB, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// Claim moves a PENDING job to PROCESSING. Only one caller can win the
// claim; the others get ErrInvalidTransition.
func (r *jobRepository) Claim(id uuid.UUID) (*models.Job, error) {
	job, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}

	if err := job.Claim(); err != nil {
		return nil, err
	}

	if err := conditionalUpdate(r.db, id, models.JobStatusPending, map[string]interface{}{
		"status":              job.Status,
		"current_stage":       job.CurrentStage,
		"progress_percentage": job.ProgressPercentage,
		"updated_at":          time.Now(),
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// Advance applies a status transition. The update is conditional on the
// status the transition was computed from, so a job that became terminal in
// the meantime is left untouched and ErrInvalidTransition is returned.
func (r *jobRepository) Advance(id uuid.UUID, status models.JobStatus, stage string, progress int) (*models.Job, error) {
	job, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if err := job.Advance(status, stage, progress); err != nil {
		return nil, err
	}

	if err := conditionalUpdate(r.db, id, from, map[string]interface{}{
		"status":              job.Status,
		"current_stage":       job.CurrentStage,
		"progress_percentage": job.ProgressPercentage,
		"updated_at":          time.Now(),
	}); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) Fail(id uuid.UUID, stage, message string, details map[string]any) (*models.Job, error) {
	job, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if err := job.Fail(stage, message, details); err != nil {
		return nil, err
	}

	if err := conditionalUpdate(r.db, id, from, map[string]interface{}{
		"status":        job.Status,
		"current_stage": job.CurrentStage,
		"error_message": message,
		"error_details": datatypes.JSONMap(details),
		"updated_at":    time.Now(),
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete stores the portfolio and closes the job in one transaction.
func (r *jobRepository) Complete(id uuid.UUID, portfolio *models.Portfolio) (*models.Job, error) {
	var completed *models.Job

	err := r.db.Transaction(func(tx *gorm.DB) error {
		job, err := findJob(tx, id)
		if err != nil {
			return err
		}

		if !job.Status.CanTransition(models.JobStatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, job.Status, models.JobStatusCompleted)
		}

		portfolio.JobID = job.ID
		portfolio.UserID = job.UserID
		if err := tx.Create(portfolio).Error; err != nil {
			return fmt.Errorf("failed to create portfolio: %w", err)
		}

		from := job.Status
		now := time.Now()
		if err := job.Complete(portfolio.ID, now); err != nil {
			return err
		}

		if err := conditionalUpdate(tx, id, from, map[string]interface{}{
			"status":              job.Status,
			"current_stage":       job.CurrentStage,
			"progress_percentage": job.ProgressPercentage,
			"portfolio_id":        portfolio.ID,
			"completed_at":        now,
			"updated_at":          now,
		}); err != nil {
			return err
		}

		completed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (r *jobRepository) FindPendingJobs(limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.
		Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to find pending jobs: %w", err)
	}

	return jobs, nil
}

// FailStale fails in-flight jobs that have not moved since updatedBefore,
// such as jobs left behind by a process that died mid-run.
func (r *jobRepository) FailStale(updatedBefore time.Time, message string, details map[string]any) (int64, error) {
	result := r.db.Model(&models.Job{}).
		Where("status IN ? AND updated_at < ?", models.InFlightStatuses, updatedBefore).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": message,
			"error_details": datatypes.JSONMap(details),
			"updated_at":    time.Now(),
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func conditionalUpdate(db *gorm.DB, id uuid.UUID, expected models.JobStatus, updates map[string]interface{}) error {
	result := db.Model(&models.Job{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update job: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is no longer %s", models.ErrInvalidTransition, id, expected)
	}

	return nil
}
