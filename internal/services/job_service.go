package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
)

// JobService accepts uploads and answers questions about their jobs.
type JobService interface {
	Submit(ctx context.Context, userID string, file *multipart.FileHeader, prefs models.Preferences) (*models.SubmitResumeResponse, error)
	GetStatus(ctx context.Context, jobID string) (*models.JobStatusResponse, error)
	PortfolioForJob(ctx context.Context, jobID string) (*models.Portfolio, error)
}

type jobService struct {
	jobRepo       repositories.JobRepository
	portfolioRepo repositories.PortfolioRepository
	storage       StorageService
	worker        Worker
	log           *slog.Logger
}

func NewJobService(
	jobRepo repositories.JobRepository,
	portfolioRepo repositories.PortfolioRepository,
	storage StorageService,
	worker Worker,
	log *slog.Logger,
) JobService {
	return &jobService{
		jobRepo:       jobRepo,
		portfolioRepo: portfolioRepo,
		storage:       storage,
		worker:        worker,
		log:           log,
	}
}

// Submit stores the file, creates a PENDING job and hands it to the worker.
func (s *jobService) Submit(ctx context.Context, userID string, file *multipart.FileHeader, prefs models.Preferences) (*models.SubmitResumeResponse, error) {
	if file == nil {
		return nil, apperrors.FileValidation("No file uploaded", "", "", 0)
	}

	stored, err := s.storage.SaveFile(ctx, file)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           models.JobStatusPending,
		CurrentStage:     models.StageQueued,
		FileKey:          stored.Key,
		OriginalFileName: stored.OriginalName,
		MimeType:         stored.MimeType,
		Preferences:      datatypes.NewJSONType(prefs),
	}
	if err := s.jobRepo.Create(job); err != nil {
		if delErr := s.storage.DeleteFile(ctx, stored.Key); delErr != nil {
			s.log.Warn("⚠️ Failed to clean up upload", "key", stored.Key, "error", delErr)
		}
		return nil, err
	}

	s.worker.EnqueueJob(job.ID)
	s.log.Info("📄 Resume submitted", "job_id", job.ID, "file", stored.OriginalName, "size", stored.Size)

	return &models.SubmitResumeResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	}, nil
}

func (s *jobService) GetStatus(_ context.Context, jobID string) (*models.JobStatusResponse, error) {
	job, err := s.findJob(jobID)
	if err != nil {
		return nil, err
	}

	resp := &models.JobStatusResponse{
		JobID:              job.ID.String(),
		Status:             string(job.Status),
		ProgressPercentage: job.ProgressPercentage,
		CurrentStage:       job.CurrentStage,
		ErrorMessage:       job.ErrorMessage,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
	if len(job.ErrorDetails) > 0 {
		resp.ErrorDetails = map[string]any(job.ErrorDetails)
	}
	if job.PortfolioID != nil {
		id := job.PortfolioID.String()
		resp.PortfolioID = &id
	}
	return resp, nil
}

// PortfolioForJob returns the portfolio a job produced. A job that is still
// running yields a JobInProgress error, a failed job a PipelineFailed error
// and a completed job without a portfolio an Integrity error.
func (s *jobService) PortfolioForJob(_ context.Context, jobID string) (*models.Portfolio, error) {
	id, err := parseJobID(jobID)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.portfolioRepo.FindByJobID(id)
	if err == nil {
		return portfolio, nil
	}
	if !errors.Is(err, repositories.ErrPortfolioNotFound) {
		return nil, err
	}

	job, err := s.findJob(jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusFailed:
		message := "Portfolio generation failed"
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			message = *job.ErrorMessage
		}
		details := map[string]any{
			"job_id": job.ID.String(),
			"stage":  job.CurrentStage,
		}
		if len(job.ErrorDetails) > 0 {
			details["details"] = map[string]any(job.ErrorDetails)
		}
		return nil, apperrors.PipelineFailed(message, details)

	case models.JobStatusCompleted:
		s.log.Error("❌ Completed job has no portfolio", "job_id", job.ID)
		return nil, apperrors.Integrity(
			"Job is marked as completed but its portfolio is missing",
			map[string]any{"job_id": job.ID.String()})

	default:
		return nil, apperrors.JobInProgress(
			fmt.Sprintf("Portfolio is still being generated (%d%%)", job.ProgressPercentage),
			map[string]any{
				"job_id":              job.ID.String(),
				"status":              string(job.Status),
				"progress_percentage": job.ProgressPercentage,
				"current_stage":       job.CurrentStage,
				"suggestion":          "Poll GET /api/v1/jobs/" + job.ID.String() + " or subscribe to its websocket for progress",
			})
	}
}

func (s *jobService) findJob(jobID string) (*models.Job, error) {
	id, err := parseJobID(jobID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, apperrors.NotFound("Job", jobID)
		}
		return nil, err
	}
	return job, nil
}

func parseJobID(jobID string) (uuid.UUID, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return uuid.Nil, apperrors.ValidationField("job_id", "job_id must be a valid UUID")
	}
	return id, nil
}
