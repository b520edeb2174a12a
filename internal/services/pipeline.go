package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/events"
	"github.com/MLSAKIIT/Showcase/internal/metrics"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
)

// InterruptedMessage is recorded on jobs cut short by a shutdown or left
// behind by a process that died.
const InterruptedMessage = "Processing was interrupted before it finished. Please upload the resume again."

// PipelineRunner turns one uploaded resume into a portfolio.
type PipelineRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// ParsingStages groups the typed stages of the parsing pipeline.
type ParsingStages struct {
	Extraction  Stage[Document, RawText]
	Structuring Stage[RawText, models.ResumeProfile]
	Validation  Stage[models.ResumeProfile, models.ValidatedProfile]
}

type pipelineRunner struct {
	jobRepo   repositories.JobRepository
	storage   StorageService
	parsing   ParsingStages
	generator GeneratorService
	validator *ContentValidator
	bus       events.Bus
	log       *slog.Logger
}

func NewPipelineRunner(
	jobRepo repositories.JobRepository,
	storage StorageService,
	parsing ParsingStages,
	generator GeneratorService,
	validator *ContentValidator,
	bus events.Bus,
	log *slog.Logger,
) PipelineRunner {
	return &pipelineRunner{
		jobRepo:   jobRepo,
		storage:   storage,
		parsing:   parsing,
		generator: generator,
		validator: validator,
		bus:       bus,
		log:       log,
	}
}

// Run drives a PENDING job to COMPLETED or FAILED. A job another worker
// already claimed is skipped. Failures are recorded on the job and returned;
// nothing is retried.
func (p *pipelineRunner) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.jobRepo.Claim(jobID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			p.log.Debug("job already claimed", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("failed to start job: %w", err)
	}

	log := p.log.With("job_id", jobID)
	log.Info("🔄 Starting portfolio pipeline")
	metrics.JobStarted()
	p.publish(job)

	portfolio, err := p.execute(ctx, job, log)
	if err != nil {
		metrics.JobFinished(string(models.JobStatusFailed))
		return p.fail(jobID, err, log)
	}

	completed, err := p.jobRepo.Complete(jobID, portfolio)
	if err != nil {
		metrics.JobFinished(string(models.JobStatusFailed))
		return p.fail(jobID, fmt.Errorf("failed to store portfolio: %w", err), log)
	}
	metrics.JobFinished(string(models.JobStatusCompleted))
	p.publish(completed)

	if err := p.storage.DeleteFile(context.WithoutCancel(ctx), job.FileKey); err != nil {
		log.Warn("⚠️ Failed to delete uploaded resume", "error", err)
	}

	log.Info("✅ Portfolio pipeline completed", "portfolio_id", portfolio.ID)
	return nil
}

func (p *pipelineRunner) execute(ctx context.Context, job *models.Job, log *slog.Logger) (*models.Portfolio, error) {
	if err := p.advance(job.ID, models.JobStatusOCRExtracting, models.StageOCRExtraction, 20); err != nil {
		return nil, err
	}

	data, err := p.storage.Load(ctx, job.FileKey)
	if err != nil {
		return nil, apperrors.OCR(models.StageOCRExtraction, "Uploaded resume could not be read", err)
	}

	log.Info("📄 Extracting resume text")
	raw, err := RunStage(ctx, p.parsing.Extraction, Document{
		Data:     data,
		MimeType: job.MimeType,
		Filename: job.OriginalFileName,
	})
	if err != nil {
		return nil, err
	}

	if err := p.advance(job.ID, models.JobStatusAIGenerating, models.StageStructuring, 40); err != nil {
		return nil, err
	}
	log.Info("🧩 Structuring resume", "source", raw.Source, "chars", len(raw.Text))
	profile, err := RunStage(ctx, p.parsing.Structuring, raw)
	if err != nil {
		return nil, err
	}

	if err := p.advance(job.ID, models.JobStatusAIGenerating, models.StageProfileValidation, 50); err != nil {
		return nil, err
	}
	validated, err := RunStage(ctx, p.parsing.Validation, profile)
	if err != nil {
		return nil, err
	}
	if err := ValidateInput(validated.ResumeProfile); err != nil {
		e, _ := apperrors.As(err)
		e.Stage = models.StageProfileValidation
		e.Details["stage"] = models.StageProfileValidation
		return nil, e
	}

	if err := p.advance(job.ID, models.JobStatusAIGenerating, models.StageContentGeneration, 60); err != nil {
		return nil, err
	}
	log.Info("🤖 Generating portfolio content")
	started := time.Now()
	result, err := p.generator.Generate(ctx, validated, job.Preferences.Data())
	metrics.ObserveStage(models.StageContentGeneration, started, err)
	if err != nil {
		return nil, err
	}

	if err := p.advance(job.ID, models.JobStatusAIGenerating, models.StageTemplateSelection, 80); err != nil {
		return nil, err
	}
	log.Info("🎨 Template selected", "template", result.TemplateID)

	if err := p.advance(job.ID, models.JobStatusValidating, models.StageValidation, 90); err != nil {
		return nil, err
	}
	if err := p.validator.Validate(models.StageValidation, &result.Content); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		ID:         uuid.New(),
		TemplateID: result.TemplateID,
	}
	portfolio.SetContent(result.Content)
	portfolio.SetProfile(validated.ResumeProfile)
	return portfolio, nil
}

func (p *pipelineRunner) advance(id uuid.UUID, status models.JobStatus, stage string, progress int) error {
	job, err := p.jobRepo.Advance(id, status, stage, progress)
	if err != nil {
		return fmt.Errorf("failed to advance job to %s: %w", stage, err)
	}
	p.publish(job)
	return nil
}

// fail records err on the job and returns it.
func (p *pipelineRunner) fail(id uuid.UUID, err error, log *slog.Logger) error {
	stage := ""
	message := apperrors.ScrubbedMessage
	details := map[string]any{}

	if errors.Is(err, context.Canceled) {
		message = InterruptedMessage
		details["error_type"] = string(apperrors.KindInternal)
	} else if e, ok := apperrors.As(err); ok {
		stage = e.Stage
		message = e.Message
		for k, v := range e.Details {
			details[k] = v
		}
		details["error_type"] = string(e.Kind)
	} else {
		details["error_type"] = string(apperrors.KindInternal)
	}
	if stage == "" {
		if job, findErr := p.jobRepo.FindByID(id); findErr == nil {
			stage = job.CurrentStage
		}
	}
	details["stage"] = stage

	log.Error("❌ Portfolio pipeline failed", "stage", stage, "error", err)

	job, failErr := p.jobRepo.Fail(id, stage, message, details)
	if failErr != nil {
		log.Error("failed to record job failure", "error", failErr)
		return errors.Join(err, failErr)
	}
	p.publish(job)
	return err
}

func (p *pipelineRunner) publish(job *models.Job) {
	if p.bus == nil || job == nil {
		return
	}
	if err := p.bus.Publish(context.Background(), EventFromJob(job)); err != nil {
		p.log.Warn("failed to publish job event", "job_id", job.ID, "error", err)
	}
}

// EventFromJob snapshots a job for subscribers.
func EventFromJob(job *models.Job) events.JobEvent {
	event := events.JobEvent{
		JobID:              job.ID.String(),
		Status:             string(job.Status),
		ProgressPercentage: job.ProgressPercentage,
		CurrentStage:       job.CurrentStage,
		ErrorMessage:       job.ErrorMessage,
		Timestamp:          time.Now().UTC(),
	}
	if job.PortfolioID != nil {
		id := job.PortfolioID.String()
		event.PortfolioID = &id
	}
	return event
}
