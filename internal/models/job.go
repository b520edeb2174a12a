package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending       JobStatus = "PENDING"
	JobStatusProcessing    JobStatus = "PROCESSING"
	JobStatusOCRExtracting JobStatus = "OCR_EXTRACTING"
	JobStatusAIGenerating  JobStatus = "AI_GENERATING"
	JobStatusValidating    JobStatus = "VALIDATING"
	JobStatusCompleted     JobStatus = "COMPLETED"
	JobStatusFailed        JobStatus = "FAILED"
)

// Stage labels shown to clients as current_stage.
const (
	StageQueued            = "queued"
	StageStarting          = "starting"
	StageOCRExtraction     = "ocr_extraction"
	StageStructuring       = "structuring"
	StageProfileValidation = "profile_validation"
	StageContentGeneration = "content_generation"
	StageTemplateSelection = "template_selection"
	StageValidation        = "validation"
	StageCompleted         = "completed"
)

var ErrInvalidTransition = errors.New("invalid job status transition")

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:       {JobStatusProcessing},
	JobStatusProcessing:    {JobStatusOCRExtracting},
	JobStatusOCRExtracting: {JobStatusAIGenerating},
	JobStatusAIGenerating:  {JobStatusValidating},
	JobStatusValidating:    {JobStatusCompleted},
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusOCRExtracting,
		JobStatusAIGenerating, JobStatusValidating, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next. Only
// AI_GENERATING may be re-entered, so its stage label can advance; every
// other status is entered once. FAILED is reachable from every non-terminal
// status.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed || (next == s && s == JobStatusAIGenerating) {
		return true
	}
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlightStatuses are the statuses a worker holds a job in.
var InFlightStatuses = []JobStatus{
	JobStatusProcessing,
	JobStatusOCRExtracting,
	JobStatusAIGenerating,
	JobStatusValidating,
}

type Job struct {
	ID                 uuid.UUID                       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"job_id"`
	UserID             string                          `gorm:"type:text;not null;index" json:"user_id"`
	Status             JobStatus                       `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	ProgressPercentage int                             `gorm:"not null;default:0" json:"progress_percentage"`
	CurrentStage       string                          `gorm:"type:text" json:"current_stage"`
	ErrorMessage       *string                         `gorm:"type:text" json:"error_message,omitempty"`
	ErrorDetails       datatypes.JSONMap               `gorm:"type:jsonb" json:"error_details,omitempty"`
	FileKey            string                          `gorm:"type:text;not null" json:"-"`
	OriginalFileName   string                          `gorm:"type:text" json:"original_filename"`
	MimeType           string                          `gorm:"type:text" json:"mime_type"`
	Preferences        datatypes.JSONType[Preferences] `gorm:"type:jsonb" json:"preferences"`
	PortfolioID        *uuid.UUID                      `gorm:"type:uuid" json:"portfolio_id,omitempty"`
	CompletedAt        *time.Time                      `json:"completed_at,omitempty"`
	CreatedAt          time.Time                       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time                       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// Advance moves the job to status and stage. Progress never decreases.
func (j *Job) Advance(status JobStatus, stage string, progress int) error {
	if !j.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	if stage != "" {
		j.CurrentStage = stage
	}
	j.ProgressPercentage = clampProgress(max(j.ProgressPercentage, progress))
	return nil
}

// Fail records a failure. The stage that failed becomes current_stage and
// progress is left where it was.
func (j *Job) Fail(stage, message string, details map[string]any) error {
	if !j.Status.CanTransition(JobStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	if stage != "" {
		j.CurrentStage = stage
	}
	j.ErrorMessage = &message
	j.ErrorDetails = datatypes.JSONMap(details)
	return nil
}

// Claim takes a PENDING job for processing. A job in any other status has
// already been claimed or finished.
func (j *Job) Claim() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusProcessing)
	}
	return j.Advance(JobStatusProcessing, StageStarting, 5)
}

// Complete links the portfolio and closes the job.
func (j *Job) Complete(portfolioID uuid.UUID, at time.Time) error {
	if err := j.Advance(JobStatusCompleted, StageCompleted, 100); err != nil {
		return err
	}
	j.PortfolioID = &portfolioID
	j.CompletedAt = &at
	return nil
}

func clampProgress(p int) int {
	return min(100, max(0, p))
}
