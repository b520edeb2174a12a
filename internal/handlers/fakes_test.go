package handlers

import (
	"context"
	"mime/multipart"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type stubJobs struct {
	userID    string
	filename  string
	prefs     models.Preferences
	status    func(jobID string) (*models.JobStatusResponse, error)
	portfolio func(jobID string) (*models.Portfolio, error)
}

func (s *stubJobs) Submit(_ context.Context, userID string, file *multipart.FileHeader, prefs models.Preferences) (*models.SubmitResumeResponse, error) {
	if file == nil {
		return nil, apperrors.FileValidation("No file uploaded", "", "", 0)
	}
	s.userID, s.filename, s.prefs = userID, file.Filename, prefs
	return &models.SubmitResumeResponse{JobID: "job-1", Status: string(models.JobStatusPending)}, nil
}

func (s *stubJobs) GetStatus(_ context.Context, jobID string) (*models.JobStatusResponse, error) {
	if s.status == nil {
		return nil, apperrors.NotFound("Job", jobID)
	}
	return s.status(jobID)
}

func (s *stubJobs) PortfolioForJob(_ context.Context, jobID string) (*models.Portfolio, error) {
	if s.portfolio == nil {
		return nil, apperrors.NotFound("Job", jobID)
	}
	return s.portfolio(jobID)
}

type stubPortfolios struct {
	userID string
	jobID  string
	export *services.Export
	err    error
}

func (s *stubPortfolios) ListMine(_ context.Context, userID string) ([]models.Portfolio, error) {
	s.userID = userID
	return []models.Portfolio{}, s.err
}

func (s *stubPortfolios) GetPublic(_ context.Context, slug string) (*models.Portfolio, error) {
	return nil, apperrors.NotFound("Portfolio", slug)
}

func (s *stubPortfolios) Search(context.Context, string, int) ([]services.PortfolioHit, error) {
	return nil, s.err
}

func (s *stubPortfolios) Publish(_ context.Context, userID, jobID string, _ models.PublishRequest) (*models.Portfolio, error) {
	s.userID, s.jobID = userID, jobID
	return &models.Portfolio{}, s.err
}

func (s *stubPortfolios) UpdateContent(_ context.Context, userID, jobID string, _ models.PortfolioContent) (*models.Portfolio, error) {
	s.userID, s.jobID = userID, jobID
	return &models.Portfolio{}, s.err
}

func (s *stubPortfolios) Regenerate(_ context.Context, userID, jobID string, _ models.RegenerateRequest) (*models.Portfolio, error) {
	s.userID, s.jobID = userID, jobID
	return &models.Portfolio{}, s.err
}

func (s *stubPortfolios) Export(_ context.Context, jobID, format string) (*services.Export, error) {
	if _, err := services.CheckExportFormat(format); err != nil {
		return nil, err
	}
	s.jobID = jobID
	return s.export, s.err
}

type stubCustomizer struct {
	services.CustomizerService
	userID string
	req    models.ChatRequest
}

func (s *stubCustomizer) Customize(_ context.Context, userID string, req models.CustomizationRequest) (*services.CustomizationResult, error) {
	s.userID = userID
	return &services.CustomizationResult{JobID: req.JobID, Changes: []services.EditReport{}}, nil
}

func (s *stubCustomizer) Chat(_ context.Context, userID string, req models.ChatRequest) (*services.CustomizationResult, error) {
	s.userID, s.req = userID, req
	return &services.CustomizationResult{Reply: "Sure.", Changes: []services.EditReport{}}, nil
}

type stubDeploy struct{}

func (stubDeploy) HandleCallback(_ context.Context, req models.DeployCallbackRequest) (*models.DeployResponse, error) {
	if req.Code == "" {
		return nil, apperrors.ValidationField("code", "code is required")
	}
	token := "gho_test"
	return &models.DeployResponse{Success: true, GitHubToken: &token, Message: "GitHub authorization successful"}, nil
}
