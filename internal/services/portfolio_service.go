package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// PortfolioService covers everything a user does with a finished portfolio.
type PortfolioService interface {
	ListMine(ctx context.Context, userID string) ([]models.Portfolio, error)
	GetPublic(ctx context.Context, slug string) (*models.Portfolio, error)
	Search(ctx context.Context, query string, limit int) ([]PortfolioHit, error)
	Publish(ctx context.Context, userID, jobID string, req models.PublishRequest) (*models.Portfolio, error)
	UpdateContent(ctx context.Context, userID, jobID string, content models.PortfolioContent) (*models.Portfolio, error)
	Regenerate(ctx context.Context, userID, jobID string, req models.RegenerateRequest) (*models.Portfolio, error)
	Export(ctx context.Context, jobID, format string) (*Export, error)
}

type portfolioService struct {
	jobs       JobService
	portfolios repositories.PortfolioRepository
	generator  GeneratorService
	validator  *ContentValidator
	index      PortfolioIndex
	log        *slog.Logger
}

func NewPortfolioService(
	jobs JobService,
	portfolios repositories.PortfolioRepository,
	generator GeneratorService,
	validator *ContentValidator,
	index PortfolioIndex,
	log *slog.Logger,
) PortfolioService {
	return &portfolioService{
		jobs:       jobs,
		portfolios: portfolios,
		generator:  generator,
		validator:  validator,
		index:      index,
		log:        log,
	}
}

func (s *portfolioService) ListMine(_ context.Context, userID string) ([]models.Portfolio, error) {
	return s.portfolios.FindByUserID(userID)
}

func (s *portfolioService) GetPublic(_ context.Context, slug string) (*models.Portfolio, error) {
	portfolio, err := s.portfolios.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, repositories.ErrPortfolioNotFound) {
			return nil, apperrors.NotFound("Portfolio", slug)
		}
		return nil, err
	}
	return portfolio, nil
}

func (s *portfolioService) Search(ctx context.Context, query string, limit int) ([]PortfolioHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.ValidationField("q", "q is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.index.Search(ctx, query, limit)
}

// Publish toggles public visibility. Publishing requires a unique slug and
// makes the portfolio searchable; unpublishing removes it from the index.
func (s *portfolioService) Publish(ctx context.Context, userID, jobID string, req models.PublishRequest) (*models.Portfolio, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	portfolio, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if req.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*req.Slug))
		if !slugPattern.MatchString(slug) {
			return nil, apperrors.ValidationField("slug", "Slug may only contain lowercase letters, digits and single hyphens")
		}
		taken, err := s.portfolios.SlugExists(slug, portfolio.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ValidationField("slug", "Slug is already taken")
		}
		portfolio.Slug = &slug
	}

	publish := *req.IsPublished
	if publish && portfolio.Slug == nil {
		return nil, apperrors.ValidationField("slug", "A slug is required to publish a portfolio")
	}
	portfolio.IsPublished = publish

	if err := s.portfolios.Update(portfolio); err != nil {
		return nil, err
	}

	if publish {
		err = s.index.Index(ctx, portfolio)
	} else {
		err = s.index.Remove(ctx, portfolio.ID)
	}
	if err != nil {
		s.log.Warn("⚠️ Failed to update search index", "portfolio_id", portfolio.ID, "error", err)
	}

	s.log.Info("🌐 Portfolio visibility changed", "portfolio_id", portfolio.ID, "published", publish)
	return portfolio, nil
}

// UpdateContent replaces the content with a user edit after schema checks.
func (s *portfolioService) UpdateContent(ctx context.Context, userID, jobID string, content models.PortfolioContent) (*models.Portfolio, error) {
	portfolio, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	content.Normalize()
	if err := s.validator.Validate("user_edit", &content); err != nil {
		e, ok := apperrors.As(err)
		if !ok {
			return nil, err
		}
		return nil, &apperrors.Error{
			Kind:    apperrors.KindValidation,
			Field:   "content",
			Message: "Content does not match the portfolio schema",
			Details: e.Details,
		}
	}

	return s.save(ctx, portfolio, content)
}

func (s *portfolioService) Regenerate(ctx context.Context, userID, jobID string, req models.RegenerateRequest) (*models.Portfolio, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	portfolio, err := s.owned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	updated, err := s.generator.RegenerateSection(ctx, portfolio.Data(), req.Section, req.Preferences)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, portfolio, *updated)
}

// Export checks the format before looking the portfolio up.
func (s *portfolioService) Export(ctx context.Context, jobID, format string) (*Export, error) {
	format, err := CheckExportFormat(format)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.jobs.PortfolioForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return ExportPortfolio(portfolio.Data(), format)
}

func (s *portfolioService) save(ctx context.Context, portfolio *models.Portfolio, content models.PortfolioContent) (*models.Portfolio, error) {
	portfolio.SetContent(content)
	if err := s.portfolios.Update(portfolio); err != nil {
		return nil, err
	}
	if portfolio.IsPublished {
		if err := s.index.Index(ctx, portfolio); err != nil {
			s.log.Warn("⚠️ Failed to reindex portfolio", "portfolio_id", portfolio.ID, "error", err)
		}
	}
	return portfolio, nil
}

func (s *portfolioService) owned(ctx context.Context, userID, jobID string) (*models.Portfolio, error) {
	portfolio, err := s.jobs.PortfolioForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if portfolio.UserID != userID {
		return nil, apperrors.Authorization("You do not have access to this portfolio")
	}
	return portfolio, nil
}
