package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MLSAKIIT/Showcase/internal/models"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

type PortfolioRepository interface {
	FindByID(id uuid.UUID) (*models.Portfolio, error)
	FindByJobID(jobID uuid.UUID) (*models.Portfolio, error)
	FindBySlug(slug string) (*models.Portfolio, error)
	FindByUserID(userID string) ([]models.Portfolio, error)
	ListPublished(limit int) ([]models.Portfolio, error)
	Update(portfolio *models.Portfolio) error
	SlugExists(slug string, exceptID uuid.UUID) (bool, error)
}

type portfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) first(query string, args ...interface{}) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := r.db.Where(query, args...).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to find portfolio: %w", err)
	}
	return &portfolio, nil
}

func (r *portfolioRepository) FindByID(id uuid.UUID) (*models.Portfolio, error) {
	return r.first("id = ?", id)
}

func (r *portfolioRepository) FindByJobID(jobID uuid.UUID) (*models.Portfolio, error) {
	return r.first("job_id = ?", jobID)
}

// FindBySlug only returns published portfolios.
func (r *portfolioRepository) FindBySlug(slug string) (*models.Portfolio, error) {
	return r.first("slug = ? AND is_published = ?", slug, true)
}

func (r *portfolioRepository) FindByUserID(userID string) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&portfolios).Error; err != nil {
		return nil, fmt.Errorf("failed to find portfolios: %w", err)
	}
	return portfolios, nil
}

func (r *portfolioRepository) ListPublished(limit int) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	query := r.db.Where("is_published = ?", true).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&portfolios).Error; err != nil {
		return nil, fmt.Errorf("failed to list published portfolios: %w", err)
	}
	return portfolios, nil
}

func (r *portfolioRepository) Update(portfolio *models.Portfolio) error {
	result := r.db.Model(&models.Portfolio{}).
		Where("id = ?", portfolio.ID).
		Updates(map[string]interface{}{
			"full_name":    portfolio.FullName,
			"template_id":  portfolio.TemplateID,
			"content":      portfolio.Content,
			"is_published": portfolio.IsPublished,
			"slug":         portfolio.Slug,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update portfolio: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrPortfolioNotFound
	}

	return nil
}

func (r *portfolioRepository) SlugExists(slug string, exceptID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&models.Portfolio{}).
		Where("slug = ? AND id <> ?", slug, exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}
