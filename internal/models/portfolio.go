package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Portfolio struct {
	ID          uuid.UUID                            `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID      string                               `gorm:"type:text;not null;index" json:"user_id"`
	JobID       uuid.UUID                            `gorm:"type:uuid;not null;uniqueIndex" json:"job_id"`
	FullName    string                               `gorm:"type:text" json:"full_name"`
	TemplateID  string                               `gorm:"type:text" json:"template_id"`
	Content     datatypes.JSONType[PortfolioContent] `gorm:"type:jsonb;not null" json:"content"`
	Profile     datatypes.JSONType[ResumeProfile]    `gorm:"type:jsonb" json:"profile"`
	IsPublished bool                                 `gorm:"not null;default:false" json:"is_published"`
	Slug        *string                              `gorm:"type:text;uniqueIndex" json:"slug,omitempty"`
	CreatedAt   time.Time                            `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                            `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// Data returns a copy of the stored content.
func (p *Portfolio) Data() PortfolioContent {
	return p.Content.Data()
}

func (p *Portfolio) SetContent(content PortfolioContent) {
	p.Content = datatypes.NewJSONType(content)
	p.FullName = content.Hero.Name
}

func (p *Portfolio) SetProfile(profile ResumeProfile) {
	p.Profile = datatypes.NewJSONType(profile)
}
