package models

const (
	StyleModernTech = "modern_tech"
	StyleMinimalist = "minimalist"
	StyleCreative   = "creative"

	MaxTaglineLength = 100
)

var PortfolioStyles = []string{StyleModernTech, StyleMinimalist, StyleCreative}

// PortfolioContent is the generated-content contract stored on a Portfolio.
type PortfolioContent struct {
	Hero         Hero             `json:"hero" yaml:"hero"`
	BioLong      string           `json:"bio_long" yaml:"bio_long"`
	Projects     []ContentProject `json:"projects" yaml:"projects"`
	Skills       []SkillGroup     `json:"skills" yaml:"skills"`
	Theme        Theme            `json:"theme" yaml:"theme"`
	QualityScore float64          `json:"quality_score" yaml:"quality_score"`
}

type Hero struct {
	Name      string  `json:"name" yaml:"name"`
	Tagline   string  `json:"tagline" yaml:"tagline"`
	BioShort  string  `json:"bio_short" yaml:"bio_short"`
	AvatarURL *string `json:"avatar_url" yaml:"avatar_url"`
}

type ContentProject struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	TechStack   []string `json:"tech_stack" yaml:"tech_stack"`
	Featured    bool     `json:"featured" yaml:"featured"`
	Link        *string  `json:"link" yaml:"link"`
}

type SkillGroup struct {
	Category string   `json:"category" yaml:"category"`
	Items    []string `json:"items" yaml:"items"`
}

type Theme struct {
	PrimaryColor string `json:"primary_color" yaml:"primary_color"`
	Style        string `json:"style" yaml:"style"`
}

// Normalize replaces nil collections with empty ones.
func (c *PortfolioContent) Normalize() {
	if c.Projects == nil {
		c.Projects = []ContentProject{}
	}
	if c.Skills == nil {
		c.Skills = []SkillGroup{}
	}
	for i := range c.Projects {
		if c.Projects[i].TechStack == nil {
			c.Projects[i].TechStack = []string{}
		}
	}
	for i := range c.Skills {
		if c.Skills[i].Items == nil {
			c.Skills[i].Items = []string{}
		}
	}
}
