package models

import "time"

type SubmitResumeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type JobStatusResponse struct {
	JobID              string         `json:"job_id"`
	Status             string         `json:"status"`
	ProgressPercentage int            `json:"progress_percentage"`
	CurrentStage       string         `json:"current_stage"`
	ErrorMessage       *string        `json:"error_message,omitempty"`
	ErrorDetails       map[string]any `json:"error_details,omitempty"`
	PortfolioID        *string        `json:"portfolio_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type PublishRequest struct {
	IsPublished *bool   `json:"is_published" validate:"required"`
	Slug        *string `json:"slug" validate:"omitempty,min=3,max=64"`
}

type ContentUpdateRequest struct {
	Content PortfolioContent `json:"content" validate:"required"`
}

type RegenerateRequest struct {
	Section     string      `json:"section" validate:"required,oneof=hero bio_long projects skills theme"`
	Preferences Preferences `json:"preferences"`
}

type ColorScheme struct {
	Primary   string `json:"primary" validate:"omitempty,hexcolor"`
	Secondary string `json:"secondary" validate:"omitempty,hexcolor"`
	Accent    string `json:"accent" validate:"omitempty,hexcolor"`
}

// DefaultColorScheme mirrors the colors the templates ship with.
func DefaultColorScheme() ColorScheme {
	return ColorScheme{Primary: "#3B82F6", Secondary: "#6B7280", Accent: "#10B981"}
}

type FeatureToggles struct {
	DarkMode    *bool `json:"dark_mode"`
	Animations  *bool `json:"animations"`
	ContactForm *bool `json:"contact_form"`
	BlogSection *bool `json:"blog_section"`
	Analytics   *bool `json:"analytics"`
	SEO         *bool `json:"seo"`
}

// Map returns only the toggles that were set.
func (f FeatureToggles) Map() map[string]bool {
	out := map[string]bool{}
	set := func(name string, v *bool) {
		if v != nil {
			out[name] = *v
		}
	}
	set(FeatureDarkMode, f.DarkMode)
	set(FeatureAnimations, f.Animations)
	set(FeatureContactForm, f.ContactForm)
	set(FeatureBlogSection, f.BlogSection)
	set(FeatureAnalytics, f.Analytics)
	set(FeatureSEO, f.SEO)
	return out
}

type CustomizationRequest struct {
	JobID              string          `json:"job_id" validate:"required,uuid"`
	TemplateID         string          `json:"template_id" validate:"omitempty,max=64"`
	Colors             *ColorScheme    `json:"colors" validate:"omitempty"`
	Features           *FeatureToggles `json:"features"`
	CustomInstructions string          `json:"custom_instructions" validate:"max=4000"`
}

type ChatRequest struct {
	Message    string `json:"message" validate:"required,max=4000"`
	JobID      string `json:"job_id" validate:"omitempty,uuid"`
	TemplateID string `json:"template_id" validate:"omitempty,max=64"`
}

type DeployCallbackRequest struct {
	Code          string            `json:"code" validate:"required"`
	PortfolioData *PortfolioContent `json:"portfolio_data"`
	JobID         string            `json:"job_id" validate:"omitempty,uuid"`
	TemplateID    string            `json:"template_id"`
}

type DeployResponse struct {
	Success       bool    `json:"success"`
	GitHubToken   *string `json:"github_token,omitempty"`
	GitHubRepoURL *string `json:"github_repo_url,omitempty"`
	DeploymentURL *string `json:"deployment_url,omitempty"`
	Message       string  `json:"message"`
}

const (
	FeatureDarkMode    = "dark_mode"
	FeatureAnimations  = "animations"
	FeatureContactForm = "contact_form"
	FeatureBlogSection = "blog_section"
	FeatureAnalytics   = "analytics"
	FeatureSEO         = "seo"
)

type Feature struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// Features is the catalogue of toggles a template copy understands.
var Features = []Feature{
	{ID: FeatureDarkMode, Name: "Dark Mode Toggle", Default: true},
	{ID: FeatureAnimations, Name: "Animations", Default: true},
	{ID: FeatureContactForm, Name: "Contact Form", Default: true},
	{ID: FeatureBlogSection, Name: "Blog Section", Default: false},
	{ID: FeatureAnalytics, Name: "Analytics", Default: false},
	{ID: FeatureSEO, Name: "SEO Meta Tags", Default: false},
}

func IsKnownFeature(id string) bool {
	for _, f := range Features {
		if f.ID == id {
			return true
		}
	}
	return false
}
