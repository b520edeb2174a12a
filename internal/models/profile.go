package models

// ResumeProfile is the structured form of a resume passed between pipeline
// stages. Absent fields are empty strings or empty collections, never guesses.
type ResumeProfile struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Location   string            `json:"location"`
	Title      string            `json:"title"`
	Summary    string            `json:"summary"`
	Skills     []string          `json:"skills"`
	Experience []Experience      `json:"experience"`
	Education  []Education       `json:"education"`
	Projects   []ProfileProject  `json:"projects"`
	Links      map[string]string `json:"links"`
}

type Experience struct {
	Company     string   `json:"company"`
	Role        string   `json:"role"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type ProfileProject struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TechStack   []string `json:"tech_stack"`
	Link        string   `json:"link"`
}

// ValidatedProfile is the output of the profile validation stage.
type ValidatedProfile struct {
	ResumeProfile
	QualityScore float64  `json:"quality_score"`
	Warnings     []string `json:"warnings"`
}

// EnsureCollections replaces nil collections with empty ones so the profile
// serializes as [] and {} rather than null.
func (p *ResumeProfile) EnsureCollections() {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
	if p.Projects == nil {
		p.Projects = []ProfileProject{}
	}
	if p.Links == nil {
		p.Links = map[string]string{}
	}
	for i := range p.Experience {
		if p.Experience[i].Highlights == nil {
			p.Experience[i].Highlights = []string{}
		}
	}
	for i := range p.Projects {
		if p.Projects[i].TechStack == nil {
			p.Projects[i].TechStack = []string{}
		}
	}
}

// Preferences are optional user choices that steer generation.
type Preferences struct {
	ColorTheme string            `json:"color_theme,omitempty"`
	Style      string            `json:"style,omitempty"`
	Features   []string          `json:"features,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (p Preferences) IsZero() bool {
	return p.ColorTheme == "" && p.Style == "" && len(p.Features) == 0 && len(p.Extra) == 0
}
