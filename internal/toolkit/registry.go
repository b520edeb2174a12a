package toolkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FallbackTemplate is used when the registry names no default and is empty.
const FallbackTemplate = "one_temp"

// dataFileCandidates lists the per-template data file locations, most
// specific first.
var dataFileCandidates = []string{
	"assets/lib/data.tsx",
	"data/data.tsx",
	"config.js",
	"src/data/portfolio.json",
	"data/portfolio.json",
}

type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Framework   string   `json:"framework"`
	Type        string   `json:"type"`
	Features    []string `json:"features"`
	Description string   `json:"description,omitempty"`
}

type TemplateSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Framework string   `json:"framework"`
	Type      string   `json:"type"`
	Features  []string `json:"features"`
}

type RoleMatch struct {
	Role                 string   `json:"role"`
	RecommendedTemplates []string `json:"recommended_templates"`
	Message              string   `json:"message,omitempty"`
}

type FeatureMatch struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Features   []string `json:"features"`
	MatchScore int      `json:"match_score"`
}

type selectionCriteria struct {
	ByRole  map[string][]string `json:"byRole"`
	Default string              `json:"default,omitempty"`
}

type registryFile struct {
	Templates         []Template        `json:"templates"`
	SelectionCriteria selectionCriteria `json:"selectionCriteria"`
}

// TemplateRegistry is the read-only catalogue loaded from registry.json.
// It is safe for concurrent use.
type TemplateRegistry struct {
	dir      string
	registry registryFile
	roleKeys []string
}

// LoadTemplateRegistry reads <dir>/registry.json. A missing file yields an
// empty registry.
func LoadTemplateRegistry(dir string) (*TemplateRegistry, error) {
	r := &TemplateRegistry{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, "registry.json"))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read template registry: %w", err)
	default:
		if err := json.Unmarshal(data, &r.registry); err != nil {
			return nil, fmt.Errorf("invalid template registry: %w", err)
		}
	}

	for key := range r.registry.SelectionCriteria.ByRole {
		r.roleKeys = append(r.roleKeys, key)
	}
	sort.Strings(r.roleKeys)

	return r, nil
}

func (r *TemplateRegistry) ListTemplates() []TemplateSummary {
	summaries := make([]TemplateSummary, 0, len(r.registry.Templates))
	for _, t := range r.registry.Templates {
		features := t.Features
		if features == nil {
			features = []string{}
		}
		summaries = append(summaries, TemplateSummary{
			ID:        t.ID,
			Name:      t.Name,
			Framework: t.Framework,
			Type:      t.Type,
			Features:  features,
		})
	}
	return summaries
}

func (r *TemplateRegistry) GetTemplate(id string) (*Template, error) {
	for i := range r.registry.Templates {
		if r.registry.Templates[i].ID == id {
			t := r.registry.Templates[i]
			return &t, nil
		}
	}
	return nil, notFound("template", id)
}

func (r *TemplateRegistry) Has(id string) bool {
	_, err := r.GetTemplate(id)
	return err == nil
}

// FindTemplatesByRole returns the recommendations of the first role key
// (in sorted order) that contains, or is contained in, the lower-cased role.
func (r *TemplateRegistry) FindTemplatesByRole(role string) RoleMatch {
	roleLower := strings.ToLower(strings.TrimSpace(role))

	if roleLower != "" {
		for _, key := range r.roleKeys {
			k := strings.ToLower(key)
			if strings.Contains(roleLower, k) || strings.Contains(k, roleLower) {
				return RoleMatch{
					Role:                 key,
					RecommendedTemplates: append([]string{}, r.registry.SelectionCriteria.ByRole[key]...),
				}
			}
		}
	}

	return RoleMatch{
		Role:                 role,
		RecommendedTemplates: []string{},
		Message:              "No specific recommendations, using fallback",
	}
}

// TemplatesForSkill returns the recommendations of the role key equal to
// skill, ignoring case. Skills never match partially.
func (r *TemplateRegistry) TemplatesForSkill(skill string) []string {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return []string{}
	}
	for _, key := range r.roleKeys {
		if strings.EqualFold(key, skill) {
			return append([]string{}, r.registry.SelectionCriteria.ByRole[key]...)
		}
	}
	return []string{}
}

// FindTemplatesByFeatures returns templates offering every requested feature.
func (r *TemplateRegistry) FindTemplatesByFeatures(features []string) []FeatureMatch {
	matches := []FeatureMatch{}
	for _, t := range r.registry.Templates {
		have := make(map[string]bool, len(t.Features))
		for _, f := range t.Features {
			have[f] = true
		}

		score := 0
		for _, f := range features {
			if !have[f] {
				score = -1
				break
			}
			score++
		}
		if score < 0 {
			continue
		}

		matches = append(matches, FeatureMatch{
			ID:         t.ID,
			Name:       t.Name,
			Features:   append([]string{}, t.Features...),
			MatchScore: score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

func (r *TemplateRegistry) GetTemplatePath(id string) (string, error) {
	path := filepath.Join(r.dir, id)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return "", notFound("template", id)
	}
	return path, nil
}

// GetTemplateDataFile returns the data file of the pristine template.
func (r *TemplateRegistry) GetTemplateDataFile(id string) (string, error) {
	path, err := r.GetTemplatePath(id)
	if err != nil {
		return "", err
	}
	if file, ok := FindDataFile(path); ok {
		return file, nil
	}
	return "", &notFoundError{what: "data file", name: id, msg: "no data file found for template: " + id}
}

// FindDataFile looks for a known data file location inside a template tree.
func FindDataFile(root string) (string, bool) {
	for _, candidate := range dataFileCandidates {
		path := filepath.Join(root, filepath.FromSlash(candidate))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (r *TemplateRegistry) DefaultTemplate() string {
	if d := r.registry.SelectionCriteria.Default; d != "" {
		return d
	}
	if len(r.registry.Templates) > 0 {
		return r.registry.Templates[0].ID
	}
	return FallbackTemplate
}
