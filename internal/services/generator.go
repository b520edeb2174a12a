package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

// Sections that RegenerateSection accepts.
var RegenerableSections = []string{"hero", "bio_long", "projects", "skills", "theme"}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type GenerationResult struct {
	Content    models.PortfolioContent
	TemplateID string
}

type GeneratorService interface {
	SynthesizeContent(ctx context.Context, profile models.ValidatedProfile, prefs models.Preferences) (*models.PortfolioContent, error)
	SelectTemplate(ctx context.Context, role string, skills []string) (string, error)
	Generate(ctx context.Context, profile models.ValidatedProfile, prefs models.Preferences) (*GenerationResult, error)
	RegenerateSection(ctx context.Context, current models.PortfolioContent, section string, prefs models.Preferences) (*models.PortfolioContent, error)
}

type generatorService struct {
	model     GeminiService
	prompts   *PromptBuilder
	registry  *toolkit.TemplateRegistry
	validator *ContentValidator
	topSkills int
	log       *slog.Logger
}

func NewGeneratorService(
	model GeminiService,
	prompts *PromptBuilder,
	registry *toolkit.TemplateRegistry,
	validator *ContentValidator,
	topSkills int,
	log *slog.Logger,
) GeneratorService {
	if topSkills <= 0 {
		topSkills = 10
	}
	return &generatorService{
		model:     model,
		prompts:   prompts,
		registry:  registry,
		validator: validator,
		topSkills: topSkills,
		log:       log,
	}
}

func (g *generatorService) SynthesizeContent(ctx context.Context, profile models.ValidatedProfile, prefs models.Preferences) (*models.PortfolioContent, error) {
	stage := models.StageContentGeneration

	response, err := g.model.GenerateJSON(ctx, g.prompts.BuildContentPrompt(profile, prefs), 0.7)
	if err != nil {
		return nil, err
	}

	var content models.PortfolioContent
	if err := parseJSONResponse(response, &content); err != nil {
		return nil, malformed(stage, response, err)
	}

	g.groundInProfile(&content, profile, prefs)

	if err := g.validator.Validate(stage, &content); err != nil {
		return nil, err
	}
	if strings.TrimSpace(profile.Summary) != "" && strings.TrimSpace(content.BioLong) == "" {
		return nil, apperrors.Schema(stage, "Generated content does not match the portfolio schema", content,
			[]string{"bio_long: must not be empty when the profile has a summary"})
	}

	return &content, nil
}

// groundInProfile drops sections the profile has no source data for and
// applies explicit user preferences over the model's choices.
func (g *generatorService) groundInProfile(content *models.PortfolioContent, profile models.ValidatedProfile, prefs models.Preferences) {
	content.Normalize()

	if len(profile.Projects) == 0 && len(profile.Experience) == 0 {
		content.Projects = []models.ContentProject{}
	}
	if len(profile.Skills) == 0 {
		content.Skills = []models.SkillGroup{}
	}
	if strings.TrimSpace(content.Hero.Name) == "" {
		content.Hero.Name = profile.Name
	}

	if hexColor.MatchString(prefs.ColorTheme) {
		content.Theme.PrimaryColor = prefs.ColorTheme
	}
	if slices.Contains(models.PortfolioStyles, prefs.Style) {
		content.Theme.Style = prefs.Style
	}
}

// SelectTemplate returns exactly one registry template id. The role hint
// matches role keys partially; each of the top skills must equal a role key.
// Without a match the registry default is used.
func (g *generatorService) SelectTemplate(_ context.Context, role string, skills []string) (string, error) {
	if len(skills) > g.topSkills {
		skills = skills[:g.topSkills]
	}

	if strings.TrimSpace(role) != "" {
		if id, ok := g.firstKnown(g.registry.FindTemplatesByRole(role).RecommendedTemplates); ok {
			return id, nil
		}
	}
	for _, skill := range skills {
		if id, ok := g.firstKnown(g.registry.TemplatesForSkill(skill)); ok {
			return id, nil
		}
	}

	return g.registry.DefaultTemplate(), nil
}

func (g *generatorService) firstKnown(ids []string) (string, bool) {
	for _, id := range ids {
		if g.registry.Has(id) {
			return id, true
		}
	}
	return "", false
}

// Generate runs content synthesis and template selection concurrently.
func (g *generatorService) Generate(ctx context.Context, profile models.ValidatedProfile, prefs models.Preferences) (*GenerationResult, error) {
	var (
		content    *models.PortfolioContent
		templateID string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		content, err = g.SynthesizeContent(egCtx, profile, prefs)
		return err
	})
	eg.Go(func() error {
		var err error
		templateID, err = g.SelectTemplate(egCtx, profile.Title, profile.Skills)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.log.Info("✨ Portfolio content generated", "template", templateID, "projects", len(content.Projects))
	return &GenerationResult{Content: *content, TemplateID: templateID}, nil
}

func (g *generatorService) RegenerateSection(ctx context.Context, current models.PortfolioContent, section string, prefs models.Preferences) (*models.PortfolioContent, error) {
	if !slices.Contains(RegenerableSections, section) {
		return nil, apperrors.ValidationField("section",
			fmt.Sprintf("Unknown section %q. Allowed: %s", section, strings.Join(RegenerableSections, ", ")))
	}

	stage := "regenerate_" + section
	response, err := g.model.GenerateJSON(ctx, g.prompts.BuildSectionPrompt(section, current, prefs), 0.7)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := parseJSONResponse(response, &envelope); err != nil {
		return nil, malformed(stage, response, err)
	}
	raw, ok := envelope[section]
	if !ok {
		return nil, apperrors.ContentGeneration(stage, fmt.Sprintf("Model response has no %q section", section), nil)
	}

	updated := current
	var target any
	switch section {
	case "hero":
		target = &updated.Hero
	case "bio_long":
		target = &updated.BioLong
	case "projects":
		updated.Projects = nil
		target = &updated.Projects
	case "skills":
		updated.Skills = nil
		target = &updated.Skills
	case "theme":
		target = &updated.Theme
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, malformed(stage, response, err)
	}

	updated.Normalize()
	if section == "theme" {
		if hexColor.MatchString(prefs.ColorTheme) {
			updated.Theme.PrimaryColor = prefs.ColorTheme
		}
		if slices.Contains(models.PortfolioStyles, prefs.Style) {
			updated.Theme.Style = prefs.Style
		}
	}

	if err := g.validator.Validate(stage, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
