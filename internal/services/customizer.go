package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

// Edit operations understood by ApplyEdits.
const (
	OpFindReplace    = "find_replace"
	OpReplaceRegex   = "replace_regex"
	OpInsertAfter    = "insert_after"
	OpInsertBefore   = "insert_before"
	OpUpdateJSON     = "update_json"
	OpAppend         = "append"
	OpCSSVariable    = "css_variable"
	OpTailwindColors = "tailwind_colors"
)

const (
	featuresFile   = "showcase.features.json"
	dataBlockStart = "// showcase:data:start"
	dataBlockEnd   = "// showcase:data:end"
)

// CodeEdit is one structured change to a file of a template copy. File is
// relative to the copy's root.
type CodeEdit struct {
	Op      string            `json:"op"`
	File    string            `json:"file"`
	Find    string            `json:"find,omitempty"`
	Replace string            `json:"replace,omitempty"`
	Anchor  string            `json:"anchor,omitempty"`
	Code    string            `json:"code,omitempty"`
	Name    string            `json:"name,omitempty"`
	Value   string            `json:"value,omitempty"`
	Updates map[string]any    `json:"updates,omitempty"`
	Colors  map[string]string `json:"colors,omitempty"`
}

// EditReport is the outcome of one edit. No-ops have zero matches.
type EditReport struct {
	Op      string `json:"op"`
	File    string `json:"file"`
	Matches int    `json:"matches"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type CustomizationResult struct {
	JobID      string       `json:"job_id"`
	TemplateID string       `json:"template_id"`
	Reply      string       `json:"reply,omitempty"`
	Changes    []EditReport `json:"changes"`
}

type editPlan struct {
	Reply string     `json:"reply"`
	Edits []CodeEdit `json:"edits"`
}

// CustomizerService edits a per-job copy of a template under
// <output>/<job_id>/<template_id>. Calls on the same copy are not
// serialized; the last write wins.
type CustomizerService interface {
	Workspace(ctx context.Context, portfolio *models.Portfolio, templateID string) (string, error)
	InjectData(ctx context.Context, workdir, templateID string, content models.PortfolioContent) (EditReport, error)
	ApplyTheme(ctx context.Context, workdir string, colors models.ColorScheme) ([]EditReport, error)
	ApplyEdits(ctx context.Context, workdir string, edits []CodeEdit) ([]EditReport, error)
	ToggleFeatures(ctx context.Context, workdir string, features map[string]bool, content models.PortfolioContent) ([]EditReport, error)
	Customize(ctx context.Context, userID string, req models.CustomizationRequest) (*CustomizationResult, error)
	Chat(ctx context.Context, userID string, req models.ChatRequest) (*CustomizationResult, error)
}

type customizerService struct {
	files      *toolkit.FileTools
	registry   *toolkit.TemplateRegistry
	portfolios repositories.PortfolioRepository
	model      GeminiService
	prompts    *PromptBuilder
	log        *slog.Logger
}

func NewCustomizerService(
	files *toolkit.FileTools,
	registry *toolkit.TemplateRegistry,
	portfolios repositories.PortfolioRepository,
	model GeminiService,
	prompts *PromptBuilder,
	log *slog.Logger,
) CustomizerService {
	return &customizerService{
		files:      files,
		registry:   registry,
		portfolios: portfolios,
		model:      model,
		prompts:    prompts,
		log:        log.With("component", "customizer"),
	}
}

// Workspace returns the template copy of a portfolio, creating it and
// injecting the portfolio content on first use.
func (c *customizerService) Workspace(ctx context.Context, portfolio *models.Portfolio, templateID string) (string, error) {
	if templateID == "" {
		templateID = portfolio.TemplateID
	}
	if templateID == "" {
		templateID = c.registry.DefaultTemplate()
	}
	if _, err := c.registry.GetTemplatePath(templateID); err != nil {
		return "", apperrors.NotFound("Template", templateID)
	}

	name := filepath.Join(portfolio.JobID.String(), templateID)
	workdir := filepath.Join(c.files.OutputDir, name)
	if info, err := os.Stat(workdir); err == nil && info.IsDir() {
		return workdir, nil
	}

	workdir, err := c.files.CopyTemplate(templateID, name)
	if err != nil {
		if errors.Is(err, toolkit.ErrNotFound) {
			return "", apperrors.NotFound("Template", templateID)
		}
		return "", err
	}
	c.log.Info("📁 Template copied", "job_id", portfolio.JobID, "template", templateID)

	if _, err := c.InjectData(ctx, workdir, templateID, portfolio.Data()); err != nil {
		return "", err
	}
	return workdir, nil
}

// InjectData writes portfolio content into the copy's data file. JSON data
// files get keys updated in place; JS and TSX files get an exported
// portfolioData block that replaces any earlier one.
func (c *customizerService) InjectData(_ context.Context, workdir, templateID string, content models.PortfolioContent) (EditReport, error) {
	templatePath, err := c.registry.GetTemplatePath(templateID)
	if err != nil {
		return EditReport{}, apperrors.NotFound("Template", templateID)
	}
	source, err := c.registry.GetTemplateDataFile(templateID)
	if err != nil {
		return EditReport{}, apperrors.Validation(err.Error())
	}
	rel, err := filepath.Rel(templatePath, source)
	if err != nil {
		return EditReport{}, fmt.Errorf("failed to locate data file: %w", err)
	}

	content.Normalize()
	code := toolkit.NewCodeTools(workdir)
	report := EditReport{File: filepath.ToSlash(rel)}

	var result toolkit.Result
	if strings.EqualFold(filepath.Ext(rel), ".json") {
		report.Op = OpUpdateJSON
		result, err = code.UpdateJSONFile(rel, map[string]any{
			"name":      content.Hero.Name,
			"tagline":   content.Hero.Tagline,
			"bio":       content.BioLong,
			"bio_short": content.Hero.BioShort,
			"projects":  content.Projects,
			"skills":    content.Skills,
			"theme":     content.Theme,
		})
	} else {
		report.Op = OpReplaceRegex
		result, err = injectDataBlock(code, rel, content)
	}
	if err != nil {
		return EditReport{}, err
	}

	report.Matches = result.Matches
	report.Message = result.Message
	return report, nil
}

func injectDataBlock(code *toolkit.CodeTools, rel string, content models.PortfolioContent) (toolkit.Result, error) {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return toolkit.Result{}, fmt.Errorf("failed to encode portfolio data: %w", err)
	}
	block := fmt.Sprintf("%s\nexport const portfolioData = %s;\n%s", dataBlockStart, data, dataBlockEnd)

	existing, err := os.ReadFile(filepath.Join(code.BaseDir, rel))
	if err != nil {
		return toolkit.Result{}, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if !strings.Contains(string(existing), dataBlockStart) {
		return code.AppendToFile(rel, "\n"+block+"\n")
	}

	pattern := `(?s)` + regexp.QuoteMeta(dataBlockStart) + `.*?` + regexp.QuoteMeta(dataBlockEnd)
	return code.ReplaceInFile(rel, pattern, strings.ReplaceAll(block, "$", "$$"), true)
}

// ApplyTheme sets the primary, secondary and accent colors in every CSS
// custom property and in the Tailwind config. Missing colors take the
// template defaults.
func (c *customizerService) ApplyTheme(ctx context.Context, workdir string, colors models.ColorScheme) ([]EditReport, error) {
	defaults := models.DefaultColorScheme()
	palette := map[string]string{
		"primary":   firstNonEmpty(colors.Primary, defaults.Primary),
		"secondary": firstNonEmpty(colors.Secondary, defaults.Secondary),
		"accent":    firstNonEmpty(colors.Accent, defaults.Accent),
	}
	names := []string{"primary", "secondary", "accent"}
	for _, name := range names {
		if !hexColor.MatchString(palette[name]) {
			return nil, apperrors.ValidationField("colors."+name, fmt.Sprintf("%s must be a #RRGGBB color", name))
		}
	}

	code := toolkit.NewCodeTools(workdir)
	var reports []EditReport

	cssFiles, err := toolkit.FindFiles(workdir, "*.css")
	if err != nil {
		return nil, fmt.Errorf("failed to list stylesheets: %w", err)
	}
	for _, file := range cssFiles {
		rel := relativeTo(workdir, file)
		for _, name := range names {
			for _, variable := range []string{"--" + name, "--color-" + name} {
				if err := ctx.Err(); err != nil {
					return reports, err
				}
				result, err := code.UpdateCSSVariable(rel, variable, palette[name])
				reports = append(reports, report(OpCSSVariable, rel, result, err))
			}
		}
	}

	for _, config := range []string{"tailwind.config.js", "tailwind.config.ts"} {
		if _, err := os.Stat(filepath.Join(workdir, config)); err != nil {
			continue
		}
		result, err := code.UpdateTailwindColors(config, palette)
		reports = append(reports, report(OpTailwindColors, config, result, err))
	}

	return reports, nil
}

// ApplyEdits runs edits in order. A failing edit is reported and the rest
// still run.
func (c *customizerService) ApplyEdits(ctx context.Context, workdir string, edits []CodeEdit) ([]EditReport, error) {
	code := toolkit.NewCodeTools(workdir)
	reports := make([]EditReport, 0, len(edits))

	for _, edit := range edits {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		if edit.File == "" || filepath.IsAbs(edit.File) {
			reports = append(reports, EditReport{Op: edit.Op, File: edit.File, Error: "file must be a path relative to the template root"})
			continue
		}

		var (
			result toolkit.Result
			err    error
		)
		switch edit.Op {
		case OpFindReplace:
			result, err = code.FindAndReplace(edit.File, edit.Find, edit.Replace, -1)
		case OpReplaceRegex:
			result, err = code.ReplaceInFile(edit.File, edit.Find, edit.Replace, true)
		case OpInsertAfter:
			result, err = code.InsertCodeAfter(edit.File, edit.Anchor, edit.Code)
		case OpInsertBefore:
			result, err = code.InsertCodeBefore(edit.File, edit.Anchor, edit.Code)
		case OpUpdateJSON:
			result, err = code.UpdateJSONFile(edit.File, edit.Updates)
		case OpAppend:
			result, err = code.AppendToFile(edit.File, edit.Code)
		case OpCSSVariable:
			result, err = code.UpdateCSSVariable(edit.File, edit.Name, edit.Value)
		case OpTailwindColors:
			result, err = code.UpdateTailwindColors(edit.File, edit.Colors)
		default:
			err = fmt.Errorf("unknown edit operation %q", edit.Op)
		}
		reports = append(reports, report(edit.Op, edit.File, result, err))
	}

	return reports, nil
}

// ToggleFeatures records feature flags in showcase.features.json. Enabling
// seo also writes title and description tags into every index.html.
func (c *customizerService) ToggleFeatures(_ context.Context, workdir string, features map[string]bool, content models.PortfolioContent) ([]EditReport, error) {
	if len(features) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(features))
	for name := range features {
		if !models.IsKnownFeature(name) {
			return nil, apperrors.ValidationField("features", fmt.Sprintf("Unknown feature %q", name))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	path := filepath.Join(workdir, featuresFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, err := c.files.WriteFile(path, "{}"); err != nil {
			return nil, err
		}
	}

	updates := make(map[string]any, len(features))
	for _, name := range names {
		updates["features."+name] = features[name]
	}
	code := toolkit.NewCodeTools(workdir)
	result, err := code.UpdateJSONFile(featuresFile, updates)
	reports := []EditReport{report(OpUpdateJSON, featuresFile, result, err)}
	if err != nil {
		return reports, err
	}

	if !features[models.FeatureSEO] {
		return reports, nil
	}

	pages, err := toolkit.FindFiles(workdir, "index.html")
	if err != nil {
		return reports, fmt.Errorf("failed to list pages: %w", err)
	}
	title := strings.TrimSpace(content.Hero.Name + " | Portfolio")
	meta := map[string]string{
		"description": firstNonEmpty(content.Hero.Tagline, content.Hero.BioShort),
		"author":      content.Hero.Name,
		"robots":      "index, follow",
	}
	for _, page := range pages {
		rel := relativeTo(workdir, page)
		result, err := code.UpdateHTMLHead(rel, title, meta)
		reports = append(reports, report("html_head", rel, result, err))
	}
	return reports, nil
}

func (c *customizerService) Customize(ctx context.Context, userID string, req models.CustomizationRequest) (*CustomizationResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	portfolio, err := c.ownedPortfolio(userID, req.JobID)
	if err != nil {
		return nil, err
	}
	workdir, err := c.Workspace(ctx, portfolio, req.TemplateID)
	if err != nil {
		return nil, err
	}

	result := &CustomizationResult{
		JobID:      req.JobID,
		TemplateID: filepath.Base(workdir),
		Changes:    []EditReport{},
	}

	if req.Colors != nil {
		reports, err := c.ApplyTheme(ctx, workdir, *req.Colors)
		result.Changes = append(result.Changes, reports...)
		if err != nil {
			return nil, err
		}
	}

	if req.Features != nil {
		reports, err := c.ToggleFeatures(ctx, workdir, req.Features.Map(), portfolio.Data())
		result.Changes = append(result.Changes, reports...)
		if err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(req.CustomInstructions) != "" {
		plan, err := c.plan(ctx, workdir, req.CustomInstructions, portfolio)
		if err != nil {
			return nil, err
		}
		reports, err := c.ApplyEdits(ctx, workdir, plan.Edits)
		result.Changes = append(result.Changes, reports...)
		if err != nil {
			return nil, err
		}
		result.Reply = plan.Reply
	}

	c.log.Info("🎨 Portfolio customized", "job_id", req.JobID, "template", result.TemplateID, "changes", len(result.Changes))
	return result, nil
}

// Chat answers a message. With a job id the model also plans edits that are
// applied to that job's template copy.
func (c *customizerService) Chat(ctx context.Context, userID string, req models.ChatRequest) (*CustomizationResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	if req.JobID == "" {
		reply, err := c.model.GenerateText(ctx, ChatSystemPrompt+"\n\nUser: "+req.Message, 0.7)
		if err != nil {
			return nil, err
		}
		return &CustomizationResult{Reply: reply, Changes: []EditReport{}}, nil
	}

	portfolio, err := c.ownedPortfolio(userID, req.JobID)
	if err != nil {
		return nil, err
	}
	workdir, err := c.Workspace(ctx, portfolio, req.TemplateID)
	if err != nil {
		return nil, err
	}

	plan, err := c.plan(ctx, workdir, req.Message, portfolio)
	if err != nil {
		return nil, err
	}
	reports, err := c.ApplyEdits(ctx, workdir, plan.Edits)
	if err != nil {
		return nil, err
	}

	return &CustomizationResult{
		JobID:      req.JobID,
		TemplateID: filepath.Base(workdir),
		Reply:      plan.Reply,
		Changes:    reports,
	}, nil
}

func (c *customizerService) plan(ctx context.Context, workdir, instructions string, portfolio *models.Portfolio) (*editPlan, error) {
	files, err := toolkit.FindFiles(workdir, "*.html", "*.css", "*.js", "*.jsx", "*.ts", "*.tsx", "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list template files: %w", err)
	}
	for i, file := range files {
		files[i] = relativeTo(workdir, file)
	}

	content := portfolio.Data()
	response, err := c.model.GenerateJSON(ctx, c.prompts.BuildEditPlanPrompt(instructions, files, &content), 0.2)
	if err != nil {
		return nil, err
	}

	var plan editPlan
	if err := parseJSONResponse(response, &plan); err != nil {
		return nil, malformed("customization", response, err)
	}
	return &plan, nil
}

func (c *customizerService) ownedPortfolio(userID, jobID string) (*models.Portfolio, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, apperrors.ValidationField("job_id", "job_id must be a valid UUID")
	}
	portfolio, err := c.portfolios.FindByJobID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrPortfolioNotFound) {
			return nil, apperrors.NotFound("Portfolio", jobID)
		}
		return nil, err
	}
	if userID != "" && portfolio.UserID != userID {
		return nil, apperrors.Authorization("You do not have access to this portfolio")
	}
	return portfolio, nil
}

func report(op, file string, result toolkit.Result, err error) EditReport {
	r := EditReport{Op: op, File: file, Matches: result.Matches, Message: result.Message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
