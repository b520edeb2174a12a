package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/metrics"
	"github.com/MLSAKIIT/Showcase/internal/models"
)

// Stage is one typed step of a pipeline. Each stage's output is the verbatim
// input of the next one.
type Stage[In, Out any] interface {
	Name() string
	Run(ctx context.Context, in In) (Out, error)
}

// RunStage runs a stage and records its duration.
func RunStage[In, Out any](ctx context.Context, stage Stage[In, Out], in In) (Out, error) {
	started := time.Now()
	out, err := stage.Run(ctx, in)
	metrics.ObserveStage(stage.Name(), started, err)
	return out, err
}

// Document is an uploaded resume.
type Document struct {
	Data     []byte
	MimeType string
	Filename string
}

// RawText is the output of extraction. Source is "pdf_text" or "vision".
type RawText struct {
	Text   string
	Source string
}

const (
	SourcePDFText = "pdf_text"
	SourceVision  = "vision"

	// minTextLayer is the shortest PDF text layer trusted without OCR.
	minTextLayer = 40
)

// ExtractionStage reads the PDF text layer and falls back to the vision
// model for scans and images.
type ExtractionStage struct {
	model GeminiService
	pdf   PDFParserService
	log   *slog.Logger
}

func NewExtractionStage(model GeminiService, pdf PDFParserService, log *slog.Logger) *ExtractionStage {
	return &ExtractionStage{model: model, pdf: pdf, log: log}
}

func (s *ExtractionStage) Name() string { return models.StageOCRExtraction }

func (s *ExtractionStage) Run(ctx context.Context, doc Document) (RawText, error) {
	if len(doc.Data) == 0 {
		return RawText{}, apperrors.OCR(s.Name(), "Uploaded document is empty", nil)
	}

	if doc.MimeType == "application/pdf" && s.pdf != nil {
		content, err := s.pdf.ExtractText(doc.Data)
		switch {
		case err != nil:
			s.log.Warn("⚠️ PDF text layer unreadable, falling back to OCR", "file", doc.Filename, "error", err)
		case len(content.Text) >= minTextLayer:
			return RawText{Text: content.Text, Source: SourcePDFText}, nil
		default:
			s.log.Info("📄 PDF has no usable text layer, using OCR", "file", doc.Filename, "pages", content.PageCount)
		}
	}

	text, err := s.model.GenerateFromDocument(ctx, OCRPrompt, doc.Data, doc.MimeType)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindRateLimit) || ctx.Err() != nil {
			return RawText{}, err
		}
		return RawText{}, apperrors.OCR(s.Name(), "Failed to extract text from document", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return RawText{}, apperrors.OCR(s.Name(), "No text could be extracted from the document", nil)
	}
	return RawText{Text: text, Source: SourceVision}, nil
}

// StructuringStage maps raw text onto a ResumeProfile.
type StructuringStage struct {
	model   GeminiService
	prompts *PromptBuilder
}

func NewStructuringStage(model GeminiService, prompts *PromptBuilder) *StructuringStage {
	return &StructuringStage{model: model, prompts: prompts}
}

func (s *StructuringStage) Name() string { return models.StageStructuring }

func (s *StructuringStage) Run(ctx context.Context, raw RawText) (models.ResumeProfile, error) {
	response, err := s.model.GenerateJSON(ctx, s.prompts.BuildStructuringPrompt(raw.Text), 0.1)
	if err != nil {
		return models.ResumeProfile{}, err
	}

	var profile models.ResumeProfile
	if err := parseJSONResponse(response, &profile); err != nil {
		return models.ResumeProfile{}, malformed(s.Name(), response, err)
	}

	profile.EnsureCollections()
	return profile, nil
}

// ValidationStage asks the model to clean the profile and score it, then
// applies deterministic normalization on top of the answer.
type ValidationStage struct {
	model    GeminiService
	prompts  *PromptBuilder
	validate *validator.Validate
}

func NewValidationStage(model GeminiService, prompts *PromptBuilder) *ValidationStage {
	return &ValidationStage{model: model, prompts: prompts, validate: validator.New()}
}

func (s *ValidationStage) Name() string { return models.StageProfileValidation }

func (s *ValidationStage) Run(ctx context.Context, profile models.ResumeProfile) (models.ValidatedProfile, error) {
	response, err := s.model.GenerateJSON(ctx, s.prompts.BuildValidationPrompt(profile), 0.1)
	if err != nil {
		return models.ValidatedProfile{}, err
	}

	var validated models.ValidatedProfile
	if err := parseJSONResponse(response, &validated); err != nil {
		return models.ValidatedProfile{}, malformed(s.Name(), response, err)
	}

	return s.Normalize(profile, validated), nil
}

// Normalize merges the model's answer with the input it was given. Fields
// the model blanked out keep their input value, so the stage never loses data.
func (s *ValidationStage) Normalize(input models.ResumeProfile, out models.ValidatedProfile) models.ValidatedProfile {
	p := &out.ResumeProfile
	keep := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
		*dst = strings.TrimSpace(*dst)
	}
	keep(&p.Name, input.Name)
	keep(&p.Email, input.Email)
	keep(&p.Phone, input.Phone)
	keep(&p.Location, input.Location)
	keep(&p.Title, input.Title)
	keep(&p.Summary, input.Summary)

	if len(p.Skills) == 0 {
		p.Skills = input.Skills
	}
	if len(p.Experience) == 0 {
		p.Experience = input.Experience
	}
	if len(p.Education) == 0 {
		p.Education = input.Education
	}
	if len(p.Projects) == 0 {
		p.Projects = input.Projects
	}
	if len(p.Links) == 0 {
		p.Links = input.Links
	}

	if out.Warnings == nil {
		out.Warnings = []string{}
	}

	if p.Email != "" {
		email := strings.ToLower(p.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Dropped malformed email %q", p.Email))
			email = ""
		}
		p.Email = email
	}

	if p.Phone != "" {
		phone := NormalizePhone(p.Phone)
		if digits := strings.TrimPrefix(phone, "+"); len(digits) < 7 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Phone number %q looks incomplete", p.Phone))
		}
		p.Phone = phone
	}

	p.Skills = DedupeSkills(p.Skills)

	for key, value := range p.Links {
		if strings.TrimSpace(value) == "" {
			delete(p.Links, key)
		}
	}

	p.EnsureCollections()
	out.QualityScore = clampScore(out.QualityScore)
	return out
}

// ValidateInput checks that a profile carries enough to build a portfolio.
func ValidateInput(profile models.ResumeProfile) error {
	if strings.TrimSpace(profile.Name) == "" && strings.TrimSpace(profile.Email) == "" {
		return apperrors.ValidationField("name", "Resume must contain at least a name or an email address")
	}
	if len(profile.Skills) == 0 && len(profile.Projects) == 0 && len(profile.Experience) == 0 {
		return apperrors.ValidationField("skills", "Resume must contain at least one of skills, projects or experience")
	}
	return nil
}

// NormalizePhone keeps a leading plus and the digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DedupeSkills removes case-insensitive duplicates, keeping the first spelling.
func DedupeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func clampScore(score float64) float64 {
	return min(1, max(0, score))
}

func malformed(stage, response string, err error) error {
	e := apperrors.ContentGeneration(stage, fmt.Sprintf("Model returned malformed JSON in stage %s", stage), err)
	e.Details["response_excerpt"] = excerpt(response, 500)
	return e
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
