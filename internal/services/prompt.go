package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MLSAKIIT/Showcase/internal/models"
)

// OCRPrompt is sent together with the uploaded document.
const OCRPrompt = "Extract all text from this resume. Maintain hierarchy using Markdown."

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildStructuringPrompt turns raw resume text into the ResumeProfile shape.
func (pb *PromptBuilder) BuildStructuringPrompt(rawText string) string {
	return fmt.Sprintf(`You are a resume parsing expert. Convert the raw resume text below into structured JSON.

Return ONLY a JSON object with exactly these fields:
{
  "name": "Full name",
  "email": "Email address",
  "phone": "Phone number",
  "location": "City, Country",
  "title": "Current or desired job title",
  "summary": "Professional summary or objective",
  "skills": ["skill1", "skill2"],
  "experience": [
    {"company": "", "role": "", "start_date": "", "end_date": "", "description": "", "highlights": [""]}
  ],
  "education": [
    {"institution": "", "degree": "", "field": "", "start_date": "", "end_date": ""}
  ],
  "projects": [
    {"name": "", "description": "", "tech_stack": [""], "link": ""}
  ],
  "links": {"linkedin": "", "github": "", "portfolio": ""}
}

RULES:
- Copy facts exactly as written. Never invent companies, dates, metrics or links.
- Use null for missing single values and [] or {} for missing collections.
- Keep the original language of the resume.

RAW RESUME TEXT:
%s`, rawText)
}

// BuildValidationPrompt asks for a cleaned profile plus quality metrics.
func (pb *PromptBuilder) BuildValidationPrompt(profile models.ResumeProfile) string {
	return fmt.Sprintf(`You are a data quality specialist validating parsed resume data.

Validation steps:
1. Check that required fields exist (name, and at least some skills or experience)
2. Normalize the email format
3. Clean and format the phone number
4. Remove duplicates from the skills list
5. Standardize date formats to YYYY-MM or "Present"
6. Flag suspicious or incomplete data

Return ONLY a JSON object with every field of the input profile (same keys, cleaned values) plus:
  "quality_score": number between 0.0 and 1.0,
  "warnings": ["issue 1", "issue 2"]

Do not add information that is not in the input.

PROFILE:
%s`, toJSON(profile))
}

// BuildContentPrompt asks for the full portfolio content contract.
func (pb *PromptBuilder) BuildContentPrompt(profile models.ValidatedProfile, prefs models.Preferences) string {
	return fmt.Sprintf(`You are an AI portfolio content generator. Convert the user profile into polished portfolio content.

STRICT RULES:
- Output ONLY valid JSON. No markdown, no explanations.
- Do NOT invent experience, metrics, employers, projects or facts.
- When the profile lacks the data for a field, emit an empty string, an empty list or null.

TARGET OUTPUT FORMAT:
%s

USER PREFERENCES:
%s

USER PROFILE (facts only):
%s

CONTENT GUIDELINES:
- Professional, confident, human. Action-oriented language.
- No clichés ("passionate", "innovative", etc.).
- Mark the two strongest projects as featured.
- Group skills into a few meaningful categories.

Generate the JSON now.`, contentFormat, describePreferences(prefs), toJSON(profile))
}

// BuildSectionPrompt regenerates one section of existing content.
func (pb *PromptBuilder) BuildSectionPrompt(section string, current models.PortfolioContent, prefs models.Preferences) string {
	return fmt.Sprintf(`You are an AI portfolio content editor. Rewrite ONLY the "%s" section of the portfolio below.

STRICT RULES:
- Output ONLY a JSON object of the form {"%s": <new value>}.
- Keep the same structure the section has in this format:
%s
- Use only facts already present in the portfolio. Do not invent anything.

USER PREFERENCES:
%s

CURRENT PORTFOLIO:
%s`, section, section, contentFormat, describePreferences(prefs), toJSON(current))
}

// BuildEditPlanPrompt asks the model to turn instructions into file edits.
func (pb *PromptBuilder) BuildEditPlanPrompt(instructions string, files []string, content *models.PortfolioContent) string {
	portfolio := "none"
	if content != nil {
		portfolio = toJSON(content)
	}
	return fmt.Sprintf(`You are a front-end developer customizing a portfolio website template.
Translate the user's request into a list of precise text edits.

Return ONLY a JSON object:
{
  "reply": "one or two sentences telling the user what you changed",
  "edits": [
    {
      "op": "find_replace | replace_regex | insert_after | insert_before | update_json | append | css_variable | tailwind_colors",
      "file": "path relative to the template root",
      "find": "exact text or regex (find_replace, replace_regex)",
      "replace": "replacement text",
      "anchor": "partial line to insert next to (insert_after, insert_before)",
      "code": "code to insert or append",
      "name": "css variable name (css_variable)",
      "value": "new value (css_variable)",
      "updates": {"dot.path": "value"},
      "colors": {"primary": "#RRGGBB"}
    }
  ]
}

RULES:
- Only touch files from the list below.
- Prefer small, targeted edits. Never rewrite a whole file.
- If the request cannot be done with these operations, return no edits and explain why in "reply".

TEMPLATE FILES:
%s

PORTFOLIO CONTENT:
%s

USER REQUEST:
%s`, strings.Join(files, "\n"), portfolio, instructions)
}

// ChatSystemPrompt frames the free-form chat assistant.
const ChatSystemPrompt = `You are Showcase AI, an assistant that helps people turn their resume into a portfolio website.
Answer questions about portfolio content, design and deployment. Keep answers short and practical.
Never invent facts about the user.`

const contentFormat = `{
  "hero": {"name": string, "tagline": string (max 100 chars), "bio_short": string, "avatar_url": null},
  "bio_long": string,
  "projects": [{"title": string, "description": string, "tech_stack": [string], "featured": boolean, "link": string or null}],
  "skills": [{"category": string, "items": [string]}],
  "theme": {"primary_color": "#RRGGBB", "style": "modern_tech" | "minimalist" | "creative"},
  "quality_score": number between 0 and 1
}`

func describePreferences(prefs models.Preferences) string {
	if prefs.IsZero() {
		return "none"
	}
	return toJSON(prefs)
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// extractJSON tries to extract JSON from text that might contain markdown or other formatting
func extractJSON(text string) string {
	// Remove markdown code blocks
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	// Find JSON object or array boundaries
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	if startObj != -1 && endObj > startObj && (startArr == -1 || startObj < startArr) {
		return text[startObj : endObj+1]
	}
	if startArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}

	return strings.TrimSpace(text)
}

// parseJSONResponse decodes a model answer into target.
func parseJSONResponse(response string, target any) error {
	jsonStr := extractJSON(response)

	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
