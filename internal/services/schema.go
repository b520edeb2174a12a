package services

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
)

//go:embed schemas/portfolio_content.schema.json
var contentSchemaJSON []byte

// ContentValidator checks generated content against the portfolio content
// schema. The check is structural only.
type ContentValidator struct {
	schema *gojsonschema.Schema
}

func NewContentValidator() (*ContentValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(contentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to load content schema: %w", err)
	}
	return &ContentValidator{schema: schema}, nil
}

// Validate returns a SchemaError carrying the payload and every violation.
func (v *ContentValidator) Validate(stage string, content *models.PortfolioContent) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}
	return v.ValidateRaw(stage, raw)
}

func (v *ContentValidator) ValidateRaw(stage string, raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return apperrors.ContentGeneration(stage, "Generated content is not valid JSON", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		violations = append(violations, fmt.Sprintf("%s: %s", field, desc.Description()))
	}

	var payload any
	_ = json.Unmarshal(raw, &payload)
	return apperrors.Schema(stage, "Generated content does not match the portfolio schema", payload, violations)
}
