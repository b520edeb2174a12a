package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/models"
)

const (
	ExportJSON        = "json"
	ExportYAML        = "yaml"
	ExportHTMLPreview = "html_preview"
)

var ExportFormats = []string{ExportJSON, ExportYAML, ExportHTMLPreview}

// Export is a rendered portfolio ready to be sent to a client.
type Export struct {
	Format      string
	ContentType string
	Filename    string
	Body        []byte
}

var previewTemplate = template.Must(template.New("preview").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Hero.Name}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:760px;margin:2rem auto;padding:0 1rem;color:#1f2937}
h1{color:{{.Color}}}
.tag{display:inline-block;margin:0 .25rem .25rem 0;padding:.1rem .5rem;border-radius:.25rem;background:#f3f4f6}
</style>
</head>
<body>
<h1>{{.Hero.Name}}</h1>
<p><strong>{{.Hero.Tagline}}</strong></p>
{{if .BioLong}}<p>{{.BioLong}}</p>{{end}}
{{if .Projects}}<h2>Projects</h2>
{{range .Projects}}<section>
<h3>{{.Title}}{{if .Featured}} ★{{end}}</h3>
<p>{{.Description}}</p>
<p>{{range .TechStack}}<span class="tag">{{.}}</span>{{end}}</p>
</section>
{{end}}{{end}}
{{if .Skills}}<h2>Skills</h2>
{{range .Skills}}<p><strong>{{.Category}}:</strong> {{join .Items ", "}}</p>
{{end}}{{end}}
</body>
</html>
`))

// ExportPortfolio renders content in one of ExportFormats. The format is
// checked before anything is rendered.
func ExportPortfolio(content models.PortfolioContent, format string) (*Export, error) {
	format, err := CheckExportFormat(format)
	if err != nil {
		return nil, err
	}

	content.Normalize()
	name := exportBaseName(content.Hero.Name)

	switch format {
	case ExportYAML:
		body, err := yaml.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal yaml: %w", err)
		}
		return &Export{Format: format, ContentType: "application/yaml", Filename: name + ".yaml", Body: body}, nil

	case ExportHTMLPreview:
		color := content.Theme.PrimaryColor
		if !hexColor.MatchString(color) {
			color = models.DefaultColorScheme().Primary
		}
		var buf bytes.Buffer
		err := previewTemplate.Execute(&buf, struct {
			models.PortfolioContent
			Color template.CSS
		}{content, template.CSS(color)})
		if err != nil {
			return nil, fmt.Errorf("failed to render preview: %w", err)
		}
		return &Export{Format: format, ContentType: "text/html; charset=utf-8", Filename: name + ".html", Body: buf.Bytes()}, nil

	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(content); err != nil {
			return nil, fmt.Errorf("failed to marshal json: %w", err)
		}
		return &Export{Format: format, ContentType: "application/json", Filename: name + ".json", Body: buf.Bytes()}, nil
	}
}

// CheckExportFormat normalizes format and rejects anything outside
// ExportFormats. An empty format means json.
func CheckExportFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return ExportJSON, nil
	}
	if !slices.Contains(ExportFormats, format) {
		return "", apperrors.ValidationField("format",
			fmt.Sprintf("Unsupported export format: %s. Allowed: %s", format, strings.Join(ExportFormats, ", ")))
	}
	return format, nil
}

func exportBaseName(name string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	if slug == "" {
		return "portfolio"
	}
	return slug + "-portfolio"
}
