package toolkit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `{
  "templates": [
    {"id": "one_temp", "name": "Developer Dark", "framework": "nextjs", "type": "developer", "features": ["dark_mode", "animations", "contact_form"]},
    {"id": "three_temp", "name": "Minimal", "framework": "html", "type": "minimal", "features": ["dark_mode"]},
    {"id": "six_temp", "name": "Designer", "framework": "nextjs", "type": "creative", "features": ["animations", "blog_section"]}
  ],
  "selectionCriteria": {
    "byRole": {
      "developer": ["one_temp", "three_temp"],
      "designer": ["six_temp"]
    },
    "default": "three_temp"
  }
}`

func newTestRegistry(t *testing.T) (*TemplateRegistry, string) {
	t.Helper()
	dir := t.TempDir()
	writeTemp(t, dir, "registry.json", testRegistry)
	writeTemp(t, dir, "one_temp/assets/lib/data.tsx", "export const data = {}\n")
	writeTemp(t, dir, "three_temp/config.js", "module.exports = {}\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "six_temp"), 0755))

	reg, err := LoadTemplateRegistry(dir)
	require.NoError(t, err)
	return reg, dir
}

func TestRegistry_FindTemplatesByRole(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		role string
		want []string
		key  string
	}{
		{"Senior Software Developer", []string{"one_temp", "three_temp"}, "developer"},
		{"Designer", []string{"six_temp"}, "designer"},
		{"dev", []string{"one_temp", "three_temp"}, "developer"},
		{"Chef", []string{}, "Chef"},
		{"", []string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			match := reg.FindTemplatesByRole(tt.role)
			assert.Equal(t, tt.want, match.RecommendedTemplates)
			assert.Equal(t, tt.key, match.Role)
			if len(tt.want) == 0 {
				assert.Equal(t, "No specific recommendations, using fallback", match.Message)
			}
		})
	}
}

func TestRegistry_TemplatesForSkill(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.Equal(t, []string{"six_temp"}, reg.TemplatesForSkill(" DESIGNER "))
	assert.Empty(t, reg.TemplatesForSkill("dev"))
	assert.Empty(t, reg.TemplatesForSkill("R"))
	assert.Empty(t, reg.TemplatesForSkill(""))
}

func TestRegistry_FindTemplatesByFeatures(t *testing.T) {
	reg, _ := newTestRegistry(t)

	matches := reg.FindTemplatesByFeatures([]string{"dark_mode"})
	ids := []string{}
	for _, m := range matches {
		ids = append(ids, m.ID)
		assert.Equal(t, 1, m.MatchScore)
	}
	assert.Equal(t, []string{"one_temp", "three_temp"}, ids)

	assert.Empty(t, reg.FindTemplatesByFeatures([]string{"dark_mode", "blog_section"}))
	assert.Len(t, reg.FindTemplatesByFeatures(nil), 3)
}

func TestRegistry_DataFile(t *testing.T) {
	reg, dir := newTestRegistry(t)

	path, err := reg.GetTemplateDataFile("one_temp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "one_temp", "assets", "lib", "data.tsx"), path)

	path, err = reg.GetTemplateDataFile("three_temp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "three_temp", "config.js"), path)

	_, err = reg.GetTemplateDataFile("six_temp")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "no data file found for template: six_temp", err.Error())

	_, err = reg.GetTemplateDataFile("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_GetTemplateAndDefault(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tpl, err := reg.GetTemplate("six_temp")
	require.NoError(t, err)
	assert.Equal(t, "Designer", tpl.Name)

	_, err = reg.GetTemplate("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "three_temp", reg.DefaultTemplate())
	assert.Len(t, reg.ListTemplates(), 3)
}

func TestRegistry_MissingFileIsEmpty(t *testing.T) {
	reg, err := LoadTemplateRegistry(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, reg.ListTemplates())
	assert.Equal(t, FallbackTemplate, reg.DefaultTemplate())
}
