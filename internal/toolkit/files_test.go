package toolkit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTemplate_ReplacesExistingCopy(t *testing.T) {
	base := t.TempDir()
	templates := filepath.Join(base, "templates")
	output := filepath.Join(base, "output")
	writeTemp(t, templates, "one_temp/index.html", "<html></html>")
	writeTemp(t, templates, "one_temp/css/styles.css", ":root { --primary: #3B82F6; }")

	tools, err := NewFileTools(base, templates, output)
	require.NoError(t, err)

	dest, err := tools.CopyTemplate("one_temp", "job-1/one_temp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(output, "job-1", "one_temp"), dest)

	writeTemp(t, dest, "stale.txt", "left over")

	_, err = tools.CopyTemplate("one_temp", "job-1/one_temp")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dest, "css", "styles.css"))
	assert.NoFileExists(t, filepath.Join(dest, "stale.txt"))
}

func TestCopyTemplate_Unknown(t *testing.T) {
	base := t.TempDir()
	tools, err := NewFileTools(base, filepath.Join(base, "templates"), filepath.Join(base, "output"))
	require.NoError(t, err)

	_, err = tools.CopyTemplate("ghost", "")
	require.Error(t, err)
	assert.Equal(t, "template not found: ghost", err.Error())

	_, err = tools.CopyTemplate("../etc", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileTools_ReadWriteList(t *testing.T) {
	base := t.TempDir()
	output := filepath.Join(base, "output")
	tools, err := NewFileTools(base, filepath.Join(base, "templates"), output)
	require.NoError(t, err)

	written, err := tools.WriteFile("site/index.html", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(output, "site", "index.html"), written)

	content, err := tools.ReadFile("output/site/index.html")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.True(t, tools.FileExists("output/site/index.html"))

	entries, err := tools.ListDirectory("output")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "site", entries[0].Name)
	assert.Equal(t, "directory", entries[0].Type)
	assert.Nil(t, entries[0].Size)

	_, err = tools.ReadFile("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tools.WriteFile("../../escape.txt", "x")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}
