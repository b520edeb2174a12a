// Package toolkit holds the file, code and template primitives the
// customization pipeline uses to edit copies of portfolio templates.
package toolkit

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size *int64 `json:"size"`
}

// FileTools reads from BaseDir, copies templates out of TemplatesDir and
// writes under OutputDir. Absolute paths are used as given.
type FileTools struct {
	BaseDir      string
	TemplatesDir string
	OutputDir    string
}

func NewFileTools(baseDir, templatesDir, outputDir string) (*FileTools, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileTools{BaseDir: baseDir, TemplatesDir: templatesDir, OutputDir: outputDir}, nil
}

func (f *FileTools) ReadFile(path string) (string, error) {
	resolved, err := resolve(f.BaseDir, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound("file", path)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// WriteFile writes content, creating parent directories as needed.
func (f *FileTools) WriteFile(path, content string) (string, error) {
	resolved, err := resolve(f.OutputDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return resolved, nil
}

func (f *FileTools) ListDirectory(path string) ([]DirEntry, error) {
	dir := f.BaseDir
	if path != "" {
		var err error
		if dir, err = resolve(f.BaseDir, path); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("directory", path)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	items := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		item := DirEntry{Name: entry.Name(), Type: "file"}
		if entry.IsDir() {
			item.Type = "directory"
		} else if fi, err := entry.Info(); err == nil {
			size := fi.Size()
			item.Size = &size
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *FileTools) FileExists(path string) bool {
	resolved, err := resolve(f.BaseDir, path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (f *FileTools) CreateDirectory(path string) (string, error) {
	resolved, err := resolve(f.OutputDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resolved, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	return resolved, nil
}

// CopyTemplate copies templates/<templateID> to output/<outputName>,
// replacing any previous copy. outputName defaults to the template id.
func (f *FileTools) CopyTemplate(templateID, outputName string) (string, error) {
	if templateID == "" || strings.ContainsAny(templateID, `/\`) || templateID == ".." {
		return "", notFound("template", templateID)
	}
	source := filepath.Join(f.TemplatesDir, templateID)
	if info, err := os.Stat(source); err != nil || !info.IsDir() {
		return "", notFound("template", templateID)
	}

	if outputName == "" {
		outputName = templateID
	}
	dest, err := resolve(f.OutputDir, outputName)
	if err != nil {
		return "", err
	}

	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to remove previous copy: %w", err)
	}
	if err := copyTree(source, dest); err != nil {
		return "", fmt.Errorf("failed to copy template: %w", err)
	}
	return dest, nil
}

// FindFiles returns files under root whose names match any of the glob
// patterns, sorted. Hidden directories and node_modules are skipped.
func FindFiles(root string, patterns ...string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				found = append(found, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}

// resolve joins a relative path onto root and rejects results outside it.
func resolve(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	joined := filepath.Join(root, path)
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return joined, nil
}
