package toolkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Result reports what an edit did. Matches is zero for no-ops, in which case
// the file was not rewritten.
type Result struct {
	Matches int    `json:"matches"`
	Message string `json:"message"`
}

// CodeTools performs text-level edits. Relative paths resolve against BaseDir.
type CodeTools struct {
	BaseDir string
}

func NewCodeTools(baseDir string) *CodeTools {
	return &CodeTools{BaseDir: baseDir}
}

func (c *CodeTools) read(path string) (string, string, error) {
	resolved, err := resolve(c.BaseDir, path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", notFound("file", path)
		}
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return resolved, string(data), nil
}

func write(resolved, content string) error {
	info, err := os.Stat(resolved)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(resolved, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", resolved, err)
	}
	return nil
}

// FindAndReplace replaces literal occurrences of find. A count of -1
// replaces all of them.
func (c *CodeTools) FindAndReplace(path, find, replace string, count int) (Result, error) {
	if find == "" {
		return Result{}, fmt.Errorf("find text must not be empty")
	}
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	occurrences := strings.Count(content, find)
	if count >= 0 {
		occurrences = min(occurrences, count)
	}
	updated := strings.Replace(content, find, replace, count)

	if updated == content {
		return Result{Message: fmt.Sprintf("No matches found for: %s...", truncate(find, 50))}, nil
	}
	if err := write(resolved, updated); err != nil {
		return Result{}, err
	}
	return Result{Matches: occurrences, Message: fmt.Sprintf("Replaced %d occurrence(s) in %s", occurrences, path)}, nil
}

// UpdateCSSVariable sets every declaration of a custom property. The file is
// left untouched when the property is not declared.
func (c *CodeTools) UpdateCSSVariable(path, name, value string) (Result, error) {
	if !strings.HasPrefix(name, "--") {
		name = "--" + name
	}
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	pattern := regexp.MustCompile(`(` + regexp.QuoteMeta(name) + `\s*:\s*)([^;]+)(;)`)
	matches := len(pattern.FindAllStringIndex(content, -1))
	if matches == 0 {
		return Result{Message: fmt.Sprintf("CSS variable not found: %s", name)}, nil
	}

	updated := pattern.ReplaceAllString(content, "${1}"+escapeReplacement(value)+"${3}")
	if err := write(resolved, updated); err != nil {
		return Result{}, err
	}
	return Result{Matches: matches, Message: fmt.Sprintf("Updated %s to %s", name, value)}, nil
}

// UpdateJSONFile sets keys addressed with dot paths ("hero.name"), creating
// intermediate objects. The file is rewritten with two-space indentation.
func (c *CodeTools) UpdateJSONFile(path string, updates map[string]any) (Result, error) {
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return Result{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}

	for key, value := range updates {
		setNested(data, strings.Split(key, "."), value)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return Result{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := write(resolved, strings.TrimSuffix(buf.String(), "\n")); err != nil {
		return Result{}, err
	}
	return Result{Matches: len(updates), Message: fmt.Sprintf("Updated %d key(s) in %s", len(updates), path)}, nil
}

func setNested(data map[string]any, keys []string, value any) {
	for _, key := range keys[:len(keys)-1] {
		next, ok := data[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			data[key] = next
		}
		data = next
	}
	data[keys[len(keys)-1]] = value
}

// InsertCodeAfter inserts code after the first line containing anchor,
// indented like that line.
func (c *CodeTools) InsertCodeAfter(path, anchor, code string) (Result, error) {
	return c.insert(path, anchor, code, true)
}

// InsertCodeBefore inserts code before the first line containing anchor,
// indented like that line.
func (c *CodeTools) InsertCodeBefore(path, anchor, code string) (Result, error) {
	return c.insert(path, anchor, code, false)
}

func (c *CodeTools) insert(path, anchor, code string, after bool) (Result, error) {
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		if !strings.Contains(line, anchor) {
			continue
		}

		block := indentBlock(code, leadingWhitespace(line)) + "\n"
		at, where := i, "before"
		if after {
			at, where = i+1, "after"
			if !strings.HasSuffix(line, "\n") {
				lines[i] = line + "\n"
			}
		}

		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:at]...)
		out = append(out, block)
		out = append(out, lines[at:]...)

		if err := write(resolved, strings.Join(out, "")); err != nil {
			return Result{}, err
		}
		return Result{Matches: 1, Message: fmt.Sprintf("Inserted code %s line %d", where, i+1)}, nil
	}

	return Result{Message: fmt.Sprintf("Line not found: %s...", truncate(anchor, 50))}, nil
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func indentBlock(code, indent string) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}

// UpdateTailwindColors rewrites quoted color values of the named keys in a
// Tailwind config. Keys may be quoted or bare.
func (c *CodeTools) UpdateTailwindColors(path string, colors map[string]string) (Result, error) {
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	total := 0
	for name, value := range colors {
		pattern := regexp.MustCompile(`(['"]?` + regexp.QuoteMeta(name) + `['"]?\s*:\s*)['"][^'"]+['"]`)
		total += len(pattern.FindAllStringIndex(content, -1))
		content = pattern.ReplaceAllString(content, `${1}"`+escapeReplacement(value)+`"`)
	}

	if total == 0 {
		return Result{Message: "No Tailwind colors matched"}, nil
	}
	if err := write(resolved, content); err != nil {
		return Result{}, err
	}
	return Result{Matches: total, Message: fmt.Sprintf("Updated %d color(s) in Tailwind config", len(colors))}, nil
}

// ReplaceInFile replaces a literal string or, when isRegex is set, every
// match of a regular expression. Regex replacements may use ${1} groups.
func (c *CodeTools) ReplaceInFile(path, pattern, replacement string, isRegex bool) (Result, error) {
	if pattern == "" {
		return Result{}, fmt.Errorf("pattern must not be empty")
	}
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	var updated string
	var count int
	if isRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Result{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		count = len(re.FindAllStringIndex(content, -1))
		updated = re.ReplaceAllString(content, replacement)
	} else {
		count = strings.Count(content, pattern)
		updated = strings.ReplaceAll(content, pattern, replacement)
	}

	if updated == content {
		return Result{Message: "No matches found"}, nil
	}
	if err := write(resolved, updated); err != nil {
		return Result{}, err
	}
	return Result{Matches: count, Message: fmt.Sprintf("Replaced %d occurrence(s)", count)}, nil
}

// AppendToFile appends content, creating the file if needed.
func (c *CodeTools) AppendToFile(path, content string) (Result, error) {
	resolved, err := resolve(c.BaseDir, path)
	if err != nil {
		return Result{}, err
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return Result{}, fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return Result{Matches: 1, Message: fmt.Sprintf("Appended content to %s", path)}, nil
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
