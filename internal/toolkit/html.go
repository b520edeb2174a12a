package toolkit

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UpdateHTMLHead sets the document title and upserts <meta name=...> tags.
// An empty title leaves the existing one alone.
func (c *CodeTools) UpdateHTMLHead(path, title string, meta map[string]string) (Result, error) {
	resolved, content, err := c.read(path)
	if err != nil {
		return Result{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		return Result{Message: fmt.Sprintf("No <head> element in %s", path)}, nil
	}

	changed := 0
	if title != "" {
		titleSel := head.Find("title").First()
		if titleSel.Length() == 0 {
			head.AppendHtml("<title></title>")
			titleSel = head.Find("title").First()
		}
		titleSel.SetText(title)
		changed++
	}

	names := make([]string, 0, len(meta))
	for name := range meta {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := meta[name]
		existing := head.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("name")
			return v == name
		})
		if existing.Length() > 0 {
			existing.SetAttr("content", value)
		} else {
			head.AppendHtml(fmt.Sprintf(`<meta name="%s" content="%s"/>`, html.EscapeString(name), html.EscapeString(value)))
		}
		changed++
	}

	if changed == 0 {
		return Result{Message: "Nothing to update"}, nil
	}

	rendered, err := doc.Html()
	if err != nil {
		return Result{}, fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(rendered), 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return Result{Matches: changed, Message: fmt.Sprintf("Updated %d head element(s) in %s", changed, path)}, nil
}
