package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MLSAKIIT/Showcase/internal/models"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// ChunkText splits text on paragraph boundaries into chunks of at most
// maxChunkSize runes. Paragraphs longer than a chunk are split on sentences.
// Each new chunk starts with the last overlap runes of the previous one.
func ChunkText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var (
		chunks  []string
		current strings.Builder
	)

	add := func(piece, sep string) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(piece)+len(sep) > maxChunkSize {
			chunks = append(chunks, current.String())
			tail := lastRunes(current.String(), overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= maxChunkSize {
			add(para, "\n\n")
			continue
		}
		for _, sentence := range splitIntoSentences(para) {
			add(sentence, " ")
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitIntoSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func lastRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

// PortfolioText renders portfolio content as plain paragraphs for embedding.
func PortfolioText(content models.PortfolioContent) string {
	var b strings.Builder
	para := func(format string, args ...any) {
		line := strings.TrimSpace(fmt.Sprintf(format, args...))
		if line == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(line)
	}

	para("%s. %s", content.Hero.Name, content.Hero.Tagline)
	para("%s", content.Hero.BioShort)
	para("%s", content.BioLong)
	for _, project := range content.Projects {
		para("Project %s: %s Built with %s.", project.Title, project.Description, strings.Join(project.TechStack, ", "))
	}
	for _, group := range content.Skills {
		para("%s: %s", group.Category, strings.Join(group.Items, ", "))
	}
	return b.String()
}
