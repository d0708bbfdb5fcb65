// Package parser prepares policy documents for indexing.
package parser

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// PolicyDoc represents a parsed policy document.
type PolicyDoc struct {
	// Source identifies the document in retrieval results.
	Source string

	// Title from frontmatter, first h1, or file name
	Title string

	// Main content (after frontmatter)
	Content string

	// Structured content by heading
	Sections []Section

	Frontmatter map[string]any
}

// Section represents a heading and its content.
type Section struct {
	Level   int    // 1-6 for h1-h6
	Heading string // The heading text
	Path    string // Full path like "## Limits > ### Capital spend"
	Content string // Content under this heading
}

// ParsePolicy parses a policy text. Markdown frontmatter may override the
// source and title; path is the fallback source.
func ParsePolicy(path, content string) *PolicyDoc {
	doc := &PolicyDoc{
		Source:      path,
		Frontmatter: make(map[string]any),
	}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx > 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				// Ignore YAML errors, just use empty frontmatter
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = strings.TrimSpace(remaining)
	if src := doc.frontmatterString("source"); src != "" {
		doc.Source = src
	}
	doc.Title = extractTitle(doc.Frontmatter, doc.Content, path)
	doc.Sections = parseSections(doc.Content)

	return doc
}

func (d *PolicyDoc) frontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// extractTitle gets title from frontmatter, first h1, or the file name.
func extractTitle(fm map[string]any, content, path string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// parseSections extracts sections from Markdown content.
// Text before the first heading becomes a section with an empty path.
func parseSections(content string) []Section {
	var sections []Section

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentPath []string
	var currentLevels []int

	current := &Section{}
	var contentBuilder strings.Builder

	flush := func() {
		current.Content = strings.TrimSpace(contentBuilder.String())
		if current.Content != "" {
			sections = append(sections, *current)
		}
		contentBuilder.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		match := headingRegex.FindStringSubmatch(line)
		if match == nil {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
			continue
		}

		flush()

		level := len(match[1])
		heading := strings.TrimSpace(match[2])

		// Update path based on heading level
		for len(currentLevels) > 0 && currentLevels[len(currentLevels)-1] >= level {
			currentPath = currentPath[:len(currentPath)-1]
			currentLevels = currentLevels[:len(currentLevels)-1]
		}
		currentPath = append(currentPath, match[1]+" "+heading)
		currentLevels = append(currentLevels, level)

		current = &Section{
			Level:   level,
			Heading: heading,
			Path:    strings.Join(currentPath, " > "),
		}
		// Keep the heading text so threshold sentences stay in context.
		contentBuilder.WriteString(line)
		contentBuilder.WriteString("\n")
	}

	flush()

	return sections
}
