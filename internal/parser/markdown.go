package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	mentionRegex = regexp.MustCompile(`(?:^|[^\w/])@([a-zA-Z0-9][a-zA-Z0-9_-]*)`)
)

func isHeading(line string) bool {
	return headingRegex.MatchString(line)
}

// Frontmatter splits a leading YAML frontmatter block from content.
// Invalid YAML yields an empty map; the body is still returned.
func Frontmatter(content string) (map[string]any, string) {
	fm := make(map[string]any)
	if !strings.HasPrefix(content, "---\n") {
		return fm, content
	}
	endIdx := strings.Index(content[4:], "\n---")
	if endIdx <= 0 {
		return fm, content
	}
	if err := yaml.Unmarshal([]byte(content[4:4+endIdx]), &fm); err != nil {
		fm = make(map[string]any)
	}
	return fm, strings.TrimPrefix(content[4+endIdx+4:], "\n")
}

// MarkdownTitle returns the document title from frontmatter or the first h1.
func MarkdownTitle(content string) string {
	fm, body := Frontmatter(content)
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if name, ok := fm["name"].(string); ok && name != "" {
		return name
	}
	if match := h1Regex.FindStringSubmatch(body); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// HeadingPath returns the heading trail active at the given 1-based line,
// like "## Setup > ### Install". Headings on the line itself count.
func HeadingPath(content string, line int) string {
	var path []string
	var levels []int

	for i, l := range strings.Split(content, "\n") {
		if i+1 > line {
			break
		}
		match := headingRegex.FindStringSubmatch(l)
		if match == nil {
			continue
		}
		level := len(match[1])
		for len(levels) > 0 && levels[len(levels)-1] >= level {
			path = path[:len(path)-1]
			levels = levels[:len(levels)-1]
		}
		path = append(path, match[1]+" "+strings.TrimSpace(match[2]))
		levels = append(levels, level)
	}
	return strings.Join(path, " > ")
}

// ExtractMentions finds @mentions in content, lowercased and deduplicated.
// Email addresses are not mentions.
func ExtractMentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)

	mentions := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, match := range matches {
		mention := strings.ToLower(match[1])
		if !seen[mention] {
			mentions = append(mentions, mention)
			seen[mention] = true
		}
	}
	return mentions
}
