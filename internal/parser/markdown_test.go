package parser

import (
	"slices"
	"testing"
)

func TestFrontmatter(t *testing.T) {
	content := "---\ntitle: Guide\ntags: [a, b]\n---\n# Heading\n\nBody."
	fm, body := Frontmatter(content)

	if fm["title"] != "Guide" {
		t.Errorf("title = %v, want Guide", fm["title"])
	}
	if body != "# Heading\n\nBody." {
		t.Errorf("body = %q", body)
	}

	fm, body = Frontmatter("no frontmatter")
	if len(fm) != 0 || body != "no frontmatter" {
		t.Errorf("unexpected split: %v %q", fm, body)
	}

	fm, _ = Frontmatter("---\n: [broken\n---\ntext")
	if len(fm) != 0 {
		t.Errorf("invalid yaml should give empty map, got %v", fm)
	}
}

func TestMarkdownTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"frontmatter title", "---\ntitle: From FM\n---\n# H1", "From FM"},
		{"frontmatter name", "---\nname: Named\n---\ntext", "Named"},
		{"first h1", "intro\n# Real Title\n## Sub", "Real Title"},
		{"none", "## only h2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownTitle(tt.content); got != tt.want {
				t.Errorf("MarkdownTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadingPath(t *testing.T) {
	content := "# Guide\n\n## Setup\n\n### Install\n\ntext\n\n## Usage\n\nmore"

	tests := []struct {
		line int
		want string
	}{
		{1, "# Guide"},
		{2, "# Guide"},
		{4, "# Guide > ## Setup"},
		{7, "# Guide > ## Setup > ### Install"},
		{9, "# Guide > ## Usage"},
		{11, "# Guide > ## Usage"},
	}
	for _, tt := range tests {
		if got := HeadingPath(content, tt.line); got != tt.want {
			t.Errorf("HeadingPath(line %d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestExtractMentions(t *testing.T) {
	got := ExtractMentions("cc @Alice and @bob-2, mail me at dev@example.com; thanks @alice")
	want := []string{"alice", "bob-2"}
	if !slices.Equal(got, want) {
		t.Errorf("ExtractMentions() = %v, want %v", got, want)
	}
}
