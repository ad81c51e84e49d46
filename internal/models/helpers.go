package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RepositoryRecord summarizes the most recent successful ingestion of a repository.
type RepositoryRecord struct {
	RepoURL       string    `json:"repo_url"`
	RepoName      string    `json:"repo_name"`
	IngestedAt    time.Time `json:"ingested_at"`
	DocumentCount int       `json:"document_count"`
	LastCommitSHA *string   `json:"last_commit_sha,omitempty"`
}

// RepoRef identifies a hosted repository.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// NormalizeRepoURL canonicalizes a repository URL for use as a registry key.
// Surrounding whitespace, trailing slashes and a ".git" suffix are removed,
// and scp-style SSH URLs (git@host:owner/repo) become https URLs.
// Unparseable input is returned trimmed.
func NormalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "git@") {
		if host, path, ok := strings.Cut(strings.TrimPrefix(s, "git@"), ":"); ok {
			s = "https://" + host + "/" + path
		}
	}
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.TrimRight(s, "/")

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// ParseRepoURL extracts host, owner and repository name from an https or
// scp-style SSH URL.
func ParseRepoURL(raw string) (RepoRef, error) {
	norm := NormalizeRepoURL(raw)
	u, err := url.Parse(norm)
	if err != nil || u.Host == "" {
		return RepoRef{}, fmt.Errorf("invalid repository URL: %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("invalid repository URL: %q", raw)
	}
	return RepoRef{Host: u.Host, Owner: parts[0], Name: parts[1]}, nil
}

// RepoName returns "owner/repo" for url, or the normalized URL when it
// cannot be parsed.
func RepoName(url string) string {
	ref, err := ParseRepoURL(url)
	if err != nil {
		return NormalizeRepoURL(url)
	}
	return ref.FullName()
}
