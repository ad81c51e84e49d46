package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extraction defaults applied when a request leaves a limit unset.
const (
	DefaultMaxCommits = 100
	DefaultMaxIssues  = 100
	DefaultMaxPRs     = 100
)

// IngestRequest describes what to ingest from one repository.
type IngestRequest struct {
	RepoURL        string `json:"repo_url"`
	IncludeCommits bool   `json:"include_commits"`
	IncludeIssues  bool   `json:"include_issues"`
	IncludePRs     bool   `json:"include_prs"`
	MaxCommits     int    `json:"max_commits"`
	MaxIssues      int    `json:"max_issues"`
	MaxPRs         int    `json:"max_prs"`
}

// NewIngestRequest returns a request for repoURL with every source enabled.
func NewIngestRequest(repoURL string) IngestRequest {
	return IngestRequest{
		RepoURL:        repoURL,
		IncludeCommits: true,
		IncludeIssues:  true,
		IncludePRs:     true,
		MaxCommits:     DefaultMaxCommits,
		MaxIssues:      DefaultMaxIssues,
		MaxPRs:         DefaultMaxPRs,
	}
}

// UnmarshalJSON decodes a request, keeping defaults for omitted fields.
func (r *IngestRequest) UnmarshalJSON(data []byte) error {
	type plain IngestRequest
	req := plain(NewIngestRequest(""))
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	*r = IngestRequest(req)
	return nil
}

// Normalize fills zero limits with defaults and canonicalizes the URL.
func (r IngestRequest) Normalize() IngestRequest {
	r.RepoURL = NormalizeRepoURL(r.RepoURL)
	if r.MaxCommits <= 0 {
		r.MaxCommits = DefaultMaxCommits
	}
	if r.MaxIssues <= 0 {
		r.MaxIssues = DefaultMaxIssues
	}
	if r.MaxPRs <= 0 {
		r.MaxPRs = DefaultMaxPRs
	}
	return r
}

// Validate reports whether the request names a usable repository.
func (r IngestRequest) Validate() error {
	if strings.TrimSpace(r.RepoURL) == "" {
		return fmt.Errorf("repo_url is required")
	}
	if _, err := ParseRepoURL(r.RepoURL); err != nil {
		return err
	}
	return nil
}
