package models

import (
	"encoding/json"
	"testing"
)

func TestIngestRequest_UnmarshalKeepsDefaults(t *testing.T) {
	var req IngestRequest
	if err := json.Unmarshal([]byte(`{"repo_url":"https://github.com/acme/widget","include_issues":false,"max_commits":5}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := IngestRequest{
		RepoURL:        "https://github.com/acme/widget",
		IncludeCommits: true,
		IncludeIssues:  false,
		IncludePRs:     true,
		MaxCommits:     5,
		MaxIssues:      DefaultMaxIssues,
		MaxPRs:         DefaultMaxPRs,
	}
	if req != want {
		t.Errorf("Unmarshal() = %+v, want %+v", req, want)
	}
}

func TestIngestRequest_Normalize(t *testing.T) {
	req := IngestRequest{RepoURL: "git@github.com:acme/widget.git", MaxCommits: -1, MaxIssues: 7}.Normalize()

	if req.RepoURL != "https://github.com/acme/widget" {
		t.Errorf("RepoURL = %q", req.RepoURL)
	}
	if req.MaxCommits != DefaultMaxCommits || req.MaxIssues != 7 || req.MaxPRs != DefaultMaxPRs {
		t.Errorf("limits = %d/%d/%d", req.MaxCommits, req.MaxIssues, req.MaxPRs)
	}
}

func TestIngestRequest_Validate(t *testing.T) {
	if err := NewIngestRequest("https://github.com/acme/widget").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	for _, bad := range []string{"", "   ", "https://github.com/acme"} {
		if err := NewIngestRequest(bad).Validate(); err == nil {
			t.Errorf("Validate(%q) expected error", bad)
		}
	}
}
