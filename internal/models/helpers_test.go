package models

import (
	"encoding/json"
	"testing"
)

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain https", "https://github.com/acme/widget", "https://github.com/acme/widget"},
		{"git suffix", "https://github.com/acme/widget.git", "https://github.com/acme/widget"},
		{"trailing slash", "https://github.com/acme/widget/", "https://github.com/acme/widget"},
		{"suffix and slash", "https://github.com/acme/widget.git/", "https://github.com/acme/widget"},
		{"ssh", "git@github.com:acme/widget.git", "https://github.com/acme/widget"},
		{"host case", "HTTPS://GitHub.com/acme/widget", "https://github.com/acme/widget"},
		{"whitespace", "  https://github.com/acme/widget \n", "https://github.com/acme/widget"},
		{"local path", "/srv/git/widget.git", "/srv/git/widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRepoURL(tt.in); got != tt.want {
				t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRepoURL(t *testing.T) {
	ref, err := ParseRepoURL("git@github.com:acme/widget.git")
	if err != nil {
		t.Fatalf("ParseRepoURL() error = %v", err)
	}
	if ref.Host != "github.com" || ref.Owner != "acme" || ref.Name != "widget" {
		t.Errorf("ParseRepoURL() = %+v", ref)
	}
	if ref.FullName() != "acme/widget" {
		t.Errorf("FullName() = %q", ref.FullName())
	}

	for _, bad := range []string{"", "https://github.com/acme", "not a url", "https://github.com/"} {
		if _, err := ParseRepoURL(bad); err == nil {
			t.Errorf("ParseRepoURL(%q) expected error", bad)
		}
	}
}

func TestRepoName(t *testing.T) {
	if got := RepoName("git@github.com:acme/widget.git"); got != "acme/widget" {
		t.Errorf("RepoName() = %q, want acme/widget", got)
	}
	if got := RepoName("/srv/git/widget.git"); got != "/srv/git/widget" {
		t.Errorf("RepoName(local path) = %q, want the normalized path", got)
	}
}

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusInProgress, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusInProgress, JobStatusCompleted, true},
		{JobStatusInProgress, JobStatusFailed, true},
		{JobStatusInProgress, JobStatusPending, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusInProgress, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestProgress_PreservesOrder(t *testing.T) {
	p := NewProgress(ProgressStage, StageCloning)
	p.Set(ProgressCodeFiles, 12)
	p.Set(ProgressCommits, 3)
	p.Set(ProgressStage, StageCompleted)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"stage":"completed","code_files":12,"commits":3}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Progress
	if err := json.Unmarshal([]byte(`{"z":1,"a":"x"}`), &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	keys := back.Keys()
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want [z a]", keys)
	}
}

func TestIngestionJob_CloneIsIndependent(t *testing.T) {
	msg := "boom"
	job := IngestionJob{ID: "j1", ErrorMessage: &msg, Progress: NewProgress(ProgressStage, StageFailed)}

	cp := job.Clone()
	cp.Progress.Set(ProgressStage, StageCompleted)
	*cp.ErrorMessage = "changed"

	if job.Stage() != StageFailed {
		t.Errorf("original stage changed to %q", job.Stage())
	}
	if *job.ErrorMessage != "boom" {
		t.Errorf("original error message changed to %q", *job.ErrorMessage)
	}
}
