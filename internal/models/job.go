// Package models defines data structures for repository ingestion.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether s may move to next.
// Status only moves forward: PENDING -> IN_PROGRESS -> COMPLETED | FAILED.
// A pending job may also fail directly (pool rejection, cancellation before start).
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusInProgress || next == JobStatusFailed
	case JobStatusInProgress:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Stage labels are progress annotations, never job states.
const (
	StageInitializing        = "initializing"
	StageCloning             = "cloning"
	StageExtractingCode      = "extracting_code"
	StageExtractingCommits   = "extracting_commits"
	StageExtractingIssues    = "extracting_issues"
	StageExtractingPRs       = "extracting_prs"
	StageProcessingDocuments = "processing_documents"
	StageUploading           = "uploading"
	StageSyncingIndex        = "syncing_index"
	StageCleaningUp          = "cleaning_up"
	StageCompleted           = "completed"
	StageFailed              = "failed"
)

// Progress keys.
const (
	ProgressStage              = "stage"
	ProgressError              = "error"
	ProgressCodeFiles          = "code_files"
	ProgressCommits            = "commits"
	ProgressIssues             = "issues"
	ProgressPullRequests       = "pull_requests"
	ProgressTotalDocuments     = "total_documents"
	ProgressFormattingFailures = "formatting_failures"
	ProgressSyncJobID          = "sync_job_id"
)

// IngestionJob is one asynchronous ingestion of a repository.
type IngestionJob struct {
	ID                 string     `json:"job_id"`
	Status             JobStatus  `json:"status"`
	RepoURL            string     `json:"repo_url"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	DocumentsProcessed int        `json:"documents_processed"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	Progress           Progress   `json:"progress"`
}

// Clone returns a deep copy safe to hand out to readers.
func (j IngestionJob) Clone() IngestionJob {
	out := j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.ErrorMessage != nil {
		m := *j.ErrorMessage
		out.ErrorMessage = &m
	}
	out.Progress = j.Progress.Clone()
	return out
}

// Stage returns the current stage annotation, if any.
func (j IngestionJob) Stage() string {
	s, _ := j.Progress.Get(ProgressStage).(string)
	return s
}

// Progress is an insertion-ordered string-keyed map.
// It encodes as a JSON object with keys in insertion order.
type Progress struct {
	keys   []string
	values map[string]any
}

// NewProgress builds a Progress from alternating key/value pairs.
func NewProgress(kv ...any) Progress {
	var p Progress
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		p.Set(k, kv[i+1])
	}
	return p
}

// Set stores v under k, keeping the original position of an existing key.
func (p *Progress) Set(k string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[k]; !ok {
		p.keys = append(p.keys, k)
	}
	p.values[k] = v
}

// Get returns the value for k or nil.
func (p Progress) Get(k string) any {
	return p.values[k]
}

// Keys returns the keys in insertion order.
func (p Progress) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of entries.
func (p Progress) Len() int {
	return len(p.keys)
}

// Clone returns an independent copy.
func (p Progress) Clone() Progress {
	out := Progress{keys: append([]string(nil), p.keys...)}
	if p.values != nil {
		out.values = make(map[string]any, len(p.values))
		for k, v := range p.values {
			out.values[k] = v
		}
	}
	return out
}

// Map returns the entries as a plain map.
func (p Progress) Map() map[string]any {
	m := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		m[k] = p.values[k]
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (p Progress) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("progress %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving key order.
func (p *Progress) UnmarshalJSON(data []byte) error {
	*p = Progress{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("progress: expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		k, ok := tok.(string)
		if !ok {
			return fmt.Errorf("progress: expected string key")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("progress %q: %w", k, err)
		}
		p.Set(k, v)
	}
	_, err = dec.Token()
	return err
}
