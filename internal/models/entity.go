package models

import "time"

// Entity is a raw artifact extracted from a repository before formatting.
// The set of variants is closed: CodeFile, Commit, Issue and PullRequest.
type Entity interface {
	// Kind names the variant for logging and counters.
	Kind() DocumentType
	entity()
}

// CodeFile is one source file read from a working copy.
type CodeFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
}

// Commit is one commit with its rendered diff.
type Commit struct {
	SHA         string    `json:"sha"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email,omitempty"`
	Date        time.Time `json:"date"`
	Message     string    `json:"message"`
	Diff        string    `json:"diff"`
	Files       []string  `json:"files,omitempty"`
}

// ShortSHA returns the first eight characters of the SHA.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 8 {
		return c.SHA[:8]
	}
	return c.SHA
}

// Comment is a discussion comment on an issue or pull request.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewComment is a comment attached to a file in a pull request.
type ReviewComment struct {
	Comment
	Path string `json:"path"`
}

// Issue is a tracker issue with its comments.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Comments  []Comment  `json:"comments,omitempty"`
}

// PullRequest is a change request with review discussion.
type PullRequest struct {
	Issue
	MergedAt       *time.Time      `json:"merged_at,omitempty"`
	BaseBranch     string          `json:"base_branch"`
	HeadBranch     string          `json:"head_branch"`
	ReviewComments []ReviewComment `json:"review_comments,omitempty"`
}

// Merged reports whether the pull request was merged.
func (p PullRequest) Merged() bool {
	return p.MergedAt != nil
}

func (CodeFile) Kind() DocumentType    { return DocumentTypeCode }
func (Commit) Kind() DocumentType      { return DocumentTypeCommit }
func (Issue) Kind() DocumentType       { return DocumentTypeIssue }
func (PullRequest) Kind() DocumentType { return DocumentTypePullRequest }

func (CodeFile) entity()    {}
func (Commit) entity()      {}
func (Issue) entity()       {}
func (PullRequest) entity() {}

// WorkingCopy is a cloned repository on local disk.
type WorkingCopy struct {
	RepoURL string
	Dir     string
	HeadSHA string
}
