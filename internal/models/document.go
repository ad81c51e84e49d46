package models

// DocumentType tags the origin of a Document.
type DocumentType string

const (
	DocumentTypeCode        DocumentType = "code"
	DocumentTypeCommit      DocumentType = "commit"
	DocumentTypeIssue       DocumentType = "issue"
	DocumentTypePullRequest DocumentType = "pull_request"
)

// Metadata keys shared by all documents.
const (
	MetaDocumentType = "document_type"
	MetaRepoURL      = "repo_url"
	MetaRepoName     = "repo_name"
	MetaIngestedAt   = "ingested_at"
)

// Metadata keys for code documents.
const (
	MetaFilePath      = "file_path"
	MetaChunkIndex    = "chunk_index"
	MetaTotalChunks   = "total_chunks"
	MetaStartLine     = "start_line"
	MetaEndLine       = "end_line"
	MetaFileExtension = "file_extension"
)

// Metadata keys for commit documents.
const (
	MetaCommitSHA         = "commit_sha"
	MetaCommitAuthor      = "commit_author"
	MetaCommitAuthorEmail = "commit_author_email"
	MetaCommitDate        = "commit_date"
)

// Metadata keys for issue documents.
const (
	MetaIssueNumber = "issue_number"
	MetaIssueTitle  = "issue_title"
	MetaIssueState  = "issue_state"
	MetaIssueAuthor = "issue_author"
	MetaIssueLabels = "issue_labels"
	MetaCreatedAt   = "created_at"
)

// Metadata keys for pull request documents.
const (
	MetaPRNumber   = "pr_number"
	MetaPRTitle    = "pr_title"
	MetaPRState    = "pr_state"
	MetaPRAuthor   = "pr_author"
	MetaPRLabels   = "pr_labels"
	MetaBaseBranch = "base_branch"
	MetaHeadBranch = "head_branch"
	MetaMerged     = "merged"
)

// Document is the unit handed to the object store and knowledge index.
type Document struct {
	Type     DocumentType   `json:"-"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}
