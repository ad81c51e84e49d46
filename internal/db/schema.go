package db

// Table names.
const (
	TableRepository = "repository"
	TableJobRef     = "job_ref"
)

// SchemaSQL defines the snapshot tables.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS repository SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS repo_url ON repository TYPE string;
    DEFINE FIELD IF NOT EXISTS repo_name ON repository TYPE string;
    DEFINE FIELD IF NOT EXISTS ingested_at ON repository TYPE datetime;
    DEFINE FIELD IF NOT EXISTS document_count ON repository TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS last_commit_sha ON repository TYPE option<string>;
    DEFINE INDEX IF NOT EXISTS repository_url ON repository FIELDS repo_url UNIQUE;

    DEFINE TABLE IF NOT EXISTS job_ref SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS repo_url ON job_ref TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON job_ref TYPE datetime DEFAULT time::now();
`
