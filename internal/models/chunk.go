package models

// Chunk is a contiguous slice of a source file with line provenance.
// Lines are 1-based and inclusive.
type Chunk struct {
	Content    string `json:"content"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	SourcePath string `json:"source_path"`
}

// ChunkingConfig defines parameters for content chunking.
type ChunkingConfig struct {
	// MaxSize is the target upper bound of a chunk in characters.
	MaxSize int

	// Overlap is the character budget carried from the end of one chunk
	// into the start of the next.
	Overlap int
}

// DefaultChunkingConfig returns the default chunking configuration.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MaxSize: 1500,
		Overlap: 200,
	}
}
