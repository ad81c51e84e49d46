package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/repoingest/internal/parser"
)

var (
	chunkSize    int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Preview how a file is chunked",
	Long: `Split a local file the way the ingestion pipeline does and print each chunk
with its line range. Useful for tuning chunk size and overlap.

Examples:
  repoingest chunk internal/service/ingest.go
  repoingest chunk README.md --size 800 --overlap 100`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().IntVar(&chunkSize, "size", 0, "max chunk size in characters (default from config)")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", -1, "overlap in characters (default from config)")
}

func runChunk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = cfg.ChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = cfg.ChunkOverlap
	}

	chunker := parser.NewChunker(nil)
	chunks := chunker.Chunk(string(data), args[0], chunkSize, chunkOverlap)
	if jsonOut {
		return printJSON(chunks)
	}

	family := chunker.Registry().Family(args[0])
	if family == "" {
		family = "paragraphs"
	}
	fmt.Printf("%s: %d chunks (%s, size %d, overlap %d)\n", args[0], len(chunks), family, chunkSize, chunkOverlap)
	for i, c := range chunks {
		fmt.Printf("\n── chunk %d/%d  lines %d-%d  %d chars ──\n", i+1, len(chunks), c.StartLine, c.EndLine, len([]rune(c.Content)))
		fmt.Println(strings.TrimRight(c.Content, "\n"))
	}
	return nil
}
