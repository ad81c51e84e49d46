// Package parser splits source files and prose into bounded, line-addressed chunks.
package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// MinViableChunk is the buffer size (chars) a boundary line must exceed
// before it may close a chunk.
const MinViableChunk = 100

// Chunker splits content using structural boundaries when the source's
// language family has a matcher, and paragraph cuts otherwise.
type Chunker struct {
	registry *Registry
}

// NewChunker creates a chunker backed by r. A nil registry uses DefaultRegistry.
func NewChunker(r *Registry) *Chunker {
	if r == nil {
		r = DefaultRegistry()
	}
	return &Chunker{registry: r}
}

// Registry returns the chunker's matcher registry.
func (c *Chunker) Registry() *Registry {
	return c.registry
}

var defaultChunker = NewChunker(nil)

// Chunk splits content with the default registry.
func Chunk(content, sourcePath string, maxChunkSize, overlap int) []models.Chunk {
	return defaultChunker.Chunk(content, sourcePath, maxChunkSize, overlap)
}

// Chunk splits content into an ordered sequence of chunks covering every line.
// It always returns at least one chunk; empty content yields one empty chunk
// spanning line 1.
func (c *Chunker) Chunk(content, sourcePath string, maxChunkSize, overlap int) []models.Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = models.DefaultChunkingConfig().MaxSize
	}
	overlap = max(0, min(overlap, maxChunkSize-1))
	if content == "" {
		return []models.Chunk{{Content: "", StartLine: 1, EndLine: 1, SourcePath: sourcePath}}
	}

	if m, ok := c.registry.Matcher(sourcePath); ok {
		return chunkStructural(content, sourcePath, m, maxChunkSize, overlap)
	}
	return chunkByParagraphs(content, sourcePath, maxChunkSize, overlap)
}

// lineBuffer accumulates consecutive lines. Lines carried over as overlap
// are "seeded"; fresh counts lines not yet emitted in any chunk.
type lineBuffer struct {
	lines []string
	start int
	size  int
	fresh int
}

func (b *lineBuffer) reset(start int) {
	b.lines = b.lines[:0]
	b.start = start
	b.size = 0
	b.fresh = 0
}

func (b *lineBuffer) add(line string, width int) {
	if len(b.lines) > 0 {
		b.size++
	}
	b.lines = append(b.lines, line)
	b.size += width
	b.fresh++
}

func (b *lineBuffer) chunk(sourcePath string) models.Chunk {
	return models.Chunk{
		Content:    strings.Join(b.lines, "\n"),
		StartLine:  b.start,
		EndLine:    b.start + len(b.lines) - 1,
		SourcePath: sourcePath,
	}
}

// seed replaces the buffer with its trailing n lines, marked as already emitted.
func (b *lineBuffer) seed(n int) {
	tail := append([]string(nil), b.lines[len(b.lines)-n:]...)
	end := b.start + len(b.lines) - 1
	b.reset(end - n + 1)
	for _, l := range tail {
		b.add(l, utf8.RuneCountInString(l))
	}
	b.fresh = 0
}

// overlapLines estimates how many trailing lines of b approximate overlap
// characters, clamped to [0, len(lines)-1].
func (b *lineBuffer) overlapLines(overlap int) int {
	n := len(b.lines)
	if n <= 1 || overlap <= 0 {
		return 0
	}
	avg := float64(b.size) / float64(n)
	if avg <= 0 {
		return n - 1
	}
	k := int(float64(overlap) / avg)
	return max(0, min(k, n-1))
}

func chunkStructural(content, sourcePath string, m BoundaryMatcher, maxSize, overlap int) []models.Chunk {
	lines := strings.Split(content, "\n")
	var chunks []models.Chunk
	buf := &lineBuffer{start: 1}

	for i, line := range lines {
		lineNo := i + 1
		width := utf8.RuneCountInString(line)
		oversized := width > maxSize

		switch {
		case buf.fresh > 0 && ((buf.size > MinViableChunk && m.IsBoundary(line)) || oversized):
			chunks = append(chunks, buf.chunk(sourcePath))
			buf.reset(lineNo)
		case buf.fresh == 0 && len(buf.lines) > 0 && (oversized || m.IsBoundary(line)):
			// Only overlap remains; those lines are already emitted.
			buf.reset(lineNo)
		}

		buf.add(line, width)

		if buf.size > maxSize {
			chunks = append(chunks, buf.chunk(sourcePath))
			buf.seed(buf.overlapLines(overlap))
		}
	}

	if buf.fresh > 0 {
		chunks = append(chunks, buf.chunk(sourcePath))
	}
	if len(chunks) == 0 {
		return []models.Chunk{{Content: content, StartLine: 1, EndLine: len(lines), SourcePath: sourcePath}}
	}
	return chunks
}

// chunkByParagraphs cuts content at the last paragraph or sentence break
// before maxSize, hard-cutting when there is none.
func chunkByParagraphs(content, sourcePath string, maxSize, overlap int) []models.Chunk {
	runes := []rune(content)
	n := len(runes)
	newlines := newlineOffsets(runes)
	lineAt := func(pos int) int {
		return sort.SearchInts(newlines, pos) + 1
	}

	var chunks []models.Chunk
	start, prevEnd := 0, 0
	for start < n {
		end := min(start+maxSize, n)
		if end < n {
			// A cut at or before prevEnd would repeat text already emitted.
			if cut := lastBreak(runes, start, end); cut > prevEnd {
				end = cut
			}
		}

		s, e := start, end
		for s < e && unicode.IsSpace(runes[s]) {
			s++
		}
		for e > s && unicode.IsSpace(runes[e-1]) {
			e--
		}
		if s < e {
			chunks = append(chunks, models.Chunk{
				Content:    string(runes[s:e]),
				StartLine:  lineAt(s),
				EndLine:    lineAt(e - 1),
				SourcePath: sourcePath,
			})
		}

		if end >= n {
			break
		}
		prevEnd = end
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if len(chunks) == 0 {
		return []models.Chunk{{
			Content:    strings.TrimSpace(content),
			StartLine:  1,
			EndLine:    len(newlines) + 1,
			SourcePath: sourcePath,
		}}
	}
	return chunks
}

func newlineOffsets(runes []rune) []int {
	var out []int
	for i, r := range runes {
		if r == '\n' {
			out = append(out, i)
		}
	}
	return out
}

// lastBreak returns the end offset of the best cut in runes[start:end],
// preferring a blank line, then a sentence terminator. It returns -1 when
// neither exists after start.
func lastBreak(runes []rune, start, end int) int {
	for i := end - 2; i > start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i
		}
	}
	for i := end - 2; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			next := runes[i+1]
			if next == ' ' || (runes[i] == '.' && next == '\n') {
				if i+1 > start {
					return i + 1
				}
			}
		}
	}
	return -1
}
