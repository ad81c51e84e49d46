package parser

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// BoundaryMatcher recognizes lines that open a semantic unit
// (function, class, type, heading) for one language family.
type BoundaryMatcher interface {
	IsBoundary(line string) bool
}

// MatcherFunc adapts a function to BoundaryMatcher.
type MatcherFunc func(line string) bool

// IsBoundary implements BoundaryMatcher.
func (f MatcherFunc) IsBoundary(line string) bool { return f(line) }

// PatternMatcher matches a line against a set of regular expressions.
// Lines whose first word is in Exclude never match, which keeps
// statements like "return foo(" from passing as declarations.
type PatternMatcher struct {
	Patterns []*regexp.Regexp
	Exclude  map[string]bool
}

// Patterns compiles exprs into a PatternMatcher. It panics on invalid
// expressions, like regexp.MustCompile.
func Patterns(exprs ...string) *PatternMatcher {
	m := &PatternMatcher{}
	for _, e := range exprs {
		m.Patterns = append(m.Patterns, regexp.MustCompile(e))
	}
	return m
}

// Excluding returns m with the given leading keywords excluded.
func (m *PatternMatcher) Excluding(words ...string) *PatternMatcher {
	if m.Exclude == nil {
		m.Exclude = make(map[string]bool, len(words))
	}
	for _, w := range words {
		m.Exclude[w] = true
	}
	return m
}

// IsBoundary implements BoundaryMatcher.
func (m *PatternMatcher) IsBoundary(line string) bool {
	if len(m.Exclude) > 0 {
		fields := strings.Fields(line)
		if len(fields) > 0 && m.Exclude[fields[0]] {
			return false
		}
	}
	for _, re := range m.Patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Language families with built-in matchers.
const (
	FamilyGo         = "go"
	FamilyPython     = "python"
	FamilyJavaScript = "javascript"
	FamilyRust       = "rust"
	FamilyJVM        = "jvm"
	FamilyC          = "c"
	FamilyRuby       = "ruby"
	FamilyPHP        = "php"
	FamilySwift      = "swift"
	FamilyShell      = "shell"
	FamilyElixir     = "elixir"
	FamilyLua        = "lua"
	FamilySQL        = "sql"
	FamilyMarkdown   = "markdown"
	FamilyGeneric    = "generic"
)

var statementWords = []string{
	"return", "else", "new", "throw", "case", "await", "yield", "delete",
	"typeof", "goto", "sizeof", "if", "while", "for", "switch", "catch",
}

// Registry maps file extensions to language families and families to
// boundary matchers. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	matchers   map[string]BoundaryMatcher
	extensions map[string]string
}

// NewRegistry returns an empty registry. Files whose extension is not
// registered are chunked in paragraph mode.
func NewRegistry() *Registry {
	return &Registry{
		matchers:   make(map[string]BoundaryMatcher),
		extensions: make(map[string]string),
	}
}

// Register binds family to m and maps each extension to family.
// Extensions are matched case-insensitively and may omit the leading dot.
// Registering an existing family replaces its matcher.
func (r *Registry) Register(family string, m BoundaryMatcher, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchers[family] = m
	for _, ext := range extensions {
		r.extensions[normalizeExt(ext)] = family
	}
}

// Family returns the language family for path, or "" if none is registered.
func (r *Registry) Family(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensions[normalizeExt(filepath.Ext(path))]
}

// Matcher returns the boundary matcher for path.
func (r *Registry) Matcher(path string) (BoundaryMatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	family, ok := r.extensions[normalizeExt(filepath.Ext(path))]
	if !ok {
		return nil, false
	}
	m, ok := r.matchers[family]
	return m, ok
}

// Families lists registered family names.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.matchers))
	for f := range r.matchers {
		out = append(out, f)
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// GenericMatcher recognizes common function-like openings across
// C-style, Go, Rust and JavaScript syntax.
func GenericMatcher() BoundaryMatcher {
	return Patterns(
		`^\s*(public|private|protected)?\s*(static)?\s*\w+\s+\w+\s*\(`,
		`^\s*func\s+\w+`,
		`^\s*fn\s+\w+`,
		`^\s*function\s+\w+`,
		`^\s*(const|let|var)\s+\w+\s*=\s*(async)?\s*\(`,
	).Excluding(statementWords...)
}

// DefaultRegistry returns a registry populated with the built-in families.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(FamilyGo, Patterns(
		`^func\s`,
		`^type\s+\w+`,
		`^(var|const)\s*\(`,
	), ".go")

	r.Register(FamilyPython, Patterns(
		`^\s*(class|def|async\s+def)\s+\w+`,
		`^@\w+`,
	), ".py", ".pyi")

	r.Register(FamilyJavaScript, Patterns(
		`^\s*(export\s+)?(default\s+)?(async\s+)?function\*?\s+\w+`,
		`^\s*(export\s+)?(const|let|var)\s+\w+\s*=\s*(async\s*)?(\(|function\b|\w+\s*=>)`,
		`^\s*(export\s+)?(default\s+)?(abstract\s+)?class\s+\w+`,
		`^\s*(export\s+)?(declare\s+)?(interface|type|enum|namespace)\s+\w+`,
	), ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte")

	r.Register(FamilyRust, Patterns(
		`^\s*(pub(\([^)]*\))?\s+)?(const\s+)?(async\s+)?(unsafe\s+)?(fn|struct|enum|trait|impl|mod|union)\b`,
		`^\s*macro_rules!`,
	), ".rs")

	r.Register(FamilyJVM, Patterns(
		`^\s*(@\w+\s+)*((public|private|protected|internal|static|final|abstract|sealed|data|open|override|suspend|partial|async|virtual)\s+)*(class|interface|enum|record|object|fun|def|struct|trait)\s+\w+`,
		`^\s*((public|private|protected|internal|static|final|abstract|override|async|virtual|synchronized)\s+)+[\w<>\[\],?\s]+\s+\w+\s*\(`,
	).Excluding(statementWords...), ".java", ".kt", ".kts", ".scala", ".cs", ".groovy")

	r.Register(FamilyC, Patterns(
		`^(typedef\s+)?(struct|class|enum|union|namespace)\s+\w+`,
		`^template\s*<`,
		`^[A-Za-z_][\w\s\*&:<>,]*\s+\**(\w+::)*~?\w+\s*\([^;]*$`,
	).Excluding(statementWords...), ".c", ".h", ".cpp", ".hpp", ".cc", ".cxx", ".hh", ".m", ".mm")

	r.Register(FamilyRuby, Patterns(
		`^\s*(def|class|module)\s+\S`,
	), ".rb", ".rake")

	r.Register(FamilyPHP, Patterns(
		`^\s*((public|private|protected|static|abstract|final|readonly)\s+)*(function|class|interface|trait|enum)\s+\w+`,
	), ".php")

	r.Register(FamilySwift, Patterns(
		`^\s*((public|private|internal|fileprivate|open|static|final|override|mutating|@\w+)\s+)*(func|class|struct|enum|protocol|extension|actor)\s+\w+`,
	), ".swift")

	r.Register(FamilyShell, Patterns(
		`^\s*function\s+[\w:-]+`,
		`^\s*[\w:-]+\s*\(\)\s*\{?\s*$`,
	), ".sh", ".bash", ".zsh")

	r.Register(FamilyElixir, Patterns(
		`^\s*(defmodule|defp?|defmacrop?|defprotocol|defimpl)\s`,
	), ".ex", ".exs")

	r.Register(FamilyLua, Patterns(
		`^\s*(local\s+)?function\s+[\w.:]+`,
	), ".lua")

	r.Register(FamilySQL, Patterns(
		`(?i)^\s*(create|alter|drop)\s+(or\s+replace\s+)?(table|view|function|procedure|index|trigger|type)\b`,
	), ".sql")

	r.Register(FamilyMarkdown, MatcherFunc(isHeading), ".md", ".markdown", ".mdx")

	r.Register(FamilyGeneric, GenericMatcher(),
		".r", ".fs", ".clj", ".erl", ".hs", ".pl", ".sol", ".v", ".vhd",
		".proto", ".graphql", ".dart", ".zig", ".jl")

	return r
}
