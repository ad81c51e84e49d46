package parser

import "testing"

func TestDefaultRegistry_Boundaries(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		path string
		line string
		want bool
	}{
		{"a.go", "func (s *Server) Start() error {", true},
		{"a.go", "type Config struct {", true},
		{"a.go", "\treturn nil", false},
		{"a.py", "class Parser:", true},
		{"a.py", "    async def fetch(self):", true},
		{"a.py", "    value = compute()", false},
		{"a.ts", "export async function load(id: string) {", true},
		{"a.ts", "const handler = async (req) => {", true},
		{"a.ts", "export interface Props {", true},
		{"a.ts", "  return handler(req);", false},
		{"a.rs", "pub(crate) fn parse(input: &str) -> Result<()> {", true},
		{"a.rs", "impl Display for Token {", true},
		{"a.rs", "    let x = 1;", false},
		{"A.java", "public static void main(String[] args) {", true},
		{"A.java", "public class Main {", true},
		{"A.java", "    return compute(x);", false},
		{"a.c", "int main(int argc, char **argv) {", true},
		{"a.c", "typedef struct node {", true},
		{"a.c", "    printf(\"%d\", x);", false},
		{"a.c", "if (x) {", false},
		{"a.rb", "  def initialize(name)", true},
		{"a.php", "    public function handle($request)", true},
		{"a.swift", "public func render() -> View {", true},
		{"a.sh", "deploy() {", true},
		{"a.sh", "echo done", false},
		{"a.sql", "CREATE TABLE users (", true},
		{"a.md", "## Install", true},
		{"a.md", "#hashtag", false},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.line, func(t *testing.T) {
			m, ok := r.Matcher(tt.path)
			if !ok {
				t.Fatalf("no matcher for %s", tt.path)
			}
			if got := m.IsBoundary(tt.line); got != tt.want {
				t.Errorf("IsBoundary(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestDefaultRegistry_Families(t *testing.T) {
	r := DefaultRegistry()

	tests := map[string]string{
		"main.go":         FamilyGo,
		"App.TSX":         FamilyJavaScript,
		"lib/mod.rs":      FamilyRust,
		"Main.kt":         FamilyJVM,
		"include/x.hpp":   FamilyC,
		"schema.proto":    FamilyGeneric,
		"notes.txt":       "",
		"Makefile":        "",
		"docs/README.md":  FamilyMarkdown,
		"scripts/run.zsh": FamilyShell,
	}
	for path, want := range tests {
		if got := r.Family(path); got != want {
			t.Errorf("Family(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRegistry_RegisterReplacesMatcher(t *testing.T) {
	r := DefaultRegistry()
	r.Register(FamilyGo, MatcherFunc(func(string) bool { return false }))

	m, ok := r.Matcher("x.go")
	if !ok {
		t.Fatal("go family lost its extension mapping")
	}
	if m.IsBoundary("func main() {") {
		t.Error("replacement matcher not used")
	}
}
