package source

// Source combines a git CLI working copy with the GitHub API.
// A nil GitHub makes issue and pull request extraction fail with
// ErrNoGitHub, which the pipeline treats as an empty result.
type Source struct {
	*Git
	*GitHub
}

// New creates a Source.
func New(git *Git, gh *GitHub) *Source {
	if git == nil {
		git = NewGit()
	}
	return &Source{Git: git, GitHub: gh}
}
