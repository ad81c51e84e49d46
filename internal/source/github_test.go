package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitHub(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGitHub(GitHubConfig{BaseURL: srv.URL, Token: "secret", Logger: quietLogger()})
}

func TestListIssues_PaginatesAndSkipsPullRequests(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number":3,"title":"Third","state":"closed","user":{"login":"c"},"labels":[]}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/widgets/issues?state=all&page=2>; rel="next", <%s/x>; rel="last"`, srvURL, srvURL))
		fmt.Fprint(w, `[
			{"number":1,"title":"First","body":"Body","state":"open","user":{"login":"alice"},
			 "created_at":"2024-01-01T00:00:00Z","labels":[{"name":"bug"},{"name":"ui"}]},
			{"number":2,"title":"A PR","state":"open","pull_request":{"url":"x"}}
		]`)
	})
	mux.HandleFunc("GET /repos/acme/widgets/issues/{n}/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		if r.PathValue("n") == "1" {
			fmt.Fprint(w, `[{"user":{"login":"bob"},"body":"+1","created_at":"2024-01-02T00:00:00Z"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	gh := NewGitHub(GitHubConfig{BaseURL: srv.URL, Token: "secret", Logger: quietLogger()})

	issues, err := gh.ListIssues(context.Background(), "https://github.com/acme/widgets", 100)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, "Body", issues[0].Body)
	assert.Equal(t, "alice", issues[0].Author)
	assert.Equal(t, []string{"bug", "ui"}, issues[0].Labels)
	require.Len(t, issues[0].Comments, 1)
	assert.Equal(t, "bob", issues[0].Comments[0].Author)

	assert.Equal(t, 3, issues[1].Number)
	assert.Equal(t, "", issues[1].Body)
}

func TestListIssues_Max(t *testing.T) {
	gh := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/widgets/issues" {
			fmt.Fprint(w, `[{"number":1,"title":"a"},{"number":2,"title":"b"},{"number":3,"title":"c"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))

	issues, err := gh.ListIssues(context.Background(), "https://github.com/acme/widgets", 2)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Equal(t, "unknown", issues[0].Author)
}

func TestListPullRequests(t *testing.T) {
	comments := "["
	for i := range 15 {
		if i > 0 {
			comments += ","
		}
		comments += fmt.Sprintf(`{"user":{"login":"r%d"},"body":"c%d","path":"main.go"}`, i, i)
	}
	comments += "]"

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number":5,"title":"Feature","state":"closed","user":{"login":"dev"},
			"merged_at":"2024-03-01T00:00:00Z","base":{"ref":"main"},"head":{"ref":"feat"}}]`)
	})
	mux.HandleFunc("GET /repos/acme/widgets/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, comments)
	})
	mux.HandleFunc("GET /repos/acme/widgets/pulls/5/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, comments)
	})
	gh := newTestGitHub(t, mux)

	prs, err := gh.ListPullRequests(context.Background(), "git@github.com:acme/widgets.git", 100)
	require.NoError(t, err)
	require.Len(t, prs, 1)

	pr := prs[0]
	assert.Equal(t, 5, pr.Number)
	assert.True(t, pr.Merged())
	assert.Equal(t, "main", pr.BaseBranch)
	assert.Equal(t, "feat", pr.HeadBranch)
	assert.Len(t, pr.Comments, MaxComments)
	require.Len(t, pr.ReviewComments, MaxComments)
	assert.Equal(t, "main.go", pr.ReviewComments[0].Path)
}

func TestGitHub_APIError(t *testing.T) {
	gh := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))

	_, err := gh.ListIssues(context.Background(), "https://github.com/acme/gone", 10)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Not Found")
}

func TestGitHub_Nil(t *testing.T) {
	var gh *GitHub
	_, err := gh.ListIssues(context.Background(), "https://github.com/acme/widgets", 1)
	assert.ErrorIs(t, err, ErrNoGitHub)

	s := New(nil, nil)
	_, err = s.ListPullRequests(context.Background(), "https://github.com/acme/widgets", 1)
	assert.ErrorIs(t, err, ErrNoGitHub)
}

func TestParseLinkNext(t *testing.T) {
	assert.Equal(t, "", parseLinkNext(""))
	assert.Equal(t, "https://x/2", parseLinkNext(`<https://x/2>; rel="next", <https://x/9>; rel="last"`))
	assert.Equal(t, "", parseLinkNext(`<https://x/1>; rel="prev"`))
}
