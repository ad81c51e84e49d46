package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// MaxComments caps comments and review comments fetched per issue or PR.
const MaxComments = 10

const (
	githubAPIVersion = "2022-11-28"
	defaultBaseURL   = "https://api.github.com"
	pageSize         = 100
)

// ErrNoGitHub is returned when issue or PR extraction is requested without
// a GitHub client.
var ErrNoGitHub = errors.New("github client not configured")

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// GitHubConfig configures the GitHub client.
type GitHubConfig struct {
	// BaseURL defaults to https://api.github.com.
	BaseURL string
	// Token is optional; anonymous requests are heavily rate limited.
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GitHub reads issues and pull requests from the GitHub REST API.
type GitHub struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewGitHub creates a GitHub REST client.
func NewGitHub(cfg GitHubConfig) *GitHub {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{baseURL: baseURL, token: cfg.Token, http: httpClient, logger: logger}
}

type ghUser struct {
	Login string `json:"login"`
}

func (u *ghUser) login() string {
	if u == nil || u.Login == "" {
		return "unknown"
	}
	return u.Login
}

type ghLabel struct {
	Name string `json:"name"`
}

type ghIssue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        *string    `json:"body"`
	State       string     `json:"state"`
	User        *ghUser    `json:"user"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	Labels      []ghLabel  `json:"labels"`
	PullRequest *struct{}  `json:"pull_request"`
}

func (is ghIssue) toModel() models.Issue {
	out := models.Issue{
		Number:    is.Number,
		Title:     is.Title,
		State:     is.State,
		Author:    is.User.login(),
		CreatedAt: is.CreatedAt,
		UpdatedAt: is.UpdatedAt,
		ClosedAt:  is.ClosedAt,
	}
	if is.Body != nil {
		out.Body = *is.Body
	}
	for _, l := range is.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	return out
}

type ghRef struct {
	Ref string `json:"ref"`
}

type ghPull struct {
	ghIssue
	MergedAt *time.Time `json:"merged_at"`
	Base     ghRef      `json:"base"`
	Head     ghRef      `json:"head"`
}

type ghComment struct {
	User      *ghUser   `json:"user"`
	Body      string    `json:"body"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

func (c ghComment) toModel() models.Comment {
	return models.Comment{Author: c.User.login(), Body: c.Body, CreatedAt: c.CreatedAt}
}

// ListIssues returns up to max issues of any state, newest first. Pull
// requests, which the issues endpoint also returns, are excluded.
func (g *GitHub) ListIssues(ctx context.Context, repoURL string, max int) ([]models.Issue, error) {
	if g == nil {
		return nil, ErrNoGitHub
	}
	ref, err := models.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var issues []models.Issue
	next := fmt.Sprintf("%s/repos/%s/%s/issues?state=all&per_page=%d", g.baseURL, ref.Owner, ref.Name, pageSize)
	for next != "" && len(issues) < max {
		var page []ghIssue
		next, err = g.getPage(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("list issues of %s: %w", ref.FullName(), err)
		}
		for _, raw := range page {
			if raw.PullRequest != nil {
				continue
			}
			if len(issues) >= max {
				break
			}
			is := raw.toModel()
			is.Comments, err = g.comments(ctx, fmt.Sprintf("/repos/%s/%s/issues/%d/comments", ref.Owner, ref.Name, is.Number))
			if err != nil {
				g.logger.Warn("failed to fetch issue comments", "repo", ref.FullName(), "issue", is.Number, "error", err)
			}
			issues = append(issues, is)
		}
	}
	g.logger.Info("fetched issues", "repo", ref.FullName(), "count", len(issues))
	return issues, nil
}

// ListPullRequests returns up to max pull requests of any state.
func (g *GitHub) ListPullRequests(ctx context.Context, repoURL string, max int) ([]models.PullRequest, error) {
	if g == nil {
		return nil, ErrNoGitHub
	}
	ref, err := models.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var prs []models.PullRequest
	next := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&per_page=%d", g.baseURL, ref.Owner, ref.Name, pageSize)
	for next != "" && len(prs) < max {
		var page []ghPull
		next, err = g.getPage(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("list pull requests of %s: %w", ref.FullName(), err)
		}
		for _, raw := range page {
			if len(prs) >= max {
				break
			}
			pr := models.PullRequest{
				Issue:      raw.toModel(),
				MergedAt:   raw.MergedAt,
				BaseBranch: raw.Base.Ref,
				HeadBranch: raw.Head.Ref,
			}
			pr.Comments, err = g.comments(ctx, fmt.Sprintf("/repos/%s/%s/issues/%d/comments", ref.Owner, ref.Name, pr.Number))
			if err != nil {
				g.logger.Warn("failed to fetch pull request comments", "repo", ref.FullName(), "pr", pr.Number, "error", err)
			}
			review, err := g.reviewComments(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", ref.Owner, ref.Name, pr.Number))
			if err != nil {
				g.logger.Warn("failed to fetch review comments", "repo", ref.FullName(), "pr", pr.Number, "error", err)
			}
			pr.ReviewComments = review
			prs = append(prs, pr)
		}
	}
	g.logger.Info("fetched pull requests", "repo", ref.FullName(), "count", len(prs))
	return prs, nil
}

func (g *GitHub) comments(ctx context.Context, path string) ([]models.Comment, error) {
	var raw []ghComment
	if _, err := g.getPage(ctx, fmt.Sprintf("%s%s?per_page=%d", g.baseURL, path, MaxComments), &raw); err != nil {
		return nil, err
	}
	out := make([]models.Comment, 0, min(len(raw), MaxComments))
	for _, c := range raw[:min(len(raw), MaxComments)] {
		out = append(out, c.toModel())
	}
	return out, nil
}

func (g *GitHub) reviewComments(ctx context.Context, path string) ([]models.ReviewComment, error) {
	var raw []ghComment
	if _, err := g.getPage(ctx, fmt.Sprintf("%s%s?per_page=%d", g.baseURL, path, MaxComments), &raw); err != nil {
		return nil, err
	}
	out := make([]models.ReviewComment, 0, min(len(raw), MaxComments))
	for _, c := range raw[:min(len(raw), MaxComments)] {
		out = append(out, models.ReviewComment{Comment: c.toModel(), Path: c.Path})
	}
	return out, nil
}

// getPage fetches one page into v and returns the next page URL, if any.
func (g *GitHub) getPage(ctx context.Context, url string, v any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &msg) != nil || msg.Message == "" {
			msg.Message = strings.TrimSpace(string(body))
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	return parseLinkNext(resp.Header.Get("Link")), nil
}

// parseLinkNext extracts the rel="next" URL from an RFC 5988 Link header.
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		urlPart, relPart, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(relPart, `rel="next"`) {
			continue
		}
		urlPart = strings.TrimSpace(urlPart)
		if strings.HasPrefix(urlPart, "<") && strings.HasSuffix(urlPart, ">") {
			return urlPart[1 : len(urlPart)-1]
		}
	}
	return ""
}
