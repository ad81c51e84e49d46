// Package client provides an HTTP client for the repoingest server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/repoingest/internal/knowledge"
	"github.com/raphaelgruber/repoingest/internal/metrics"
	"github.com/raphaelgruber/repoingest/internal/models"
)

// ErrNotFound is returned for unknown jobs.
var ErrNotFound = errors.New("not found")

// Client talks to the repoingest HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses REPOINGEST_URL env var or defaults to localhost:8080.
// Timeout can be configured via REPOINGEST_CLIENT_TIMEOUT env var (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("REPOINGEST_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	timeout := 30 * time.Second
	if t := os.Getenv("REPOINGEST_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IngestResponse is the reply to an ingestion request.
type IngestResponse struct {
	JobID   string           `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// Ingest submits an ingestion request.
func (c *Client) Ingest(ctx context.Context, req models.IngestRequest) (*IngestResponse, error) {
	var out IngestResponse
	if err := c.do(ctx, http.MethodPost, "/api/ingest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches a job snapshot.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*models.IngestionJob, error) {
	var job models.IngestionJob
	if err := c.do(ctx, http.MethodGet, "/api/ingest/"+url.PathEscape(jobID)+"/status", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Cancel asks the server to stop a running job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/api/ingest/"+url.PathEscape(jobID), nil, nil)
}

// ListJobs lists all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]models.IngestionJob, error) {
	var jobs []models.IngestionJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListRepositories lists ingested repositories.
func (c *Client) ListRepositories(ctx context.Context) ([]models.RepositoryRecord, error) {
	var repos []models.RepositoryRecord
	if err := c.do(ctx, http.MethodGet, "/api/repositories", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// Stats fetches server metrics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SyncStatus fetches a knowledge base sync job.
func (c *Client) SyncStatus(ctx context.Context, syncID string) (*knowledge.SyncStatus, error) {
	var st knowledge.SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/sync/"+url.PathEscape(syncID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", msg, ErrNotFound)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, msg)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Watch streams job snapshots until the job is terminal, the context is
// cancelled or onUpdate returns an error. It returns the last snapshot.
func (c *Client) Watch(ctx context.Context, jobID string, onUpdate func(models.IngestionJob) error) (*models.IngestionJob, error) {
	wsURL := strings.Replace(c.baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/api/ingest/" + url.PathEscape(jobID) + "/watch"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var last *models.IngestionJob
	for {
		var job models.IngestionJob
		if err := conn.ReadJSON(&job); err != nil {
			if last != nil && last.Status.Terminal() {
				return last, nil
			}
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, fmt.Errorf("read job update: %w", err)
		}
		last = &job
		if onUpdate != nil {
			if err := onUpdate(job); err != nil {
				return last, err
			}
		}
	}
}
