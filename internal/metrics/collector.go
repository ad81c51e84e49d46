// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	TotalInputTokens  *int64 `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64 `json:"total_output_tokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptime_seconds"`
	JobsSubmitted int64                         `json:"jobs_submitted"`
	JobsCompleted int64                         `json:"jobs_completed"`
	JobsFailed    int64                         `json:"jobs_failed"`
	Documents     int64                         `json:"documents"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
}

// Operation names for the collector.
const (
	OpClone          = "clone"
	OpExtractCode    = "extract_code"
	OpExtractCommits = "extract_commits"
	OpExtractIssues  = "extract_issues"
	OpExtractPRs     = "extract_prs"
	OpFormat         = "format"
	OpUpload         = "upload"
	OpSync           = "sync"
	OpRelease        = "release"
	OpPipeline       = "pipeline"
	OpLLMGenerate    = "llm_generate"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe and safe to call on a nil Collector.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	submitted int64
	completed int64
	failed    int64
	documents int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records timing for an operation; a non-nil err counts as a failure.
func (c *Collector) RecordTiming(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration)
	if err != nil {
		m.Errors++
	}
}

// Time runs fn and records its duration under op.
func (c *Collector) Time(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.RecordTiming(op, time.Since(start), err)
	return err
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// JobSubmitted counts a submitted job.
func (c *Collector) JobSubmitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.submitted++
	c.mu.Unlock()
}

// JobFinished counts a job reaching a terminal state.
func (c *Collector) JobFinished(ok bool, documents int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.completed++
		c.documents += int64(documents)
	} else {
		c.failed++
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		in, out := m.TotalInputTokens, m.TotalOutputTokens
		snap.TotalInputTokens = &in
		snap.TotalOutputTokens = &out
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: map[string]*OperationSnapshot{}}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]*OperationSnapshot, len(c.ops))
	for name, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			ops[name] = s
		}
	}
	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		JobsSubmitted: c.submitted,
		JobsCompleted: c.completed,
		JobsFailed:    c.failed,
		Documents:     c.documents,
		Operations:    ops,
	}
}
