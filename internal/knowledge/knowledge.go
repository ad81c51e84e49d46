// Package knowledge triggers re-indexing of uploaded documents in an external
// knowledge base.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
)

// ErrNotConfigured is returned when a sync status is requested from an index
// that has no backend.
var ErrNotConfigured = errors.New("knowledge index not configured")

// BedrockAPI is the subset of the Bedrock agent client used here.
type BedrockAPI interface {
	StartIngestionJob(ctx context.Context, in *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error)
	GetIngestionJob(ctx context.Context, in *bedrockagent.GetIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetIngestionJobOutput, error)
}

// Bedrock syncs a Bedrock knowledge base data source.
type Bedrock struct {
	client          BedrockAPI
	knowledgeBaseID string
	dataSourceID    string
	logger          *slog.Logger
}

// SyncStatus describes a knowledge base ingestion job.
type SyncStatus struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	FailureReasons []string `json:"failure_reasons,omitempty"`
}

// Done reports whether the sync reached a terminal state.
func (s SyncStatus) Done() bool {
	switch strings.ToUpper(s.Status) {
	case "COMPLETE", "FAILED", "STOPPED":
		return true
	}
	return false
}

// NewBedrock creates a knowledge index backed by the Bedrock agent API.
func NewBedrock(awsCfg aws.Config, knowledgeBaseID, dataSourceID string, logger *slog.Logger) (*Bedrock, error) {
	return NewBedrockWithClient(bedrockagent.NewFromConfig(awsCfg), knowledgeBaseID, dataSourceID, logger)
}

// NewBedrockWithClient creates a knowledge index around an existing client.
func NewBedrockWithClient(client BedrockAPI, knowledgeBaseID, dataSourceID string, logger *slog.Logger) (*Bedrock, error) {
	if knowledgeBaseID == "" || dataSourceID == "" {
		return nil, fmt.Errorf("knowledge base id and data source id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bedrock{
		client:          client,
		knowledgeBaseID: knowledgeBaseID,
		dataSourceID:    dataSourceID,
		logger:          logger,
	}, nil
}

// StartSync starts an ingestion job for the configured data source and
// returns its ID.
func (b *Bedrock) StartSync(ctx context.Context) (string, error) {
	out, err := b.client.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(b.knowledgeBaseID),
		DataSourceId:    aws.String(b.dataSourceID),
	})
	if err != nil {
		return "", fmt.Errorf("start ingestion job: %w", err)
	}
	if out.IngestionJob == nil {
		return "", nil
	}

	id := aws.ToString(out.IngestionJob.IngestionJobId)
	b.logger.Info("knowledge base sync started",
		"knowledge_base_id", b.knowledgeBaseID,
		"sync_job_id", id,
		"status", string(out.IngestionJob.Status))
	return id, nil
}

// SyncStatus looks up a previously started ingestion job.
func (b *Bedrock) SyncStatus(ctx context.Context, syncID string) (SyncStatus, error) {
	out, err := b.client.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
		KnowledgeBaseId: aws.String(b.knowledgeBaseID),
		DataSourceId:    aws.String(b.dataSourceID),
		IngestionJobId:  aws.String(syncID),
	})
	if err != nil {
		return SyncStatus{}, fmt.Errorf("get ingestion job %s: %w", syncID, err)
	}
	if out.IngestionJob == nil {
		return SyncStatus{ID: syncID}, nil
	}
	return SyncStatus{
		ID:             syncID,
		Status:         string(out.IngestionJob.Status),
		FailureReasons: out.IngestionJob.FailureReasons,
	}, nil
}

// Noop is a knowledge index that never syncs. Jobs complete without a
// sync_job_id.
type Noop struct{}

// StartSync returns an empty sync ID.
func (Noop) StartSync(context.Context) (string, error) { return "", nil }

// SyncStatus always fails with ErrNotConfigured.
func (Noop) SyncStatus(context.Context, string) (SyncStatus, error) {
	return SyncStatus{}, ErrNotConfigured
}
