// Package llm generates commit explanations with a langchaingo model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/repoingest/internal/config"
	"github.com/raphaelgruber/repoingest/internal/metrics"
)

// ErrFatalAPI marks provider errors that retrying will not fix, such as
// bad credentials or an exhausted quota.
var ErrFatalAPI = errors.New("fatal LLM API error")

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelWithLLM(model, cfg.LLMModel, collector, logger), nil
}

// NewModelWithLLM wraps an existing langchaingo model.
func NewModelWithLLM(model llms.Model, name string, collector *metrics.Collector, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		llm:       model,
		modelName: name,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(4000),
	)
	duration := time.Since(start)
	if err != nil {
		m.metrics.RecordTiming(metrics.OpLLMGenerate, duration, err)
		m.logger.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate with system: %w", wrapFatalError(err))
	}

	if len(response.Choices) == 0 {
		m.metrics.RecordTiming(metrics.OpLLMGenerate, duration, errNoChoices)
		return "", errNoChoices
	}

	choice := response.Choices[0]
	in, out := tokenCounts(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out)
	m.logger.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)

	return choice.Content, nil
}

var errNoChoices = errors.New("no response choices")

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenCounts reads token usage from provider-specific generation info.
func tokenCounts(info map[string]any) (in, out int64) {
	pick := func(keys ...string) int64 {
		for _, k := range keys {
			switch v := info[k].(type) {
			case int:
				return int64(v)
			case int32:
				return int64(v)
			case int64:
				return v
			case float64:
				return int64(v)
			}
		}
		return 0
	}
	return pick("InputTokens", "PromptTokens", "input_tokens"),
		pick("OutputTokens", "CompletionTokens", "output_tokens")
}

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}
