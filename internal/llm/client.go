// Package llm provides the gateway to the Anthropic generation API used by
// the task planner. It owns client construction, model fallback, and the
// conversion of SDK errors into typed failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/planora/planora/internal/log"
)

// Typed failures. Callers treat both as "skip generation", never as a reason
// to fail the surrounding workflow.
var (
	// ErrNoCredentials means no API key is configured.
	ErrNoCredentials = errors.New("no model credentials configured")
	// ErrUnavailable means the provider could not produce a response.
	ErrUnavailable = errors.New("model unavailable")
)

const defaultModel = anthropic.ModelClaude3_5Haiku20241022

// jsonSystemPrompt steers the model toward machine-readable output.
const jsonSystemPrompt = `Respond with a single valid JSON object and nothing else. No prose, no markdown, no code fences.`

// Client wraps the Anthropic SDK client with a pinned model and an ordered
// fallback list.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	fallbacks []anthropic.Model
	timeout   time.Duration
	logger    log.Logger
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// Model is the pinned generation model.
	Model string
	// FallbackModels are tried in order when the pinned model fails.
	FallbackModels []string
	// RequestTimeout bounds a single Generate call (default 30s).
	RequestTimeout time.Duration
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// Logger receives diagnostics. Defaults to log.Noop.
	Logger log.Logger
}

// NewClient creates a new Anthropic API client.
// Returns ErrNoCredentials when no API key is available in the direct-API path.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNoCredentials
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	var fallbacks []anthropic.Model
	for _, m := range cfg.FallbackModels {
		if m != "" && anthropic.Model(m) != model {
			fallbacks = append(fallbacks, anthropic.Model(m))
		}
	}

	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
		for i, m := range fallbacks {
			fallbacks[i] = translateModelForBedrock(m)
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Noop
	}

	return &Client{
		inner:     inner,
		model:     model,
		fallbacks: fallbacks,
		timeout:   timeout,
		logger:    logger.WithValues(log.Kv{"svc": "llm.Client"}),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock
// inference profile format (cross-region us. prefix).
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaude3_5Haiku20241022:  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		anthropic.ModelClaudeSonnet4_20250514:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219: "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	return model
}

// Model returns the pinned model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Generate sends the prompt to the provider and returns the raw response
// text. The pinned model is tried first, then each fallback in order; the
// whole attempt sequence shares one timeout. All provider errors come back
// wrapped in ErrUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	models := append([]anthropic.Model{c.model}, c.fallbacks...)

	var lastErr error
	for _, model := range models {
		text, err := c.generateOnce(ctx, model, prompt, wantJSON)
		if err != nil {
			lastErr = err
			c.logger.Warningf("model %s failed: %v", model, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: all models failed: %v", ErrUnavailable, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model anthropic.Model, prompt string, wantJSON bool) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   4096,
		Temperature: anthropic.Float(0.3),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if wantJSON {
		params.System = []anthropic.TextBlockParam{
			{Text: jsonSystemPrompt},
		}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}

	return text, nil
}

// Process-wide default client. Constructed lazily on first use and shared
// read-only across concurrent calls.
var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultErr    error
)

// Default returns the process-wide client, constructing it from cfg on the
// first call. Later calls ignore cfg and return the cached handle.
func Default(cfg ClientConfig) (*Client, error) {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = NewClient(cfg)
	})
	return defaultClient, defaultErr
}
